package cfapi

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ansleehk/Cloudflare-KV-Driver/internal/httpx"
)

const tracerName = "github.com/ansleehk/Cloudflare-KV-Driver/pkg/cfapi"

// Auth carries the three credential fields attached to every request.
type Auth struct {
	AccountID string
	Email     string
	APIKey    string
}

// RequestSpec describes exactly one outbound HTTP call. It is consumed once.
type RequestSpec struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Content ContentKind
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithNotifier installs the completion notifier invoked after every
// operation that reached the network.
func WithNotifier(n Notifier) FetcherOption {
	return func(f *Fetcher) { f.notifier = n }
}

// WithIntegrityCheck toggles the status-vs-body consistency check. It is on
// by default; disabling it makes the body-level success flag win outright.
func WithIntegrityCheck(enabled bool) FetcherOption {
	return func(f *Fetcher) { f.integrity = enabled }
}

// WithLogger overrides the diagnostic logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(h *http.Client) FetcherOption {
	return func(f *Fetcher) { f.httpOpts = append(f.httpOpts, httpx.WithHTTPClient(h)) }
}

// Fetcher issues requests against the remote service and classifies each
// response. It is stateless across calls and safe for concurrent use.
type Fetcher struct {
	client    *httpx.Client
	auth      Auth
	notifier  Notifier
	integrity bool
	logger    *slog.Logger
	tracer    trace.Tracer
	httpOpts  []httpx.Option
}

// NewFetcher creates a Fetcher bound to the service base URL.
func NewFetcher(baseURL string, auth Auth, opts ...FetcherOption) (*Fetcher, error) {
	f := &Fetcher{
		auth:      auth,
		integrity: true,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(f)
	}

	client, err := httpx.NewClient(baseURL, f.httpOpts...)
	if err != nil {
		return nil, err
	}
	f.client = client
	return f, nil
}

// Fetch performs one request/classify round trip. The returned error is
// non-nil only for failures that precede or preempt classification: a
// *SerializationError before the request is sent (no event fires), or a
// *httpx.TransportError after a best-effort notification with a nil result.
// Every answered request, whatever its status code, yields a Result.
func (f *Fetcher) Fetch(ctx context.Context, cmd Command, spec RequestSpec, mode ValidationMode) (*Result, error) {
	ctx, span := f.tracer.Start(ctx, "cfapi.Fetch", trace.WithAttributes(
		attribute.String("http.request.method", spec.Method),
		attribute.String("url.path", spec.Path),
		attribute.String("kv.command", cmd.Name),
	))
	defer span.End()

	headers, payload, err := Prepare(spec.Content, spec.Body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if headers == nil {
		headers = make(http.Header)
	}
	headers.Set("X-Auth-Email", f.auth.Email)
	headers.Set("X-Auth-Key", f.auth.APIKey)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	resp, err := f.client.Do(ctx, &httpx.Request{
		Method: spec.Method,
		Path:   spec.Path,
		Query:  spec.Query,
		Header: headers,
		Body:   body,
	})
	if err != nil {
		span.RecordError(err)
		f.notify(cmd, nil, NewErrorDetail(err))
		return nil, err
	}

	raw, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		err = &httpx.TransportError{Method: spec.Method, URL: spec.Path, Err: err}
		span.RecordError(err)
		f.notify(cmd, nil, NewErrorDetail(err))
		return nil, err
	}

	res := f.buildResult(resp.StatusCode, resp.Header, raw, mode)
	span.SetAttributes(
		attribute.Int("http.response.status_code", res.HTTP.Status),
		attribute.String("kv.outcome", res.Outcome.String()),
	)
	f.logger.Debug("kv api response classified",
		"command", cmd.Name,
		"status", res.HTTP.Status,
		"outcome", res.Outcome.String(),
		"normal_shape", res.NormalShape,
	)

	f.notify(cmd, res, nil)
	return res, nil
}

// buildResult parses the body per the validation mode and classifies the
// response.
func (f *Fetcher) buildResult(status int, headers http.Header, raw []byte, mode ValidationMode) *Result {
	res := &Result{
		HTTP: HTTPMeta{Status: status, Headers: headers, RawBody: raw},
	}

	// Only the validation mode decides how the body is read. The request's
	// content kind says nothing about the response: a plain-text write is
	// still answered with a JSON envelope.
	if mode == ValidateString {
		// The body itself is the result; only the status carries meaning.
		res.BodyKind = BodyString
		res.Text = string(raw)
		res.NormalShape = true
		res.Outcome = outcomeFromStatus(status)
		if res.Outcome == OutcomeFailure {
			// A failed raw read may still answer with a JSON error list.
			if env, shapeErr := parseEnvelope(raw); shapeErr == nil {
				res.ServiceErrors = append([]ServiceError(nil), env.Errors...)
			}
		}
		return res
	}

	env, shapeErr := parseEnvelope(raw)
	if shapeErr != nil {
		if len(bytes.TrimSpace(raw)) == 0 {
			res.BodyKind = BodyNone
		} else {
			res.BodyKind = BodyString
			res.Text = string(raw)
		}
		res.Outcome = outcomeFromStatus(status)
		return res
	}

	res.BodyKind = BodyObject
	res.Envelope = env
	res.NormalShape = env.checkShape(mode) == nil
	res.Outcome = classify(status, env.Success, f.integrity)
	if res.Outcome != OutcomeSuccess {
		res.ServiceErrors = append([]ServiceError(nil), env.Errors...)
	}
	return res
}

func (f *Fetcher) notify(cmd Command, res *Result, detail *ErrorDetail) {
	if f.notifier == nil {
		return
	}
	f.notifier.Notify(cmd, res, detail)
}
