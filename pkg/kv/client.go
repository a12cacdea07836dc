package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ansleehk/Cloudflare-KV-Driver/pkg/cfapi"
	"github.com/ansleehk/Cloudflare-KV-Driver/pkg/events"
)

// DefaultBaseURL is the production endpoint of the remote service.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// Option configures a Client.
type Option func(*settings)

type settings struct {
	baseURL    string
	logger     *slog.Logger
	integrity  bool
	httpClient *http.Client
}

// WithBaseURL points the client at a different API endpoint, e.g. a local
// sandbox.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) {
		if strings.TrimSpace(baseURL) != "" {
			s.baseURL = baseURL
		}
	}
}

// WithLogger overrides the diagnostic logger shared by the client, the
// classification core and the event bus.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIntegrityCheck toggles the status-vs-body consistency check (on by
// default).
func WithIntegrityCheck(enabled bool) Option {
	return func(s *settings) { s.integrity = enabled }
}

// WithHTTPClient overrides the underlying http.Client, e.g. to set a
// timeout policy.
func WithHTTPClient(h *http.Client) Option {
	return func(s *settings) { s.httpClient = h }
}

// Client provides access to the Workers KV REST API for one account.
type Client struct {
	fetcher   *cfapi.Fetcher
	bus       *events.Bus
	accountID string
	logger    *slog.Logger
}

// New constructs a Client for the given credentials.
func New(auth cfapi.Auth, opts ...Option) (*Client, error) {
	if strings.TrimSpace(auth.AccountID) == "" {
		return nil, fmt.Errorf("kv: account ID is required")
	}
	if strings.TrimSpace(auth.Email) == "" {
		return nil, fmt.Errorf("kv: account email is required")
	}
	if strings.TrimSpace(auth.APIKey) == "" {
		return nil, fmt.Errorf("kv: API key is required")
	}

	s := settings{
		baseURL:   DefaultBaseURL,
		logger:    slog.Default(),
		integrity: true,
	}
	for _, opt := range opts {
		opt(&s)
	}

	bus := events.NewBus(events.WithLogger(s.logger))
	fopts := []cfapi.FetcherOption{
		cfapi.WithNotifier(bus),
		cfapi.WithIntegrityCheck(s.integrity),
		cfapi.WithLogger(s.logger),
	}
	if s.httpClient != nil {
		fopts = append(fopts, cfapi.WithHTTPClient(s.httpClient))
	}

	fetcher, err := cfapi.NewFetcher(s.baseURL, auth, fopts...)
	if err != nil {
		return nil, fmt.Errorf("kv: init fetcher: %w", err)
	}

	return &Client{
		fetcher:   fetcher,
		bus:       bus,
		accountID: auth.AccountID,
		logger:    s.logger,
	}, nil
}

// Subscribe registers fn for operation events of the given kind. Register
// listeners before issuing operations; the listener list is read-only once
// calls are in flight.
func (c *Client) Subscribe(kind events.Kind, fn events.ListenerFunc) {
	c.bus.Subscribe(kind, fn)
}

// SubscribeAll registers l for all event kinds.
func (c *Client) SubscribeAll(l events.Listener) {
	c.bus.SubscribeAll(l)
}

// ListNamespaces returns the namespaces owned by the account, with the
// pagination details reported by the service.
func (c *Client) ListNamespaces(ctx context.Context, opts *ListNamespacesOptions) ([]Namespace, *cfapi.ResultInfo, error) {
	q := url.Values{}
	if opts != nil {
		if opts.Page > 0 {
			q.Set("page", strconv.Itoa(opts.Page))
		}
		if opts.PerPage > 0 {
			q.Set("per_page", strconv.Itoa(opts.PerPage))
		}
		if opts.Order != "" {
			q.Set("order", opts.Order)
		}
		if opts.Direction != "" {
			q.Set("direction", opts.Direction)
		}
	}

	cmd := c.command(cfapi.CommandNamespace, "list namespaces", nil, q, nil)
	res, err := c.do(ctx, cmd, cfapi.RequestSpec{
		Method: http.MethodGet,
		Path:   c.nsRoot(),
		Query:  q,
	}, cfapi.ValidateFull)
	if err != nil {
		return nil, nil, err
	}

	var namespaces []Namespace
	if err := decodeResult(res, &namespaces); err != nil {
		return nil, nil, err
	}
	return namespaces, res.Envelope.ResultInfo, nil
}

// CreateNamespace creates a namespace with the given title.
func (c *Client) CreateNamespace(ctx context.Context, title string) (*Namespace, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("kv: namespace title is required")
	}

	body := map[string]string{"title": title}
	cmd := c.command(cfapi.CommandNamespace, "create namespace", nil, nil, body)
	res, err := c.do(ctx, cmd, cfapi.RequestSpec{
		Method:  http.MethodPost,
		Path:    c.nsRoot(),
		Body:    body,
		Content: cfapi.ContentJSON,
	}, cfapi.ValidateFull)
	if err != nil {
		return nil, err
	}

	var ns Namespace
	if err := decodeResult(res, &ns); err != nil {
		return nil, err
	}
	return &ns, nil
}

// RenameNamespace changes the title of an existing namespace.
func (c *Client) RenameNamespace(ctx context.Context, namespaceID, title string) error {
	if strings.TrimSpace(namespaceID) == "" {
		return fmt.Errorf("kv: namespace ID is required")
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("kv: namespace title is required")
	}

	body := map[string]string{"title": title}
	cmd := c.command(cfapi.CommandNamespace, "rename namespace", []string{namespaceID}, nil, body)
	_, err := c.do(ctx, cmd, cfapi.RequestSpec{
		Method:  http.MethodPut,
		Path:    c.nsRoot() + "/" + url.PathEscape(namespaceID),
		Body:    body,
		Content: cfapi.ContentJSON,
	}, cfapi.ValidateWithoutResult)
	return err
}

// DeleteNamespace removes a namespace and every key stored in it.
func (c *Client) DeleteNamespace(ctx context.Context, namespaceID string) error {
	if strings.TrimSpace(namespaceID) == "" {
		return fmt.Errorf("kv: namespace ID is required")
	}

	cmd := c.command(cfapi.CommandNamespace, "delete namespace", []string{namespaceID}, nil, nil)
	_, err := c.do(ctx, cmd, cfapi.RequestSpec{
		Method: http.MethodDelete,
		Path:   c.nsRoot() + "/" + url.PathEscape(namespaceID),
	}, cfapi.ValidateWithoutResult)
	return err
}

// ListKeys returns one page of key names within a namespace.
func (c *Client) ListKeys(ctx context.Context, namespaceID string, opts *ListKeysOptions) (*KeyPage, error) {
	if strings.TrimSpace(namespaceID) == "" {
		return nil, fmt.Errorf("kv: namespace ID is required")
	}

	q := url.Values{}
	if opts != nil {
		if opts.Prefix != "" {
			q.Set("prefix", opts.Prefix)
		}
		if opts.Limit > 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Cursor != "" {
			q.Set("cursor", opts.Cursor)
		}
	}

	cmd := c.command(cfapi.CommandCRUD, "list keys", []string{namespaceID}, q, nil)
	res, err := c.do(ctx, cmd, cfapi.RequestSpec{
		Method: http.MethodGet,
		Path:   c.nsRoot() + "/" + url.PathEscape(namespaceID) + "/keys",
		Query:  q,
	}, cfapi.ValidateFull)
	if err != nil {
		return nil, err
	}

	var keys []KeyInfo
	if err := decodeResult(res, &keys); err != nil {
		return nil, err
	}
	page := &KeyPage{Keys: keys}
	if res.Envelope.ResultInfo != nil {
		page.Cursor = res.Envelope.ResultInfo.Cursor
	}
	return page, nil
}

// ReadValue fetches the raw value stored for a key. The response body is
// the value itself, so the outcome is derived from the HTTP status alone.
func (c *Client) ReadValue(ctx context.Context, namespaceID, key string) (string, error) {
	if err := requireKeyPair(namespaceID, key); err != nil {
		return "", err
	}

	cmd := c.command(cfapi.CommandCRUD, "read key-value pair", []string{namespaceID, key}, nil, nil)
	res, err := c.do(ctx, cmd, cfapi.RequestSpec{
		Method: http.MethodGet,
		Path:   c.valuePath(namespaceID, key),
	}, cfapi.ValidateString)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// ReadMetadata fetches the metadata stored alongside a key, as raw JSON.
func (c *Client) ReadMetadata(ctx context.Context, namespaceID, key string) (json.RawMessage, error) {
	if err := requireKeyPair(namespaceID, key); err != nil {
		return nil, err
	}

	cmd := c.command(cfapi.CommandCRUD, "read key metadata", []string{namespaceID, key}, nil, nil)
	res, err := c.do(ctx, cmd, cfapi.RequestSpec{
		Method: http.MethodGet,
		Path:   c.nsRoot() + "/" + url.PathEscape(namespaceID) + "/metadata/" + url.PathEscape(key),
	}, cfapi.ValidateFull)
	if err != nil {
		return nil, err
	}
	if res.Envelope == nil || res.Envelope.Result == nil {
		return nil, fmt.Errorf("kv: response is missing the result payload")
	}
	return append(json.RawMessage(nil), res.Envelope.Result...), nil
}

// WriteValue stores value under key. With metadata present the request goes
// out as a multipart form (one part for the value, one for the metadata);
// otherwise the value travels as plain text.
func (c *Client) WriteValue(ctx context.Context, namespaceID, key, value string, opts *WriteOptions) error {
	if err := requireKeyPair(namespaceID, key); err != nil {
		return err
	}

	q := c.expiryQuery(opts)

	var (
		body    any
		content cfapi.ContentKind
	)
	if opts != nil && opts.Metadata != nil {
		body = map[string]any{"value": value, "metadata": opts.Metadata}
		content = cfapi.ContentForm
	} else {
		body = value
		content = cfapi.ContentText
	}

	cmd := c.command(cfapi.CommandCRUD, "write key-value pair", []string{namespaceID, key}, q, body)
	_, err := c.do(ctx, cmd, cfapi.RequestSpec{
		Method:  http.MethodPut,
		Path:    c.valuePath(namespaceID, key),
		Query:   q,
		Body:    body,
		Content: content,
	}, cfapi.ValidateWithoutResult)
	return err
}

// WriteValueWithMetadata stores value together with its metadata in one
// multipart request. Expiry options other than Metadata are honoured.
func (c *Client) WriteValueWithMetadata(ctx context.Context, namespaceID, key, value string, metadata any, opts *WriteOptions) error {
	if metadata == nil {
		return fmt.Errorf("kv: metadata is required")
	}
	merged := WriteOptions{}
	if opts != nil {
		merged = *opts
	}
	merged.Metadata = metadata
	return c.WriteValue(ctx, namespaceID, key, value, &merged)
}

// WriteMultiple stores up to 10,000 key-value pairs in one request.
func (c *Client) WriteMultiple(ctx context.Context, namespaceID string, items []BulkWriteItem) error {
	if strings.TrimSpace(namespaceID) == "" {
		return fmt.Errorf("kv: namespace ID is required")
	}
	if len(items) == 0 {
		return fmt.Errorf("kv: at least one item is required")
	}
	for i := range items {
		if strings.TrimSpace(items[i].Key) == "" {
			return fmt.Errorf("kv: item %d is missing a key", i)
		}
	}

	cmd := c.command(cfapi.CommandCRUD, "write multiple key-value pairs", []string{namespaceID}, nil, items)
	_, err := c.do(ctx, cmd, cfapi.RequestSpec{
		Method:  http.MethodPut,
		Path:    c.nsRoot() + "/" + url.PathEscape(namespaceID) + "/bulk",
		Body:    items,
		Content: cfapi.ContentJSON,
	}, cfapi.ValidateWithoutResult)
	return err
}

// DeleteValue removes a single key.
func (c *Client) DeleteValue(ctx context.Context, namespaceID, key string) error {
	if err := requireKeyPair(namespaceID, key); err != nil {
		return err
	}

	cmd := c.command(cfapi.CommandCRUD, "delete key-value pair", []string{namespaceID, key}, nil, nil)
	_, err := c.do(ctx, cmd, cfapi.RequestSpec{
		Method: http.MethodDelete,
		Path:   c.valuePath(namespaceID, key),
	}, cfapi.ValidateWithoutResult)
	return err
}

// DeleteMultiple removes up to 10,000 keys in one request.
func (c *Client) DeleteMultiple(ctx context.Context, namespaceID string, keys []string) error {
	if strings.TrimSpace(namespaceID) == "" {
		return fmt.Errorf("kv: namespace ID is required")
	}
	if len(keys) == 0 {
		return fmt.Errorf("kv: at least one key is required")
	}

	cmd := c.command(cfapi.CommandCRUD, "delete multiple key-value pairs", []string{namespaceID}, nil, keys)
	_, err := c.do(ctx, cmd, cfapi.RequestSpec{
		Method:  http.MethodDelete,
		Path:    c.nsRoot() + "/" + url.PathEscape(namespaceID) + "/bulk",
		Body:    keys,
		Content: cfapi.ContentJSON,
	}, cfapi.ValidateWithoutResult)
	return err
}

// do runs one fetch and converts non-success outcomes into typed errors.
func (c *Client) do(ctx context.Context, cmd cfapi.Command, spec cfapi.RequestSpec, mode cfapi.ValidationMode) (*cfapi.Result, error) {
	res, err := c.fetcher.Fetch(ctx, cmd, spec, mode)
	if err != nil {
		return nil, err
	}

	switch res.Outcome {
	case cfapi.OutcomeSuccess:
		return res, nil
	case cfapi.OutcomeUncertain:
		return nil, &UncertainError{Command: cmd.Name, HTTP: res.HTTP}
	default:
		return nil, &OperationError{Command: cmd.Name, Errors: res.ServiceErrors, HTTP: res.HTTP}
	}
}

func (c *Client) command(typ cfapi.CommandType, name string, pathParams []string, q url.Values, data any) cfapi.Command {
	return cfapi.Command{
		Type: typ,
		Name: name,
		Input: cfapi.CommandInput{
			PathParams: pathParams,
			Query:      q,
			Data:       data,
		},
	}
}

func (c *Client) nsRoot() string {
	return "accounts/" + url.PathEscape(c.accountID) + "/storage/kv/namespaces"
}

func (c *Client) valuePath(namespaceID, key string) string {
	return c.nsRoot() + "/" + url.PathEscape(namespaceID) + "/values/" + url.PathEscape(key)
}

// expiryQuery builds the expiry query parameters. When both fields are set
// ExpirationTTL wins; the conflict is logged, not rejected.
func (c *Client) expiryQuery(opts *WriteOptions) url.Values {
	q := url.Values{}
	if opts == nil {
		return q
	}
	expiration, ttl := opts.Expiration, opts.ExpirationTTL
	if expiration > 0 && ttl > 0 {
		c.logger.Warn("both expiration and expiration_ttl supplied; using expiration_ttl",
			"expiration", expiration,
			"expiration_ttl", ttl,
		)
		expiration = 0
	}
	if ttl > 0 {
		q.Set("expiration_ttl", strconv.FormatInt(ttl, 10))
	} else if expiration > 0 {
		q.Set("expiration", strconv.FormatInt(expiration, 10))
	}
	return q
}

func requireKeyPair(namespaceID, key string) error {
	if strings.TrimSpace(namespaceID) == "" {
		return fmt.Errorf("kv: namespace ID is required")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("kv: key is required")
	}
	return nil
}

func decodeResult(res *cfapi.Result, out any) error {
	if res == nil || res.Envelope == nil || res.Envelope.Result == nil {
		return fmt.Errorf("kv: response is missing the result payload")
	}
	if err := json.Unmarshal(res.Envelope.Result, out); err != nil {
		return fmt.Errorf("kv: decode result: %w", err)
	}
	return nil
}
