package cfapi

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/ansleehk/Cloudflare-KV-Driver/internal/httpx"
)

// ContentKind names the logical encoding of a request body.
type ContentKind int

const (
	// ContentNone sends no body and no content headers.
	ContentNone ContentKind = iota
	// ContentText sends the body verbatim as UTF-8 text.
	ContentText
	// ContentJSON sends the body as a JSON document.
	ContentJSON
	// ContentForm sends the body fields as multipart/form-data parts.
	ContentForm
)

// Interpretation declares how a response body should be read.
type Interpretation int

const (
	// InterpretJSON parses the response body as a JSON envelope.
	InterpretJSON Interpretation = iota
	// InterpretText treats the raw response body as the result value.
	InterpretText
)

// Interpretation returns the response reading usually paired with the kind.
// It guides the caller's choice of validation mode; the mode passed to Fetch
// is what actually governs response parsing.
func (k ContentKind) Interpretation() Interpretation {
	if k == ContentText {
		return InterpretText
	}
	return InterpretJSON
}

// SerializationError reports that a request body could not be encoded for
// its declared content kind. The request is never sent.
type SerializationError struct {
	Kind ContentKind
	Err  error
}

func (e *SerializationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("cfapi: encode body (kind %d): %v", e.Kind, e.Err)
}

func (e *SerializationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Prepare encodes body for the given content kind and returns the content
// headers plus the encoded payload. ContentNone ignores the body entirely.
func Prepare(kind ContentKind, body any) (http.Header, []byte, error) {
	switch kind {
	case ContentNone:
		return nil, nil, nil
	case ContentText:
		data, err := textBytes(body)
		if err != nil {
			return nil, nil, &SerializationError{Kind: kind, Err: err}
		}
		h := make(http.Header)
		h.Set("Content-Type", "text/plain; charset=utf-8")
		return h, data, nil
	case ContentJSON:
		data, err := httpx.JSONMarshal(body)
		if err != nil {
			return nil, nil, &SerializationError{Kind: kind, Err: err}
		}
		h := make(http.Header)
		h.Set("Content-Type", "application/json")
		return h, data, nil
	case ContentForm:
		fields, ok := body.(map[string]any)
		if !ok {
			return nil, nil, &SerializationError{Kind: kind, Err: fmt.Errorf("form body must be map[string]any, got %T", body)}
		}
		h, data, err := encodeForm(fields)
		if err != nil {
			return nil, nil, &SerializationError{Kind: kind, Err: err}
		}
		return h, data, nil
	default:
		return nil, nil, &SerializationError{Kind: kind, Err: fmt.Errorf("unknown content kind %d", kind)}
	}
}

// encodeForm writes each field as one multipart part. String and byte
// values go out verbatim; structured values are embedded as JSON.
func encodeForm(fields map[string]any) (http.Header, []byte, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, name := range names {
		part, err := w.CreateFormField(name)
		if err != nil {
			return nil, nil, err
		}
		data, err := textBytes(fields[name])
		if err != nil {
			data, err = httpx.JSONMarshal(fields[name])
			if err != nil {
				return nil, nil, fmt.Errorf("field %q: %w", name, err)
			}
		}
		if _, err := part.Write(data); err != nil {
			return nil, nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, nil, err
	}

	h := make(http.Header)
	h.Set("Content-Type", w.FormDataContentType())
	return h, buf.Bytes(), nil
}

func textBytes(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return append([]byte(nil), v...), nil
	case fmt.Stringer:
		return []byte(v.String()), nil
	default:
		return nil, fmt.Errorf("text body must be string or []byte, got %T", body)
	}
}
