package cfapi

import "net/http"

// BodyKind records the broad shape the response body parsed into.
type BodyKind string

const (
	// BodyNone marks an empty response body.
	BodyNone BodyKind = ""
	// BodyObject marks a body parsed as a JSON envelope.
	BodyObject BodyKind = "object"
	// BodyString marks a body kept as raw text.
	BodyString BodyKind = "string"
)

// HTTPMeta preserves the raw transport-level facts of one response.
type HTTPMeta struct {
	Status  int
	Headers http.Header
	RawBody []byte
}

// Result is the normalized record produced for every answered request. It is
// immutable once returned; the facade and every event listener receive the
// same values.
type Result struct {
	// NormalShape is true only when the body matched the documented
	// envelope for the requested validation mode. It is independent of the
	// outcome: a failed operation can still answer in the normal shape.
	NormalShape bool
	// Outcome is the classified success determination.
	Outcome Outcome
	// HTTP holds the raw status, headers and body.
	HTTP HTTPMeta
	// BodyKind says which of Envelope or Text carries the parsed body.
	BodyKind BodyKind
	// Envelope is the parsed body when BodyKind is BodyObject.
	Envelope *Envelope
	// Text is the parsed body when BodyKind is BodyString.
	Text string
	// ServiceErrors copies the envelope's errors list; empty on success.
	ServiceErrors []ServiceError
}

// ErrorDetail is a caught error flattened into a plain structure for event
// listeners.
type ErrorDetail struct {
	Message string `json:"message"`
}

// NewErrorDetail flattens err; it returns nil for a nil error.
func NewErrorDetail(err error) *ErrorDetail {
	if err == nil {
		return nil
	}
	return &ErrorDetail{Message: err.Error()}
}

// Notifier receives the completion notification fired after every operation
// that reached the network. A nil result signals a transport failure.
type Notifier interface {
	Notify(cmd Command, res *Result, detail *ErrorDetail)
}
