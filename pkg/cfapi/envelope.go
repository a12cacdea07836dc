package cfapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValidationMode selects how strictly a response body is checked against the
// documented envelope and how much of it must be present.
type ValidationMode string

const (
	// ValidateFull requires the complete envelope including a result key
	// (whose value may be null).
	ValidateFull ValidationMode = "full"
	// ValidateString skips envelope parsing entirely: the raw body is the
	// result and the outcome comes from the HTTP status alone.
	ValidateString ValidationMode = "string"
	// ValidateWithoutResult requires only the success flag and error list;
	// a missing result payload is not an error.
	ValidateWithoutResult ValidationMode = "without_result"
)

// ServiceError is one entry of the envelope's errors list.
type ServiceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e ServiceError) String() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Message is one entry of the envelope's informational messages list.
type Message struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ResultInfo carries pagination details for list responses.
type ResultInfo struct {
	Page       int    `json:"page,omitempty"`
	PerPage    int    `json:"per_page,omitempty"`
	Count      int    `json:"count,omitempty"`
	TotalCount int    `json:"total_count,omitempty"`
	Cursor     string `json:"cursor,omitempty"`
}

// Envelope is the documented response shape of the remote service. Success
// is a pointer and Result a RawMessage so that an absent field stays
// distinguishable from false / null: shape validation depends on it.
type Envelope struct {
	Success    *bool           `json:"success"`
	Result     json.RawMessage `json:"result"`
	Errors     []ServiceError  `json:"errors"`
	Messages   []Message       `json:"messages"`
	ResultInfo *ResultInfo     `json:"result_info,omitempty"`
}

// ShapeError explains why a body did not match the envelope expected for a
// validation mode. It is recorded, never thrown: Result.NormalShape reflects
// it and the caller decides how to react.
type ShapeError struct {
	Mode   ValidationMode
	Reason string
}

func (e *ShapeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("cfapi: response shape mismatch (%s): %s", e.Mode, e.Reason)
}

// parseEnvelope decodes body into an Envelope. Only JSON objects qualify;
// anything else reports a ShapeError so classification can fall back to the
// HTTP status.
func parseEnvelope(body []byte) (*Envelope, *ShapeError) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &ShapeError{Reason: "empty body"}
	}
	if trimmed[0] != '{' {
		return nil, &ShapeError{Reason: "body is not a JSON object"}
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &ShapeError{Reason: err.Error()}
	}
	return &env, nil
}

// checkShape verifies the envelope satisfies the given validation mode.
func (e *Envelope) checkShape(mode ValidationMode) *ShapeError {
	if e.Success == nil {
		return &ShapeError{Mode: mode, Reason: "missing success field"}
	}
	if mode == ValidateFull && e.Result == nil {
		return &ShapeError{Mode: mode, Reason: "missing result field"}
	}
	return nil
}
