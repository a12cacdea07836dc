package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ansleehk/Cloudflare-KV-Driver/pkg/cfapi"
)

// Namespace is one Workers KV namespace.
type Namespace struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	SupportsURLEncoding bool   `json:"supports_url_encoding"`
}

// KeyInfo describes one stored key as reported by the list endpoint.
type KeyInfo struct {
	Name       string          `json:"name"`
	Expiration int64           `json:"expiration,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// KeyPage is one page of a key listing. An empty Cursor means the listing
// is complete.
type KeyPage struct {
	Keys   []KeyInfo
	Cursor string
}

// ListNamespacesOptions controls namespace listing. Zero values are omitted
// from the query.
type ListNamespacesOptions struct {
	Page      int
	PerPage   int
	Order     string // "id" or "title"
	Direction string // "asc" or "desc"
}

// ListKeysOptions controls key listing within a namespace.
type ListKeysOptions struct {
	Prefix string
	Limit  int
	Cursor string
}

// WriteOptions controls expiry and metadata for a single write. When both
// Expiration and ExpirationTTL are set, ExpirationTTL wins and a warning is
// logged.
type WriteOptions struct {
	// Expiration is an absolute unix timestamp (seconds).
	Expiration int64
	// ExpirationTTL is a lifetime in seconds from now.
	ExpirationTTL int64
	// Metadata is stored alongside the value and returned by key listings.
	Metadata any
}

// BulkWriteItem is one entry of a bulk write request.
type BulkWriteItem struct {
	Key           string `json:"key"`
	Value         string `json:"value"`
	Expiration    int64  `json:"expiration,omitempty"`
	ExpirationTTL int64  `json:"expiration_ttl,omitempty"`
	Metadata      any    `json:"metadata,omitempty"`
	Base64        bool   `json:"base64,omitempty"`
}

// ErrNotFound matches OperationErrors caused by a missing key or namespace,
// for use with errors.Is.
var ErrNotFound = errors.New("kv: not found")

// Upstream service error codes that mean "not found".
const (
	codeKeyNotFound       = 10009
	codeNamespaceNotFound = 10013
)

// OperationError reports an operation the service confirmed as failed. It
// carries the service error list when the response supplied one, and always
// the raw HTTP metadata.
type OperationError struct {
	Command string
	Errors  []cfapi.ServiceError
	HTTP    cfapi.HTTPMeta
}

func (e *OperationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Errors) == 0 {
		return fmt.Sprintf("kv: %s failed: status %d", e.Command, e.HTTP.Status)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, se := range e.Errors {
		msgs = append(msgs, se.String())
	}
	return fmt.Sprintf("kv: %s failed: %s", e.Command, strings.Join(msgs, "; "))
}

func (e *OperationError) Is(target error) bool {
	if target != ErrNotFound {
		return false
	}
	for _, se := range e.Errors {
		if se.Code == codeKeyNotFound || se.Code == codeNamespaceNotFound {
			return true
		}
	}
	return e.HTTP.Status == http.StatusNotFound
}

// UncertainError reports an operation whose outcome could not be trusted:
// the status code and the body-level success marker contradict each other.
// It deliberately does not claim failure.
type UncertainError struct {
	Command string
	HTTP    cfapi.HTTPMeta
}

func (e *UncertainError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("kv: %s outcome uncertain: status %d and response body disagree; the operation may or may not have been applied", e.Command, e.HTTP.Status)
}
