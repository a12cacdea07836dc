// Package mock implements an in-memory Workers KV double with namespace,
// TTL and metadata semantics. It backs the kv-sandbox command and tests; it
// makes no claim of byte-for-byte fidelity with the hosted service.
package mock

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ansleehk/Cloudflare-KV-Driver/pkg/kv"
)

type entry struct {
	value     string
	metadata  json.RawMessage
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type namespace struct {
	title   string
	entries map[string]*entry
}

// Store is an in-memory replacement for the remote KV service.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace
	now        func() time.Time
}

// Option configures the mock store.
type Option func(*Store)

// WithClock overrides the clock used for TTL bookkeeping (useful in tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		namespaces: make(map[string]*namespace),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now()
}

func newNamespaceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateNamespace adds a namespace; duplicate titles are rejected the way
// the remote service rejects them.
func (s *Store) CreateNamespace(title string) (kv.Namespace, error) {
	if strings.TrimSpace(title) == "" {
		return kv.Namespace{}, fmt.Errorf("mock kv: namespace title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ns := range s.namespaces {
		if ns.title == title {
			return kv.Namespace{}, fmt.Errorf("mock kv: namespace %q already exists", title)
		}
	}

	id := newNamespaceID()
	s.namespaces[id] = &namespace{title: title, entries: make(map[string]*entry)}
	return kv.Namespace{ID: id, Title: title, SupportsURLEncoding: true}, nil
}

// ListNamespaces returns all namespaces ordered by title.
func (s *Store) ListNamespaces() []kv.Namespace {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]kv.Namespace, 0, len(s.namespaces))
	for id, ns := range s.namespaces {
		out = append(out, kv.Namespace{ID: id, Title: ns.title, SupportsURLEncoding: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// RenameNamespace updates a namespace title.
func (s *Store) RenameNamespace(id, title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("mock kv: namespace title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[id]
	if !ok {
		return errNamespaceNotFound(id)
	}
	ns.title = title
	return nil
}

// DeleteNamespace removes a namespace and all of its keys.
func (s *Store) DeleteNamespace(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.namespaces[id]; !ok {
		return errNamespaceNotFound(id)
	}
	delete(s.namespaces, id)
	return nil
}

// Write stores value under key. A zero expiresAt means no expiry.
func (s *Store) Write(nsID, key, value string, expiresAt time.Time, metadata json.RawMessage) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("mock kv: key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[nsID]
	if !ok {
		return errNamespaceNotFound(nsID)
	}
	ns.entries[key] = &entry{
		value:     value,
		metadata:  append(json.RawMessage(nil), metadata...),
		expiresAt: expiresAt,
	}
	return nil
}

// Read returns the value stored for key. Expired entries read as missing.
func (s *Store) Read(nsID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(nsID, key)
	if err != nil {
		return "", err
	}
	return e.value, nil
}

// ReadMetadata returns the metadata stored for key, or JSON null when none
// was supplied at write time.
func (s *Store) ReadMetadata(nsID, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(nsID, key)
	if err != nil {
		return nil, err
	}
	if len(e.metadata) == 0 {
		return json.RawMessage("null"), nil
	}
	return append(json.RawMessage(nil), e.metadata...), nil
}

// Delete removes a single key.
func (s *Store) Delete(nsID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[nsID]
	if !ok {
		return errNamespaceNotFound(nsID)
	}
	e, ok := ns.entries[key]
	if !ok || e.expired(s.clock()) {
		delete(ns.entries, key)
		return errKeyNotFound(key)
	}
	delete(ns.entries, key)
	return nil
}

// DeleteMultiple removes keys, ignoring ones that are already gone, which
// matches the bulk endpoint's behaviour.
func (s *Store) DeleteMultiple(nsID string, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[nsID]
	if !ok {
		return errNamespaceNotFound(nsID)
	}
	for _, key := range keys {
		delete(ns.entries, key)
	}
	return nil
}

// ListKeys returns one page of live keys sorted by name.
func (s *Store) ListKeys(nsID, prefix, cursor string, limit int) (*kv.KeyPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns, ok := s.namespaces[nsID]
	if !ok {
		return nil, errNamespaceNotFound(nsID)
	}

	now := s.clock()
	names := make([]string, 0, len(ns.entries))
	for name, e := range ns.entries {
		if e.expired(now) {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	start := 0
	if cursor != "" {
		start = sort.SearchStrings(names, cursor)
		for start < len(names) && names[start] <= cursor {
			start++
		}
	}
	end := len(names)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	page := &kv.KeyPage{Keys: make([]kv.KeyInfo, 0, end-start)}
	for _, name := range names[start:end] {
		e := ns.entries[name]
		info := kv.KeyInfo{Name: name}
		if !e.expiresAt.IsZero() {
			info.Expiration = e.expiresAt.Unix()
		}
		if len(e.metadata) > 0 {
			info.Metadata = append(json.RawMessage(nil), e.metadata...)
		}
		page.Keys = append(page.Keys, info)
	}
	if end < len(names) && end > 0 {
		page.Cursor = names[end-1]
	}
	return page, nil
}

func (s *Store) lookup(nsID, key string) (*entry, error) {
	ns, ok := s.namespaces[nsID]
	if !ok {
		return nil, errNamespaceNotFound(nsID)
	}
	e, ok := ns.entries[key]
	if !ok || e.expired(s.clock()) {
		return nil, errKeyNotFound(key)
	}
	return e, nil
}

// NotFoundError distinguishes missing namespaces and keys from other mock
// failures so the sandbox can answer 404 with the matching service code.
type NotFoundError struct {
	Code int
	What string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("mock kv: %s (code %d)", e.What, e.Code)
}

func errNamespaceNotFound(id string) error {
	return &NotFoundError{Code: 10013, What: fmt.Sprintf("namespace %q not found", id)}
}

func errKeyNotFound(key string) error {
	return &NotFoundError{Code: 10009, What: fmt.Sprintf("key %q not found", key)}
}
