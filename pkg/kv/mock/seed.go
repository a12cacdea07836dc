package mock

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SeedEntry is one key of a seed namespace.
type SeedEntry struct {
	Value      string          `json:"value"`
	TTLSeconds *int            `json:"ttl_seconds,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// SeedNamespace is one namespace of a seed file.
type SeedNamespace struct {
	Title   string               `json:"title"`
	Entries map[string]SeedEntry `json:"entries"`
}

// LoadSeed reads a JSON seed file: an array of namespaces with their
// initial entries.
func LoadSeed(path string) ([]SeedNamespace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mock kv: read seed file: %w", err)
	}
	var seed []SeedNamespace
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("mock kv: parse seed file: %w", err)
	}
	return seed, nil
}

// Seed creates the given namespaces and entries, returning the namespace
// IDs keyed by title.
func (s *Store) Seed(seed []SeedNamespace) (map[string]string, error) {
	ids := make(map[string]string, len(seed))
	now := s.clock()
	for _, sn := range seed {
		ns, err := s.CreateNamespace(sn.Title)
		if err != nil {
			return nil, err
		}
		ids[sn.Title] = ns.ID
		for key, e := range sn.Entries {
			var expires time.Time
			if e.TTLSeconds != nil && *e.TTLSeconds > 0 {
				expires = now.Add(time.Duration(*e.TTLSeconds) * time.Second)
			}
			if err := s.Write(ns.ID, key, e.Value, expires, e.Metadata); err != nil {
				return nil, err
			}
		}
	}
	return ids, nil
}
