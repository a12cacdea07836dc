package mock

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNamespaceLifecycle(t *testing.T) {
	store := New()

	ns, err := store.CreateNamespace("cache")
	if err != nil {
		t.Fatalf("CreateNamespace: %v", err)
	}
	if ns.ID == "" || ns.Title != "cache" {
		t.Fatalf("unexpected namespace: %#v", ns)
	}

	if _, err := store.CreateNamespace("cache"); err == nil {
		t.Fatal("duplicate title must be rejected")
	}

	if err := store.RenameNamespace(ns.ID, "cache-v2"); err != nil {
		t.Fatalf("RenameNamespace: %v", err)
	}
	all := store.ListNamespaces()
	if len(all) != 1 || all[0].Title != "cache-v2" {
		t.Fatalf("unexpected listing: %#v", all)
	}

	if err := store.DeleteNamespace(ns.ID); err != nil {
		t.Fatalf("DeleteNamespace: %v", err)
	}
	var nf *NotFoundError
	if err := store.DeleteNamespace(ns.ID); !errors.As(err, &nf) || nf.Code != 10013 {
		t.Fatalf("expected namespace NotFoundError, got %v", err)
	}
}

func TestWriteReadDelete(t *testing.T) {
	store := New()
	ns, err := store.CreateNamespace("data")
	if err != nil {
		t.Fatalf("CreateNamespace: %v", err)
	}

	if err := store.Write(ns.ID, "k", "v", time.Time{}, json.RawMessage(`{"m":1}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	value, err := store.Read(ns.ID, "k")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if value != "v" {
		t.Fatalf("value = %q", value)
	}

	metadata, err := store.ReadMetadata(ns.ID, "k")
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if string(metadata) != `{"m":1}` {
		t.Fatalf("metadata = %s", metadata)
	}

	if err := store.Delete(ns.ID, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var nf *NotFoundError
	if _, err := store.Read(ns.ID, "k"); !errors.As(err, &nf) || nf.Code != 10009 {
		t.Fatalf("expected key NotFoundError, got %v", err)
	}
}

func TestExpiredKeysReadAsMissing(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := New(WithClock(func() time.Time { return now }))

	ns, err := store.CreateNamespace("ttl")
	if err != nil {
		t.Fatalf("CreateNamespace: %v", err)
	}
	if err := store.Write(ns.ID, "short", "v", now.Add(time.Minute), nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Write(ns.ID, "forever", "v", time.Time{}, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := store.Read(ns.ID, "short"); err != nil {
		t.Fatalf("unexpired key should read: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Read(ns.ID, "short"); err == nil {
		t.Fatal("expired key must read as missing")
	}
	if _, err := store.Read(ns.ID, "forever"); err != nil {
		t.Fatalf("key without expiry must survive: %v", err)
	}

	page, err := store.ListKeys(ns.ID, "", "", 0)
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(page.Keys) != 1 || page.Keys[0].Name != "forever" {
		t.Fatalf("unexpected listing: %#v", page.Keys)
	}
}

func TestListKeysPrefixAndPaging(t *testing.T) {
	store := New()
	ns, err := store.CreateNamespace("paging")
	if err != nil {
		t.Fatalf("CreateNamespace: %v", err)
	}
	for _, name := range []string{"jobs:1", "jobs:2", "jobs:3", "users:1"} {
		if err := store.Write(ns.ID, name, "v", time.Time{}, nil); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
	}

	first, err := store.ListKeys(ns.ID, "jobs:", "", 2)
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(first.Keys) != 2 || first.Cursor == "" {
		t.Fatalf("unexpected first page: %#v", first)
	}

	second, err := store.ListKeys(ns.ID, "jobs:", first.Cursor, 2)
	if err != nil {
		t.Fatalf("ListKeys second page: %v", err)
	}
	if len(second.Keys) != 1 || second.Keys[0].Name != "jobs:3" || second.Cursor != "" {
		t.Fatalf("unexpected second page: %#v", second)
	}
}

func TestSeed(t *testing.T) {
	store := New()
	ttl := 60
	ids, err := store.Seed([]SeedNamespace{
		{
			Title: "seeded",
			Entries: map[string]SeedEntry{
				"greeting": {Value: "hello", TTLSeconds: &ttl, Metadata: json.RawMessage(`{"src":"seed"}`)},
			},
		},
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}

	id, ok := ids["seeded"]
	if !ok {
		t.Fatalf("seed did not report the namespace ID: %v", ids)
	}
	value, err := store.Read(id, "greeting")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if value != "hello" {
		t.Fatalf("value = %q", value)
	}
}
