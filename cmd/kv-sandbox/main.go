// Command kv-sandbox serves an in-memory Workers KV API double on localhost.
// It answers the same routes and envelope format as the hosted service, can
// be seeded from a JSON file, and supports latency and failure injection for
// exercising client classification paths.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ansleehk/Cloudflare-KV-Driver/pkg/kv/mock"
)

type failConfig struct {
	rate float64
	code int
}

type serviceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success    bool           `json:"success"`
	Result     any            `json:"result"`
	Errors     []serviceError `json:"errors"`
	Messages   []string       `json:"messages"`
	ResultInfo any            `json:"result_info,omitempty"`
}

func main() {
	addr := flag.String("addr", ":8788", "listen address")
	seedPath := flag.String("seed", "", "path to JSON seed file")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	flag.Parse()

	store := mock.New()
	if *seedPath != "" {
		seed, err := mock.LoadSeed(*seedPath)
		if err != nil {
			log.Fatalf("load seed: %v", err)
		}
		ids, err := store.Seed(seed)
		if err != nil {
			log.Fatalf("apply seed: %v", err)
		}
		for title, id := range ids {
			log.Printf("seeded namespace %q as %s", title, id)
		}
	}

	failCfg, err := parseFailConfig(*fail)
	if err != nil {
		log.Fatalf("parse fail flag: %v", err)
	}

	srv := &server{store: store}
	mux := http.NewServeMux()

	const nsRoot = "/client/v4/accounts/{account}/storage/kv/namespaces"
	mux.HandleFunc("GET "+nsRoot, srv.listNamespaces)
	mux.HandleFunc("POST "+nsRoot, srv.createNamespace)
	mux.HandleFunc("PUT "+nsRoot+"/{ns}", srv.renameNamespace)
	mux.HandleFunc("DELETE "+nsRoot+"/{ns}", srv.deleteNamespace)
	mux.HandleFunc("GET "+nsRoot+"/{ns}/keys", srv.listKeys)
	mux.HandleFunc("GET "+nsRoot+"/{ns}/values/{key}", srv.readValue)
	mux.HandleFunc("PUT "+nsRoot+"/{ns}/values/{key}", srv.writeValue)
	mux.HandleFunc("DELETE "+nsRoot+"/{ns}/values/{key}", srv.deleteValue)
	mux.HandleFunc("GET "+nsRoot+"/{ns}/metadata/{key}", srv.readMetadata)
	mux.HandleFunc("PUT "+nsRoot+"/{ns}/bulk", srv.writeBulk)
	mux.HandleFunc("DELETE "+nsRoot+"/{ns}/bulk", srv.deleteBulk)

	log.Printf("kv-sandbox listening on %s", *addr)
	if err := http.ListenAndServe(*addr, withMiddleware(*latency, failCfg, mux)); err != nil {
		log.Fatal(err)
	}
}

func withMiddleware(latency time.Duration, fail failConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if latency > 0 {
			time.Sleep(latency)
		}
		if fail.rate > 0 && rand.Float64() < fail.rate {
			writeEnvelope(w, fail.code, false, nil, []serviceError{{Code: 10000, Message: "injected failure"}}, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseFailConfig(raw string) (failConfig, error) {
	cfg := failConfig{code: http.StatusInternalServerError}
	if strings.TrimSpace(raw) == "" {
		return cfg, nil
	}
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return cfg, fmt.Errorf("invalid fail segment %q", part)
		}
		switch k {
		case "rate":
			rate, err := strconv.ParseFloat(v, 64)
			if err != nil || rate < 0 || rate > 1 {
				return cfg, fmt.Errorf("invalid fail rate %q", v)
			}
			cfg.rate = rate
		case "code":
			code, err := strconv.Atoi(v)
			if err != nil || code < 400 || code > 599 {
				return cfg, fmt.Errorf("invalid fail code %q", v)
			}
			cfg.code = code
		default:
			return cfg, fmt.Errorf("unknown fail key %q", k)
		}
	}
	return cfg, nil
}

type server struct {
	store *mock.Store
}

func (s *server) listNamespaces(w http.ResponseWriter, r *http.Request) {
	namespaces := s.store.ListNamespaces()
	info := map[string]int{
		"page":        1,
		"per_page":    len(namespaces),
		"count":       len(namespaces),
		"total_count": len(namespaces),
	}
	writeEnvelope(w, http.StatusOK, true, namespaces, nil, info)
}

func (s *server) createNamespace(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, nil, []serviceError{{Code: 10019, Message: "invalid request body"}}, nil)
		return
	}
	ns, err := s.store.CreateNamespace(payload.Title)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, true, ns, nil, nil)
}

func (s *server) renameNamespace(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, nil, []serviceError{{Code: 10019, Message: "invalid request body"}}, nil)
		return
	}
	if err := s.store.RenameNamespace(r.PathValue("ns"), payload.Title); err != nil {
		writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, true, nil, nil, nil)
}

func (s *server) deleteNamespace(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteNamespace(r.PathValue("ns")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, true, nil, nil, nil)
}

func (s *server) listKeys(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	page, err := s.store.ListKeys(r.PathValue("ns"), q.Get("prefix"), q.Get("cursor"), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	info := map[string]any{"count": len(page.Keys), "cursor": page.Cursor}
	writeEnvelope(w, http.StatusOK, true, page.Keys, nil, info)
}

func (s *server) readValue(w http.ResponseWriter, r *http.Request) {
	value, err := s.store.Read(r.PathValue("ns"), r.PathValue("key"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(value))
}

func (s *server) readMetadata(w http.ResponseWriter, r *http.Request) {
	metadata, err := s.store.ReadMetadata(r.PathValue("ns"), r.PathValue("key"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, true, metadata, nil, nil)
}

func (s *server) writeValue(w http.ResponseWriter, r *http.Request) {
	var (
		value    string
		metadata json.RawMessage
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeEnvelope(w, http.StatusBadRequest, false, nil, []serviceError{{Code: 10019, Message: "invalid multipart body"}}, nil)
			return
		}
		value = r.FormValue("value")
		if raw := r.FormValue("metadata"); raw != "" {
			metadata = json.RawMessage(raw)
		}
	} else {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, false, nil, []serviceError{{Code: 10019, Message: "read request body"}}, nil)
			return
		}
		value = string(data)
	}

	expiresAt, err := expiryFromQuery(r)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, nil, []serviceError{{Code: 10022, Message: err.Error()}}, nil)
		return
	}
	if err := s.store.Write(r.PathValue("ns"), r.PathValue("key"), value, expiresAt, metadata); err != nil {
		writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, true, nil, nil, nil)
}

func (s *server) deleteValue(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.PathValue("ns"), r.PathValue("key")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, true, nil, nil, nil)
}

func (s *server) writeBulk(w http.ResponseWriter, r *http.Request) {
	var items []struct {
		Key           string          `json:"key"`
		Value         string          `json:"value"`
		Expiration    int64           `json:"expiration"`
		ExpirationTTL int64           `json:"expiration_ttl"`
		Metadata      json.RawMessage `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, nil, []serviceError{{Code: 10019, Message: "invalid request body"}}, nil)
		return
	}
	ns := r.PathValue("ns")
	for _, item := range items {
		var expiresAt time.Time
		switch {
		case item.ExpirationTTL > 0:
			expiresAt = time.Now().Add(time.Duration(item.ExpirationTTL) * time.Second)
		case item.Expiration > 0:
			expiresAt = time.Unix(item.Expiration, 0)
		}
		if err := s.store.Write(ns, item.Key, item.Value, expiresAt, item.Metadata); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	writeEnvelope(w, http.StatusOK, true, nil, nil, nil)
}

func (s *server) deleteBulk(w http.ResponseWriter, r *http.Request) {
	var keys []string
	if err := json.NewDecoder(r.Body).Decode(&keys); err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, nil, []serviceError{{Code: 10019, Message: "invalid request body"}}, nil)
		return
	}
	if err := s.store.DeleteMultiple(r.PathValue("ns"), keys); err != nil {
		writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, true, nil, nil, nil)
}

func expiryFromQuery(r *http.Request) (time.Time, error) {
	q := r.URL.Query()
	if raw := q.Get("expiration_ttl"); raw != "" {
		ttl, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ttl <= 0 {
			return time.Time{}, fmt.Errorf("invalid expiration_ttl %q", raw)
		}
		return time.Now().Add(time.Duration(ttl) * time.Second), nil
	}
	if raw := q.Get("expiration"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ts <= 0 {
			return time.Time{}, fmt.Errorf("invalid expiration %q", raw)
		}
		return time.Unix(ts, 0), nil
	}
	return time.Time{}, nil
}

func writeStoreError(w http.ResponseWriter, err error) {
	var nf *mock.NotFoundError
	if errors.As(err, &nf) {
		writeEnvelope(w, http.StatusNotFound, false, nil, []serviceError{{Code: nf.Code, Message: nf.What}}, nil)
		return
	}
	writeEnvelope(w, http.StatusBadRequest, false, nil, []serviceError{{Code: 10029, Message: err.Error()}}, nil)
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, result any, errs []serviceError, info any) {
	if errs == nil {
		errs = []serviceError{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success:    success,
		Result:     result,
		Errors:     errs,
		Messages:   []string{},
		ResultInfo: info,
	})
}
