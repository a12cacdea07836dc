package cfapi

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"
)

func TestPrepareNone(t *testing.T) {
	headers, payload, err := Prepare(ContentNone, map[string]string{"ignored": "yes"})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if headers != nil || payload != nil {
		t.Fatalf("ContentNone should produce no headers and no payload, got %v / %q", headers, payload)
	}
}

func TestPrepareText(t *testing.T) {
	headers, payload, err := Prepare(ContentText, "hello world")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if got := headers.Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("Content-Type = %q, want text/plain", got)
	}
	if string(payload) != "hello world" {
		t.Fatalf("payload = %q, want verbatim text", payload)
	}

	if _, _, err := Prepare(ContentText, 42); err == nil {
		t.Fatal("expected SerializationError for non-text body")
	}
}

func TestPrepareJSON(t *testing.T) {
	headers, payload, err := Prepare(ContentJSON, map[string]string{"title": "ns"})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if got := headers.Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", got)
	}
	if string(payload) != `{"title":"ns"}` {
		t.Fatalf("payload = %q", payload)
	}
}

func TestPrepareJSONSerializationError(t *testing.T) {
	_, _, err := Prepare(ContentJSON, func() {})
	var serErr *SerializationError
	if !errors.As(err, &serErr) {
		t.Fatalf("expected *SerializationError, got %T: %v", err, err)
	}
}

func TestPrepareForm(t *testing.T) {
	body := map[string]any{
		"value":    "raw bytes",
		"metadata": map[string]string{"owner": "tests"},
	}
	headers, payload, err := Prepare(ContentForm, body)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	mediaType, params, err := mime.ParseMediaType(headers.Get("Content-Type"))
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	if mediaType != "multipart/form-data" {
		t.Fatalf("media type = %q", mediaType)
	}

	reader := multipart.NewReader(bytes.NewReader(payload), params["boundary"])
	parts := map[string]string{}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read part: %v", err)
		}
		data, err := io.ReadAll(part)
		if err != nil {
			t.Fatalf("read part body: %v", err)
		}
		parts[part.FormName()] = string(data)
	}

	if parts["value"] != "raw bytes" {
		t.Fatalf("value part = %q", parts["value"])
	}
	if parts["metadata"] != `{"owner":"tests"}` {
		t.Fatalf("metadata part = %q", parts["metadata"])
	}
}

func TestPrepareFormRejectsNonMap(t *testing.T) {
	_, _, err := Prepare(ContentForm, "not a map")
	var serErr *SerializationError
	if !errors.As(err, &serErr) {
		t.Fatalf("expected *SerializationError, got %T: %v", err, err)
	}
}

func TestInterpretation(t *testing.T) {
	if ContentText.Interpretation() != InterpretText {
		t.Fatal("text content should be interpreted as text")
	}
	for _, kind := range []ContentKind{ContentNone, ContentJSON, ContentForm} {
		if kind.Interpretation() != InterpretJSON {
			t.Fatalf("kind %d should be interpreted as JSON", kind)
		}
	}
}
