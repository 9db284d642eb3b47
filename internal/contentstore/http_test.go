package contentstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPStoreUploadAndFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/pins":
			if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
				t.Fatalf("Authorization = %q", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"cid": "bafytest"})
		case r.Method == http.MethodGet && r.URL.Path == "/ipfs/bafytest":
			_ = json.NewEncoder(w).Encode(map[string]string{"hello": "world"})
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	s, err := NewHTTPStore(srv.URL, srv.URL, "key-123")
	if err != nil {
		t.Fatalf("NewHTTPStore() error = %v", err)
	}

	uri, err := s.UploadJSON(context.Background(), map[string]string{"hello": "world"})
	if err != nil {
		t.Fatalf("UploadJSON() error = %v", err)
	}
	if uri != "ipfs://bafytest" {
		t.Fatalf("uri = %q, want ipfs://bafytest", uri)
	}

	var doc map[string]string
	if err := s.FetchJSON(context.Background(), uri, &doc); err != nil {
		t.Fatalf("FetchJSON() error = %v", err)
	}
	if doc["hello"] != "world" {
		t.Fatalf("doc = %v", doc)
	}
}

func TestHTTPStoreRejectsUnknownScheme(t *testing.T) {
	s, err := NewHTTPStore("http://pin.test", "", "")
	if err != nil {
		t.Fatalf("NewHTTPStore() error = %v", err)
	}
	var out any
	err = s.FetchJSON(context.Background(), "ftp://nope", &out)
	if err == nil || !strings.Contains(err.Error(), "unsupported document uri") {
		t.Fatalf("FetchJSON() error = %v, want unsupported scheme", err)
	}
}

func TestMockStoreRoundTrip(t *testing.T) {
	s := NewMockStore()
	uri, err := s.UploadJSON(context.Background(), []int{1, 2, 3})
	if err != nil {
		t.Fatalf("UploadJSON() error = %v", err)
	}
	var out []int
	if err := s.FetchJSON(context.Background(), uri, &out); err != nil {
		t.Fatalf("FetchJSON() error = %v", err)
	}
	if len(out) != 3 || out[2] != 3 {
		t.Fatalf("out = %v", out)
	}
	if s.Uploads() != 1 {
		t.Fatalf("Uploads() = %d, want 1", s.Uploads())
	}
}
