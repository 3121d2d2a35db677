package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, class string) http.Handler {
	t.Helper()
	s := &server{parser: newFakeParser(t, class), timeout: time.Second, maxBody: 1024}
	return s.routes()
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(t, "ExistingParser")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("expected 'ok', got %q", w.Body.String())
	}
}

func TestParseEndpoint(t *testing.T) {
	h := newTestServer(t, "ParserForImport")

	body := bytes.NewBufferString(`{"input": "GET /index.html", "fields": {"host": "web1"}}`)
	req := httptest.NewRequest(http.MethodPost, "/parse", body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp parseResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Parsed {
		t.Error("expected parsed")
	}
	if resp.Fields["input"] != "GET /index.html" || resp.Fields["host"] != "web1" {
		t.Errorf("unexpected fields %v", resp.Fields)
	}
}

func TestParseEndpointErrors(t *testing.T) {
	h := newTestServer(t, "ExistingParser")

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"invalid json", http.MethodPost, `{`, http.StatusBadRequest},
		{"too large", http.MethodPost, `{"input": "` + string(bytes.Repeat([]byte("x"), 2048)) + `"}`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, ``, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/parse", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}
