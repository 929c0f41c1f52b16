package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_DefaultTimeout(t *testing.T) {
	c := New()
	if c.http.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", c.http.Timeout)
	}
}

func TestNewFromConfig(t *testing.T) {
	if c := NewFromConfig(0); c.http.Timeout != 30*time.Second {
		t.Errorf("expected fallback 30s, got %v", c.http.Timeout)
	}
	if c := NewFromConfig(2.5); c.http.Timeout != 2500*time.Millisecond {
		t.Errorf("expected 2.5s, got %v", c.http.Timeout)
	}
}

func TestGetJSONCtx_Success(t *testing.T) {
	type resp struct {
		Name string `json:"name"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		json.NewEncoder(w).Encode(resp{Name: "test"})
	}))
	defer srv.Close()

	var out resp
	httpResp, err := New().GetJSONCtx(context.Background(), srv.URL, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !httpResp.OK() || out.Name != "test" {
		t.Errorf("unexpected response: %d %+v", httpResp.StatusCode, out)
	}
}

func TestGetJSONCtx_Non200KeepsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"forbidden"}`))
	}))
	defer srv.Close()

	var out map[string]string
	httpResp, err := New().GetJSONCtx(context.Background(), srv.URL, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if httpResp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpResp.StatusCode)
	}
	if len(httpResp.Body) == 0 {
		t.Error("expected body to be captured on non-2xx")
	}
	if out != nil {
		t.Error("error bodies should not be decoded into out")
	}
}

func TestPatchJSONCtx_SendsBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("expected bearer header, got %q", auth)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected request id header")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"is_active":true}` {
			t.Errorf("unexpected body %s", body)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := New().PatchJSONCtx(context.Background(), srv.URL, map[string]bool{"is_active": true}, nil,
		WithBearer("tok"), WithRequestID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
}

func TestWithBearer_EmptyTokenOmitsHeader(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
	WithBearer("")(req)
	if req.Header.Get("Authorization") != "" {
		t.Error("expected no Authorization header for empty token")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":"api_key is invalid"}`, "api_key is invalid"},
		{`{"message":"not allowed"}`, "not allowed"},
		{`{"detail":"Provider not found."}`, "Provider not found."},
		{`{"error":{"message":"nested"}}`, "nested"},
		{`plain text failure`, "plain text failure"},
		{``, "empty body"},
	}
	for _, tt := range tests {
		if got := ErrorMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("ErrorMessage(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
