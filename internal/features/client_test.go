package features

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return &Client{
		BaseURL:    url,
		APIKey:     "test-key",
		Model:      "test-model",
		Retries:    3,
		Backoff:    time.Millisecond,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestClient_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/activations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		var req activationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			return
		}
		if req.Model != "test-model" {
			t.Errorf("expected model test-model, got %s", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "assistant" || req.Messages[0].Content != "hello there" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if len(req.Features) != 2 {
			t.Errorf("expected 2 requested features, got %v", req.Features)
		}
		_ = json.NewEncoder(w).Encode(activationResponse{Activations: []Activation{
			{ID: "f1", Label: "Flattery", Value: 0.4},
			{ID: "f2", Label: "Hedging", Value: 0.1},
		}})
	}))
	defer srv.Close()

	acts, err := newTestClient(srv.URL).Extract(context.Background(), "hello there", []string{"f1", "f2"})
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	m := ToMap(acts)
	if m["f1"] != 0.4 || m["f2"] != 0.1 {
		t.Errorf("unexpected activations %v", m)
	}
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		switch n {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_ = json.NewEncoder(w).Encode(activationResponse{Activations: []Activation{{ID: "f1", Value: 0.3}}})
		}
	}))
	defer srv.Close()

	acts, err := newTestClient(srv.URL).Extract(context.Background(), "text", nil)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
	if len(acts) != 1 || acts[0].Value != 0.3 {
		t.Errorf("unexpected activations %+v", acts)
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Extract(context.Background(), "text", nil)
	if !errors.Is(err, ErrFeatureExtraction) {
		t.Fatalf("expected ErrFeatureExtraction, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call for 401, got %d", calls.Load())
	}
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.Retries = 2
	_, err := c.Extract(context.Background(), "text", nil)
	if !errors.Is(err, ErrFeatureExtraction) {
		t.Fatalf("expected ErrFeatureExtraction, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 1 attempt + 2 retries, got %d", calls.Load())
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Extract(context.Background(), "text", nil)
	if !errors.Is(err, ErrFeatureExtraction) {
		t.Fatalf("expected ErrFeatureExtraction, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("malformed body should not be retried, got %d calls", calls.Load())
	}
}
