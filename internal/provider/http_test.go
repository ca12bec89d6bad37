package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClient(url string, retries int) *HTTPClient {
	return NewHTTPClient("llm-runner", url, HTTPConfig{
		Timeout: 2 * time.Second,
		Retries: retries,
		Backoff: time.Millisecond,
	}, zerolog.Nop())
}

func TestLoadPostsModelID(t *testing.T) {
	var gotPath string
	var gotBody modelReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	if err := c.Load(context.Background(), "llama-3.1-8b"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if gotPath != "/load" {
		t.Fatalf("path=%s", gotPath)
	}
	if gotBody.ModelID != "llama-3.1-8b" {
		t.Fatalf("body=%+v", gotBody)
	}
}

func TestLoadRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 2)
	if err := c.Load(context.Background(), "m"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("calls=%d want 2", n)
	}
}

func TestLoadExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 2)
	if err := c.Load(context.Background(), "m"); err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("calls=%d want 3", n)
	}
}

func TestUnloadNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	if err := c.Unload(context.Background(), "m"); err == nil {
		t.Fatalf("expected error on 404")
	}
}

func TestHealthCheck(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if healthy {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("healthcheck: %v", err)
	}
	healthy = false
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Fatalf("expected error when backend unhealthy")
	}
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := testClient(srv.URL, 5)
	if err := c.Load(ctx, "m"); err == nil {
		t.Fatalf("expected error with canceled context")
	}
	if n := calls.Load(); n > 1 {
		t.Fatalf("calls=%d, retried after cancellation", n)
	}
}
