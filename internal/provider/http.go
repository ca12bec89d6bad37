package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding HTTPConfig fields are unset.
const (
	defaultTimeout = 60 * time.Second
	defaultRetries = 2
	defaultBackoff = 500 * time.Millisecond
)

// HTTPConfig tunes one backend client.
type HTTPConfig struct {
	// Per-call timeout covering one attempt.
	Timeout time.Duration
	// Additional attempts after the first failure.
	Retries int
	// Base sleep between attempts; grows linearly per attempt.
	Backoff time.Duration
}

// HTTPClient talks to one backend over its load/unload/health endpoints.
// Any non-2xx response is an error.
type HTTPClient struct {
	name    string
	baseURL string
	http    *http.Client
	retries int
	backoff time.Duration
	log     zerolog.Logger
}

// NewHTTPClient builds a client for the backend at baseURL.
func NewHTTPClient(name, baseURL string, cfg HTTPConfig, log zerolog.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	return &HTTPClient{
		name:    name,
		baseURL: baseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		log:     log.With().Str("provider", name).Logger(),
	}
}

func (c *HTTPClient) Name() string { return c.name }

type modelReq struct {
	ModelID string `json:"model_id"`
}

func (c *HTTPClient) Load(ctx context.Context, modelID string) error {
	return c.postWithRetry(ctx, "/load", modelID)
}

func (c *HTTPClient) Unload(ctx context.Context, modelID string) error {
	return c.postWithRetry(ctx, "/unload", modelID)
}

func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("%s healthz status=%d", c.name, res.StatusCode)
	}
	return nil
}

// postWithRetry issues the call up to retries+1 times with a linear sleep
// between attempts. Context cancellation stops retrying immediately.
func (c *HTTPClient) postWithRetry(ctx context.Context, path, modelID string) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
			c.log.Warn().Err(lastErr).Str("path", path).Str("model", modelID).
				Int("attempt", attempt+1).Msg("retrying provider call")
		}
		lastErr = c.post(ctx, path, modelID)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (c *HTTPClient) post(ctx context.Context, path, modelID string) error {
	body, err := json.Marshal(modelReq{ModelID: modelID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s status=%d", c.name, path, res.StatusCode)
	}
	return nil
}
