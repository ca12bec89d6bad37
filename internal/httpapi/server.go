package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vramd/internal/lifecycle"
	"vramd/internal/queue"
	"vramd/pkg/types"
)

// Loader is the admission-queue surface used by POST /models/load.
type Loader interface {
	Load(ctx context.Context, req types.PendingRequest) (types.LoadedModel, error)
	Depth() int
}

// Lifecycle is the manager surface used by the remaining model endpoints.
type Lifecycle interface {
	Unload(ctx context.Context, provider, modelID string, force bool) error
	Acquire(provider, modelID string) error
	Release(provider, modelID string) error
	Pin(provider, modelID string, pinned bool) error
	ListLoaded() []types.LoadedModel
	Status() types.StatusResponse
}

// Telemetry is the tracker surface used by health checks.
type Telemetry interface {
	GetSnapshot() types.GPUDevice
	Healthy() bool
}

// Deps wires the mux to its collaborators.
type Deps struct {
	Loader    Loader
	Lifecycle Lifecycle
	Telemetry Telemetry
}

// NewMux builds the HTTP surface.
func NewMux(d Deps) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Telemetry.Healthy() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("telemetry stale"))
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ModelsResponse{Models: d.Lifecycle.ListLoaded()})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := d.Lifecycle.Status()
		resp.QueueDepth = d.Loader.Depth()
		writeJSON(w, resp)
	})

	r.Post("/models/load", func(w http.ResponseWriter, r *http.Request) {
		var body types.LoadRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		if body.Provider == "" || body.ModelID == "" {
			writeJSONError(w, http.StatusBadRequest, "provider and model_id are required")
			return
		}
		now := time.Now()
		req := types.PendingRequest{
			RequestID:   uuid.NewString(),
			Provider:    body.Provider,
			ModelID:     body.ModelID,
			Priority:    body.Priority,
			SubmittedAt: now,
		}
		if body.TimeoutMS > 0 {
			req.Deadline = now.Add(time.Duration(body.TimeoutMS) * time.Millisecond)
		}

		// Join server base context with request context so shutdown cancels
		// queued work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		model, err := d.Loader.Load(ctx, req)
		if err != nil {
			// Client disconnected while queued: nothing to report.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			writeLoadError(w, err)
			return
		}
		writeJSON(w, model)
	})

	r.Post("/models/unload", func(w http.ResponseWriter, r *http.Request) {
		var body types.UnloadRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		if err := d.Lifecycle.Unload(r.Context(), body.Provider, body.ModelID, body.Force); err != nil {
			writeLifecycleError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "unloaded"})
	})

	r.Post("/models/acquire", refHandler(d.Lifecycle.Acquire))
	r.Post("/models/release", refHandler(d.Lifecycle.Release))
	r.Post("/models/pin", pinHandler(d.Lifecycle, true))
	r.Post("/models/unpin", pinHandler(d.Lifecycle, false))

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func refHandler(fn func(provider, modelID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body types.ModelRef
		if !decodeJSON(w, r, &body) {
			return
		}
		if err := fn(body.Provider, body.ModelID); err != nil {
			writeLifecycleError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func pinHandler(lc Lifecycle, pinned bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body types.ModelRef
		if !decodeJSON(w, r, &body) {
			return
		}
		if err := lc.Pin(body.Provider, body.ModelID, pinned); err != nil {
			writeLifecycleError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

// writeLoadError maps admission errors 1:1 to status codes.
func writeLoadError(w http.ResponseWriter, err error) {
	switch {
	case lifecycle.IsTelemetryStale(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case lifecycle.IsResourceExhausted(err):
		writeJSONError(w, http.StatusConflict, err.Error())
	case lifecycle.IsProviderError(err):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	case lifecycle.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case queue.IsTooBusy(err):
		IncrementBackpressure("queue_full")
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	case queue.IsDeadlineExceeded(err):
		IncrementBackpressure("queue_deadline")
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case lifecycle.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case lifecycle.IsInUse(err):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON enforces content type and body size, reporting errors itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
