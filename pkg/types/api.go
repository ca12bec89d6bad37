package types

// LoadRequest is the payload for POST /models/load.
type LoadRequest struct {
	// Backend that owns the model (e.g. llm-runner, batch-engine, speech-engine).
	Provider string `json:"provider"`
	// Model identifier known to the backend.
	ModelID string `json:"model_id"`
	// Higher is more urgent; ties are served in arrival order.
	Priority int `json:"priority,omitempty"`
	// Optional queue deadline in milliseconds. If the request is still
	// queued when it elapses, it fails without being admitted.
	TimeoutMS int `json:"timeout_ms,omitempty"`
}

// UnloadRequest is the payload for POST /models/unload.
type UnloadRequest struct {
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`
	// Force unloads even when ref_count > 0.
	Force bool `json:"force,omitempty"`
}

// ModelRef names a loaded model for acquire/release/pin/unpin.
type ModelRef struct {
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`
}

// ModelsResponse wraps the loaded-model set returned by GET /models.
type ModelsResponse struct {
	Models []LoadedModel `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Latest device snapshot.
	GPU GPUDevice `json:"gpu"`
	// Loaded models, sorted by provider/model id.
	Models []LoadedModel `json:"models"`
	// VRAM committed to loaded models in MB (sum of reservations).
	CommittedMB int `json:"committed_mb"`
	// VRAM provisionally reserved for in-flight loads in MB.
	ReservedMB int `json:"reserved_mb"`
	// Configured safety margin in MB.
	MarginMB int `json:"margin_mb"`
	// Soft cap on concurrently loaded models (0 = unlimited).
	MaxModels int `json:"max_models"`
	// Pending requests currently queued for admission.
	QueueDepth int `json:"queue_depth"`
	// Lifetime counters.
	LoadsTotal      uint64 `json:"loads_total"`
	EvictionsTotal  uint64 `json:"evictions_total"`
	RejectionsTotal uint64 `json:"rejections_total"`
	// Uptime of the server in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}
