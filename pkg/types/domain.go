package types

import "time"

// GPUDevice is a point-in-time snapshot of the managed device. Produced
// exclusively by the telemetry tracker; consumers receive value copies and
// never mutate it.
type GPUDevice struct {
	// Total VRAM on the device in MB.
	TotalVRAMMB int `json:"total_vram_mb"`
	// VRAM currently in use in MB, as reported by the device.
	UsedVRAMMB int `json:"used_vram_mb"`
	// VRAM currently free in MB, as reported by the device.
	FreeVRAMMB int `json:"free_vram_mb"`
	// GPU utilization percentage (0-100).
	UtilizationPct int `json:"utilization_pct"`
	// Core temperature in degrees Celsius.
	TemperatureC int `json:"temperature_c"`
	// When this snapshot was taken.
	ObservedAt time.Time `json:"observed_at"`
	// True when telemetry has failed repeatedly and the snapshot can no
	// longer be trusted for admission decisions.
	Stale bool `json:"stale"`
}

// LoadedModel is a model currently resident on the GPU, together with the
// budget it holds and its eviction-relevant state.
type LoadedModel struct {
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`
	// When the provider finished loading the model.
	LoadedAt time.Time `json:"loaded_at"`
	// Last touch (admission, acquire or release).
	LastUsedAt time.Time `json:"last_used_at"`
	// Budget reserved for this model in MB (catalog estimate).
	ReservedVRAMMB int `json:"reserved_vram_mb"`
	// Priority of the request that admitted it; lower priority models are
	// evicted first.
	Priority int `json:"priority"`
	// Number of in-flight inference calls currently using the model.
	// Maintained by collaborators via acquire/release.
	RefCount int `json:"ref_count"`
	// Pinned models are never auto-evicted.
	Pinned bool `json:"pinned"`
}

// PendingRequest is a queued load request awaiting admission.
type PendingRequest struct {
	RequestID string `json:"request_id"`
	Provider  string `json:"provider"`
	ModelID   string `json:"model_id"`
	// Higher is more urgent.
	Priority    int       `json:"priority"`
	SubmittedAt time.Time `json:"submitted_at"`
	// Optional; zero means no deadline. Requests whose deadline passes
	// while still queued fail without reaching admission.
	Deadline time.Time `json:"deadline,omitempty"`
}
