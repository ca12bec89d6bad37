// Package provider holds the capability interface for the external
// model-serving backends and its HTTP implementation. The orchestrator only
// ever calls load/unload/health on a backend; loading mechanics belong to
// the backend itself.
package provider

import "context"

// Provider is implemented by each concrete backend (llm-runner,
// batch-engine, speech-engine). Load and Unload may block for seconds and
// must never be called while holding orchestrator bookkeeping locks.
type Provider interface {
	Name() string
	Load(ctx context.Context, modelID string) error
	Unload(ctx context.Context, modelID string) error
	HealthCheck(ctx context.Context) error
}
