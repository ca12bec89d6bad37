package lifecycle

import "fmt"

// telemetryStaleError signals that the tracker snapshot is too old to back
// an admission decision. Degraded-but-safe: loaded models keep serving.
type telemetryStaleError struct{}

func (telemetryStaleError) Error() string {
	return "telemetry stale: refusing admission"
}

// ErrTelemetryStale constructs a telemetryStaleError.
func ErrTelemetryStale() error { return telemetryStaleError{} }

// IsTelemetryStale reports whether err indicates stale telemetry (503).
func IsTelemetryStale(err error) bool {
	_, ok := err.(telemetryStaleError)
	return ok
}

// resourceExhaustedError signals that no combination of evictions can
// satisfy the request.
type resourceExhaustedError struct {
	provider string
	modelID  string
	neededMB int
}

func (e resourceExhaustedError) Error() string {
	return fmt.Sprintf("resource exhausted: %s/%s needs %dMB and no evictable candidates remain", e.provider, e.modelID, e.neededMB)
}

// ErrResourceExhausted constructs a resourceExhaustedError.
func ErrResourceExhausted(provider, modelID string, neededMB int) error {
	return resourceExhaustedError{provider: provider, modelID: modelID, neededMB: neededMB}
}

// IsResourceExhausted reports whether err indicates an unsatisfiable budget (409).
func IsResourceExhausted(err error) bool {
	_, ok := err.(resourceExhaustedError)
	return ok
}

// providerError wraps a failed backend load/unload call.
type providerError struct {
	provider string
	modelID  string
	err      error
}

func (e providerError) Error() string {
	return fmt.Sprintf("provider %s failed for %s: %v", e.provider, e.modelID, e.err)
}

func (e providerError) Unwrap() error { return e.err }

// ErrProvider wraps err as a providerError.
func ErrProvider(provider, modelID string, err error) error {
	return providerError{provider: provider, modelID: modelID, err: err}
}

// IsProviderError reports whether err indicates a backend call failure (502).
func IsProviderError(err error) bool {
	_, ok := err.(providerError)
	return ok
}

// inUseError signals an unload attempt on a model with active references.
type inUseError struct {
	provider string
	modelID  string
	refs     int
}

func (e inUseError) Error() string {
	return fmt.Sprintf("model in use: %s/%s has %d active references", e.provider, e.modelID, e.refs)
}

// ErrInUse constructs an inUseError.
func ErrInUse(provider, modelID string, refs int) error {
	return inUseError{provider: provider, modelID: modelID, refs: refs}
}

// IsInUse reports whether err indicates active references blocking unload (409).
func IsInUse(err error) bool {
	_, ok := err.(inUseError)
	return ok
}

// notFoundError signals an unknown provider or a model that is not loaded.
type notFoundError struct{ what string }

func (e notFoundError) Error() string { return "not found: " + e.what }

// ErrNotFound constructs a notFoundError.
func ErrNotFound(what string) error { return notFoundError{what: what} }

// IsNotFound reports whether err indicates a missing provider or model (404).
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}
