// Package lifecycle owns the loaded-model set and every VRAM-affecting
// decision: admission, eviction, explicit unload and the idle sweep. It is
// structured into small files by concern:
//
//   - lifecycle.go: core Manager type, constructor, config, invariants.
//   - errors.go: typed error values and helpers (IsTelemetryStale, ...).
//   - admit.go: admission path with reservation and rollback.
//   - evict.go: eviction candidate selection and the evict-until-fits loop.
//   - unload.go: explicit unload, acquire/release, pin/unpin.
//   - sweep.go: timer-driven idle sweep.
//   - status.go: ListLoaded/Status projections for the HTTP layer.
//   - metrics.go: prometheus counters and gauges.
//
// The bookkeeping mutex is never held across provider I/O; the admission
// dispatcher serializes Admit calls, and a reservation counter keeps a
// second admission from double-booking space freed for the first.
package lifecycle
