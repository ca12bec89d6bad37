package lifecycle

import (
	"context"

	"vramd/internal/events"
	"vramd/pkg/types"
)

// Admit decides whether the requested model may occupy VRAM, evicting
// lower-priority idle models if needed. It is called one request at a time
// by the admission dispatcher; Unload/Release may interleave because the
// bookkeeping mutex is released around provider I/O.
func (m *Manager) Admit(ctx context.Context, req types.PendingRequest) (types.LoadedModel, error) {
	k := modelKey{provider: req.Provider, modelID: req.ModelID}

	// Idempotent fast path: an already-loaded model is touched, not reloaded.
	m.mu.Lock()
	if lm := m.loaded[k]; lm != nil {
		lm.LastUsedAt = m.nowFn()
		out := *lm
		m.mu.Unlock()
		return out, nil
	}
	m.mu.Unlock()

	prov, ok := m.providers[req.Provider]
	if !ok {
		return types.LoadedModel{}, ErrNotFound("provider " + req.Provider)
	}

	snap := m.tracker.GetSnapshot()
	if snap.Stale || snap.ObservedAt.IsZero() {
		m.reject()
		return types.LoadedModel{}, ErrTelemetryStale()
	}

	neededMB := m.estimate(req.Provider, req.ModelID)

	// Evict until the request fits, then reserve before the slow load call
	// so a concurrent unload path cannot hand the freed space to anyone else.
	if err := m.evictUntilFits(ctx, neededMB, snap.TotalVRAMMB, k); err != nil {
		m.reject()
		return types.LoadedModel{}, err
	}
	m.mu.Lock()
	m.reservedMB += neededMB
	m.reservedLoads++
	observeBudget(m.committedMB, m.reservedMB, len(m.loaded))
	m.mu.Unlock()

	m.log.Info().Str("request_id", req.RequestID).Str("provider", req.Provider).
		Str("model", req.ModelID).Int("needed_mb", neededMB).Msg("loading model")

	err := prov.Load(ctx, req.ModelID)

	m.mu.Lock()
	m.reservedMB -= neededMB
	if m.reservedMB < 0 {
		m.reservedMB = 0
	}
	m.reservedLoads--
	if err != nil {
		// Reservation released; the budget does not leak on failure.
		observeBudget(m.committedMB, m.reservedMB, len(m.loaded))
		m.mu.Unlock()
		providerErrors.WithLabelValues(req.Provider).Inc()
		m.log.Error().Err(err).Str("provider", req.Provider).Str("model", req.ModelID).Msg("provider load failed")
		return types.LoadedModel{}, ErrProvider(req.Provider, req.ModelID, err)
	}

	now := m.nowFn()
	lm := &types.LoadedModel{
		Provider:       req.Provider,
		ModelID:        req.ModelID,
		LoadedAt:       now,
		LastUsedAt:     now,
		ReservedVRAMMB: neededMB,
		Priority:       req.Priority,
	}
	m.loaded[k] = lm
	m.committedMB += neededMB
	m.loadsTotal++
	out := *lm
	observeBudget(m.committedMB, m.reservedMB, len(m.loaded))
	m.mu.Unlock()

	loadsCounter.WithLabelValues(req.Provider).Inc()
	m.publisher.Publish(events.SubjectModelLoaded, events.Event{
		Provider:  req.Provider,
		ModelID:   req.ModelID,
		VRAMMB:    neededMB,
		Timestamp: now,
	})
	m.log.Info().Str("provider", req.Provider).Str("model", req.ModelID).
		Int("vram_mb", neededMB).Msg("model loaded")
	return out, nil
}

func (m *Manager) reject() {
	m.mu.Lock()
	m.rejectionsTotal++
	m.mu.Unlock()
	rejectionsCounter.Inc()
}
