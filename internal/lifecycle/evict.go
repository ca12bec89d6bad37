package lifecycle

import (
	"context"

	"vramd/internal/events"
	"vramd/pkg/types"
)

// evictUntilFits frees budget for a load of neededMB, one candidate at a
// time, until the invariant holds or no evictable candidate remains.
// Candidates are unpinned models with zero references, lowest priority
// first, least-recently-used first; the key is the final tie-break so the
// order is deterministic for identical state. forKey is never evicted (it
// is the model being admitted).
func (m *Manager) evictUntilFits(ctx context.Context, neededMB, totalMB int, forKey modelKey) error {
	for {
		m.mu.Lock()
		if m.fitsLocked(neededMB, totalMB) {
			m.mu.Unlock()
			return nil
		}
		k, victim := m.pickVictimLocked(forKey)
		if victim == nil {
			m.mu.Unlock()
			return ErrResourceExhausted(forKey.provider, forKey.modelID, neededMB)
		}
		m.removeLocked(k)
		m.evictionsTotal++
		m.mu.Unlock()

		m.unloadBackend(ctx, k, victim.ReservedVRAMMB, "evicted")
		evictionsCounter.WithLabelValues(k.provider).Inc()
	}
}

// pickVictimLocked selects the eviction candidate: ref_count == 0, not
// pinned, ordered by (priority asc, last_used asc, key asc).
// Callers must hold m.mu.
func (m *Manager) pickVictimLocked(forKey modelKey) (modelKey, *types.LoadedModel) {
	var bestKey modelKey
	var best *types.LoadedModel
	for k, lm := range m.loaded {
		if k == forKey || lm.Pinned || lm.RefCount > 0 {
			continue
		}
		if best == nil || lessVictim(lm, k, best, bestKey) {
			best, bestKey = lm, k
		}
	}
	return bestKey, best
}

func lessVictim(a *types.LoadedModel, ak modelKey, b *types.LoadedModel, bk modelKey) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.LastUsedAt.Equal(b.LastUsedAt) {
		return a.LastUsedAt.Before(b.LastUsedAt)
	}
	return ak.String() < bk.String()
}

// unloadBackend issues the provider unload call and publishes the event.
// The model is already out of the bookkeeping; a failed backend call is
// logged but not rolled back, and the next telemetry snapshot reconciles
// any divergence.
func (m *Manager) unloadBackend(ctx context.Context, k modelKey, vramMB int, reason string) {
	if prov, ok := m.providers[k.provider]; ok {
		if err := prov.Unload(ctx, k.modelID); err != nil {
			providerErrors.WithLabelValues(k.provider).Inc()
			m.log.Error().Err(err).Str("provider", k.provider).Str("model", k.modelID).
				Str("reason", reason).Msg("provider unload failed")
		}
	}
	m.publisher.Publish(events.SubjectModelUnloaded, events.Event{
		Provider:  k.provider,
		ModelID:   k.modelID,
		VRAMMB:    vramMB,
		Timestamp: m.nowFn(),
	})
	m.log.Info().Str("provider", k.provider).Str("model", k.modelID).
		Int("vram_mb", vramMB).Str("reason", reason).Msg("model unloaded")
}
