package lifecycle

import "context"

// Unload removes a model on operator request. With active references it
// refuses unless force is set, in which case it proceeds with a warning.
func (m *Manager) Unload(ctx context.Context, prov, modelID string, force bool) error {
	k := modelKey{provider: prov, modelID: modelID}

	m.mu.Lock()
	lm := m.loaded[k]
	if lm == nil {
		m.mu.Unlock()
		return ErrNotFound(k.String())
	}
	if lm.RefCount > 0 && !force {
		refs := lm.RefCount
		m.mu.Unlock()
		return ErrInUse(prov, modelID, refs)
	}
	if lm.RefCount > 0 {
		m.log.Warn().Str("provider", prov).Str("model", modelID).
			Int("refs", lm.RefCount).Msg("force unloading model with active references")
	}
	m.removeLocked(k)
	vram := lm.ReservedVRAMMB
	m.mu.Unlock()

	m.unloadBackend(ctx, k, vram, "requested")
	return nil
}

// Acquire registers an in-flight inference call: bumps last_used_at and
// increments ref_count, shielding the model from eviction.
func (m *Manager) Acquire(prov, modelID string) error {
	k := modelKey{provider: prov, modelID: modelID}
	m.mu.Lock()
	defer m.mu.Unlock()
	lm := m.loaded[k]
	if lm == nil {
		return ErrNotFound(k.String())
	}
	lm.RefCount++
	lm.LastUsedAt = m.nowFn()
	return nil
}

// Release drops one reference. It never evicts synchronously; freed models
// are reclaimed by the next admission's eviction pass or the idle sweep.
func (m *Manager) Release(prov, modelID string) error {
	k := modelKey{provider: prov, modelID: modelID}
	m.mu.Lock()
	defer m.mu.Unlock()
	lm := m.loaded[k]
	if lm == nil {
		return ErrNotFound(k.String())
	}
	if lm.RefCount == 0 {
		m.log.Warn().Str("provider", prov).Str("model", modelID).Msg("release below zero references")
	} else {
		lm.RefCount--
	}
	lm.LastUsedAt = m.nowFn()
	return nil
}

// Pin excludes a model from automatic eviction; Unpin re-enables it.
func (m *Manager) Pin(prov, modelID string, pinned bool) error {
	k := modelKey{provider: prov, modelID: modelID}
	m.mu.Lock()
	defer m.mu.Unlock()
	lm := m.loaded[k]
	if lm == nil {
		return ErrNotFound(k.String())
	}
	lm.Pinned = pinned
	return nil
}
