package lifecycle

import (
	"context"
	"time"
)

// RunSweeper drives IdleSweep every IdleTimeout/2 until ctx is canceled.
func (m *Manager) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.IdleSweep(ctx)
		}
	}
}

// IdleSweep unloads every unpinned, unreferenced model whose last use is
// older than the idle timeout. Eligibility is re-checked under the lock per
// model, so a touch between scan and unload cancels the eviction.
func (m *Manager) IdleSweep(ctx context.Context) int {
	cutoff := m.nowFn().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var candidates []modelKey
	for k, lm := range m.loaded {
		if lm.RefCount == 0 && !lm.Pinned && lm.LastUsedAt.Before(cutoff) {
			candidates = append(candidates, k)
		}
	}
	m.mu.Unlock()

	swept := 0
	for _, k := range candidates {
		m.mu.Lock()
		lm := m.loaded[k]
		if lm == nil || lm.RefCount > 0 || lm.Pinned || !lm.LastUsedAt.Before(cutoff) {
			m.mu.Unlock()
			continue
		}
		m.removeLocked(k)
		m.evictionsTotal++
		vram := lm.ReservedVRAMMB
		m.mu.Unlock()

		m.unloadBackend(ctx, k, vram, "idle")
		evictionsCounter.WithLabelValues(k.provider).Inc()
		swept++
	}
	return swept
}
