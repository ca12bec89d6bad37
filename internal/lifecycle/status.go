package lifecycle

import (
	"sort"

	"vramd/pkg/types"
)

// ListLoaded returns a copy of the loaded-model set, sorted by provider and
// model id. Safe to call concurrently with admission.
func (m *Manager) ListLoaded() []types.LoadedModel {
	m.mu.Lock()
	out := make([]types.LoadedModel, 0, len(m.loaded))
	for _, lm := range m.loaded {
		out = append(out, *lm)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ModelID < out[j].ModelID
	})
	return out
}

// Status builds the detailed response for GET /status. The queue depth is
// filled in by the HTTP layer, which owns the queue.
func (m *Manager) Status() types.StatusResponse {
	models := m.ListLoaded()
	now := m.nowFn()

	m.mu.Lock()
	resp := types.StatusResponse{
		GPU:             m.tracker.GetSnapshot(),
		Models:          models,
		CommittedMB:     m.committedMB,
		ReservedMB:      m.reservedMB,
		MarginMB:        m.cfg.SafetyMarginMB,
		MaxModels:       m.cfg.MaxModels,
		LoadsTotal:      m.loadsTotal,
		EvictionsTotal:  m.evictionsTotal,
		RejectionsTotal: m.rejectionsTotal,
		UptimeSeconds:   int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:  now.Unix(),
	}
	m.mu.Unlock()
	return resp
}
