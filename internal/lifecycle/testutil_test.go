package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vramd/internal/catalog"
	"vramd/internal/events"
	"vramd/internal/provider"
	"vramd/pkg/types"
)

// fakeTracker serves a fixed snapshot.
type fakeTracker struct {
	snap types.GPUDevice
}

func (f *fakeTracker) GetSnapshot() types.GPUDevice { return f.snap }

func freshTracker(totalMB int) *fakeTracker {
	return &fakeTracker{snap: types.GPUDevice{
		TotalVRAMMB: totalMB,
		FreeVRAMMB:  totalMB,
		ObservedAt:  time.Now(),
	}}
}

// fakeProvider records load/unload calls and fails on demand.
type fakeProvider struct {
	mu        sync.Mutex
	name      string
	loads     []string
	unloads   []string
	loadErr   error
	unloadErr error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Load(ctx context.Context, modelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loads = append(f.loads, modelID)
	return nil
}

func (f *fakeProvider) Unload(ctx context.Context, modelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unloadErr != nil {
		return f.unloadErr
	}
	f.unloads = append(f.unloads, modelID)
	return nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeProvider) loadCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loads...)
}

func (f *fakeProvider) unloadCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unloads...)
}

// newTestManager wires a manager with one fake provider per name.
func newTestManager(cfg Config, cat *catalog.Catalog, tracker SnapshotSource, pub events.Publisher, names ...string) (*Manager, map[string]*fakeProvider) {
	fakes := make(map[string]*fakeProvider, len(names))
	provs := make(map[string]provider.Provider, len(names))
	for _, n := range names {
		f := &fakeProvider{name: n}
		fakes[n] = f
		provs[n] = f
	}
	m := New(cfg, cat, tracker, provs, pub, zerolog.Nop())
	return m, fakes
}

// preload inserts a model directly into the loaded set.
func preload(m *Manager, prov, modelID string, vramMB, priority int, lastUsed time.Time, refs int, pinned bool) {
	k := modelKey{provider: prov, modelID: modelID}
	m.mu.Lock()
	m.loaded[k] = &types.LoadedModel{
		Provider:       prov,
		ModelID:        modelID,
		LoadedAt:       lastUsed,
		LastUsedAt:     lastUsed,
		ReservedVRAMMB: vramMB,
		Priority:       priority,
		RefCount:       refs,
		Pinned:         pinned,
	}
	m.committedMB += vramMB
	m.mu.Unlock()
}

func loadedKeys(m *Manager) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.loaded))
	for k := range m.loaded {
		out[k.String()] = true
	}
	return out
}

func committed(m *Manager) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committedMB
}

func testCatalog() *catalog.Catalog {
	return catalog.New(map[string]map[string]catalog.Entry{
		"llm-runner": {
			"model-a": {VRAMMB: 8000, Type: "chat"},
			"model-b": {VRAMMB: 18000, Type: "chat"},
			"model-d": {VRAMMB: 13000, Type: "chat"},
		},
		"speech-engine": {
			"voice-1": {VRAMMB: 2500, Type: "synthesis"},
		},
	})
}
