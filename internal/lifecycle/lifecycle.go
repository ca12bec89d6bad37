package lifecycle

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vramd/internal/catalog"
	"vramd/internal/events"
	"vramd/internal/provider"
	"vramd/pkg/types"
)

// SnapshotSource supplies the latest device snapshot (the telemetry tracker
// in production).
type SnapshotSource interface {
	GetSnapshot() types.GPUDevice
}

// Defaults applied when corresponding Config fields are unset.
const (
	defaultEstimateMB  = 8192
	defaultIdleTimeout = 5 * time.Minute
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	// Reserved headroom that must stay free at all times.
	SafetyMarginMB int
	// Fallback footprint for models missing from the catalog.
	DefaultEstimateMB int
	// Soft cap on concurrently loaded models (0 = unlimited).
	MaxModels int
	// Models idle longer than this with no references are swept.
	IdleTimeout time.Duration
}

type modelKey struct {
	provider string
	modelID  string
}

func (k modelKey) String() string { return k.provider + "/" + k.modelID }

// Manager is the sole owner of the loaded-model set. All mutation happens
// under one mutex; provider I/O always happens outside it.
type Manager struct {
	mu     sync.Mutex
	loaded map[modelKey]*types.LoadedModel
	// Budget committed to loaded models (sum of reservations).
	committedMB int
	// Budget provisionally held for in-flight loads.
	reservedMB int
	// In-flight loads counted against MaxModels.
	reservedLoads int

	loadsTotal      uint64
	evictionsTotal  uint64
	rejectionsTotal uint64

	cfg       Config
	catalog   *catalog.Catalog
	tracker   SnapshotSource
	providers map[string]provider.Provider
	publisher events.Publisher
	log       zerolog.Logger
	nowFn     func() time.Time
	startTime time.Time
}

// New constructs a Manager. A nil publisher drops events.
func New(cfg Config, cat *catalog.Catalog, tracker SnapshotSource, providers map[string]provider.Provider, pub events.Publisher, log zerolog.Logger) *Manager {
	if cfg.DefaultEstimateMB <= 0 {
		cfg.DefaultEstimateMB = defaultEstimateMB
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &Manager{
		loaded:    make(map[modelKey]*types.LoadedModel),
		cfg:       cfg,
		catalog:   cat,
		tracker:   tracker,
		providers: providers,
		publisher: pub,
		log:       log,
		nowFn:     time.Now,
		startTime: time.Now(),
	}
}

// IdleTimeout exposes the configured idle timeout for the sweeper.
func (m *Manager) IdleTimeout() time.Duration { return m.cfg.IdleTimeout }

// estimate returns the catalog footprint for a model, falling back to the
// conservative default for unknown entries.
func (m *Manager) estimate(prov, modelID string) int {
	if e, ok := m.catalog.Lookup(prov, modelID); ok && e.VRAMMB > 0 {
		return e.VRAMMB
	}
	m.log.Warn().Str("provider", prov).Str("model", modelID).
		Int("fallback_mb", m.cfg.DefaultEstimateMB).Msg("model not in catalog, using default estimate")
	return m.cfg.DefaultEstimateMB
}

// fitsLocked reports whether a new load of needed MB keeps the invariant
// committed + reserved + needed + margin <= total and respects MaxModels.
// Callers must hold m.mu.
func (m *Manager) fitsLocked(neededMB, totalMB int) bool {
	if m.cfg.MaxModels > 0 && len(m.loaded)+m.reservedLoads+1 > m.cfg.MaxModels {
		return false
	}
	return m.committedMB+m.reservedMB+neededMB+m.cfg.SafetyMarginMB <= totalMB
}

// removeLocked deletes a model from the set and credits its budget back.
// Callers must hold m.mu.
func (m *Manager) removeLocked(k modelKey) *types.LoadedModel {
	lm := m.loaded[k]
	if lm == nil {
		return nil
	}
	delete(m.loaded, k)
	m.committedMB -= lm.ReservedVRAMMB
	if m.committedMB < 0 {
		m.committedMB = 0
	}
	observeBudget(m.committedMB, m.reservedMB, len(m.loaded))
	return lm
}
