package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vramd/internal/events"
	"vramd/pkg/types"
)

// Reading is one raw sample from the device.
type Reading struct {
	TotalMB        int
	UsedMB         int
	FreeMB         int
	UtilizationPct int
	TemperatureC   int
}

// Source produces device readings. The production implementation queries
// NVML; tests inject fakes.
type Source interface {
	Sample(ctx context.Context) (Reading, error)
	Close() error
}

// Defaults applied when corresponding TrackerConfig fields are unset.
const (
	defaultPollInterval = 2 * time.Second
	defaultMaxFailures  = 3
	defaultAlertPct     = 90
)

// TrackerConfig encapsulates tracker tunables.
type TrackerConfig struct {
	PollInterval time.Duration
	// Consecutive sample failures before the snapshot is marked stale.
	MaxConsecutiveFailures int
	// Usage percentage that triggers a vram.alert event (edge-triggered).
	AlertThresholdPct int
}

// Tracker polls the telemetry source on its own timer and exposes the
// latest snapshot. Staleness is a field, never an error: callers keep
// getting the last known snapshot with Stale set.
type Tracker struct {
	mu   sync.RWMutex
	snap types.GPUDevice

	src       Source
	interval  time.Duration
	maxFail   int
	alertPct  int
	failures  int
	alerted   bool
	publisher events.Publisher
	log       zerolog.Logger
	nowFn     func() time.Time
}

// New constructs a Tracker. A nil publisher drops alert events.
func New(src Source, cfg TrackerConfig, pub events.Publisher, log zerolog.Logger) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = defaultMaxFailures
	}
	if cfg.AlertThresholdPct <= 0 {
		cfg.AlertThresholdPct = defaultAlertPct
	}
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &Tracker{
		src:       src,
		interval:  cfg.PollInterval,
		maxFail:   cfg.MaxConsecutiveFailures,
		alertPct:  cfg.AlertThresholdPct,
		publisher: pub,
		log:       log,
		nowFn:     time.Now,
	}
}

// Run drives the poll loop until ctx is canceled. It samples once
// immediately so the first snapshot is available before the first tick.
func (t *Tracker) Run(ctx context.Context) {
	t.poll(ctx)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.poll(ctx)
		}
	}
}

// GetSnapshot returns a value copy of the latest snapshot. A snapshot
// whose observation time has drifted past twice the poll interval is
// reported stale even if the poll loop has not noticed yet.
func (t *Tracker) GetSnapshot() types.GPUDevice {
	t.mu.RLock()
	snap := t.snap
	t.mu.RUnlock()
	if !snap.ObservedAt.IsZero() && t.nowFn().Sub(snap.ObservedAt) > 2*t.interval {
		snap.Stale = true
	}
	return snap
}

// Healthy reports whether the latest snapshot can back admission decisions.
func (t *Tracker) Healthy() bool {
	snap := t.GetSnapshot()
	return !snap.Stale && !snap.ObservedAt.IsZero()
}

func (t *Tracker) poll(ctx context.Context) {
	r, err := t.src.Sample(ctx)
	if err != nil {
		t.mu.Lock()
		t.failures++
		if t.failures >= t.maxFail && !t.snap.Stale {
			t.snap.Stale = true
			t.log.Warn().Err(err).Int("consecutive_failures", t.failures).
				Msg("telemetry stale: refusing new admissions until it recovers")
		}
		stale := t.snap.Stale
		t.mu.Unlock()
		setStaleGauge(stale)
		return
	}

	now := t.nowFn()
	snap := types.GPUDevice{
		TotalVRAMMB:    r.TotalMB,
		UsedVRAMMB:     r.UsedMB,
		FreeVRAMMB:     r.FreeMB,
		UtilizationPct: r.UtilizationPct,
		TemperatureC:   r.TemperatureC,
		ObservedAt:     now,
	}

	t.mu.Lock()
	recovered := t.snap.Stale
	t.failures = 0
	t.snap = snap
	t.mu.Unlock()

	if recovered {
		t.log.Info().Msg("telemetry recovered")
	}
	observeSnapshot(snap)
	t.checkAlert(snap, now)
}

// checkAlert publishes vram.alert when usage crosses the threshold upward,
// then re-arms once usage drops back below it.
func (t *Tracker) checkAlert(snap types.GPUDevice, now time.Time) {
	if snap.TotalVRAMMB <= 0 {
		return
	}
	usagePct := snap.UsedVRAMMB * 100 / snap.TotalVRAMMB
	t.mu.Lock()
	fire := usagePct >= t.alertPct && !t.alerted
	if usagePct >= t.alertPct {
		t.alerted = true
	} else {
		t.alerted = false
	}
	t.mu.Unlock()
	if !fire {
		return
	}
	t.log.Warn().Int("usage_pct", usagePct).Int("threshold_pct", t.alertPct).Msg("vram usage above alert threshold")
	t.publisher.Publish(events.SubjectVRAMAlert, events.Event{
		VRAMMB:    snap.UsedVRAMMB,
		Timestamp: now,
	})
}
