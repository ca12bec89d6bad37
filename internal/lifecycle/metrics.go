package lifecycle

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vramd",
			Subsystem: "lifecycle",
			Name:      "loads_total",
			Help:      "Total successful model loads",
		},
		[]string{"provider"},
	)

	evictionsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vramd",
			Subsystem: "lifecycle",
			Name:      "evictions_total",
			Help:      "Total models evicted (admission pressure or idle sweep)",
		},
		[]string{"provider"},
	)

	rejectionsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vramd",
			Subsystem: "lifecycle",
			Name:      "rejections_total",
			Help:      "Total admissions refused (exhausted or stale telemetry)",
		},
	)

	providerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vramd",
			Subsystem: "lifecycle",
			Name:      "provider_errors_total",
			Help:      "Total failed provider load/unload calls",
		},
		[]string{"provider"},
	)

	committedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vramd",
			Subsystem: "lifecycle",
			Name:      "committed_mb",
			Help:      "VRAM budget committed to loaded models in MB",
		},
	)

	reservedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vramd",
			Subsystem: "lifecycle",
			Name:      "reserved_mb",
			Help:      "VRAM budget held by in-flight loads in MB",
		},
	)

	loadedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vramd",
			Subsystem: "lifecycle",
			Name:      "loaded_models",
			Help:      "Number of currently loaded models",
		},
	)
)

func init() {
	prometheus.MustRegister(loadsCounter, evictionsCounter, rejectionsCounter, providerErrors,
		committedGauge, reservedGauge, loadedGauge)
}

func observeBudget(committedMB, reservedMB, loaded int) {
	committedGauge.Set(float64(committedMB))
	reservedGauge.Set(float64(reservedMB))
	loadedGauge.Set(float64(loaded))
}
