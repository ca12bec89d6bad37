package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"vramd/pkg/types"
)

var (
	gpuVRAMUsed = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vramd",
		Subsystem: "gpu",
		Name:      "vram_used_mb",
		Help:      "VRAM in use on the device in MB",
	})

	gpuVRAMFree = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vramd",
		Subsystem: "gpu",
		Name:      "vram_free_mb",
		Help:      "VRAM free on the device in MB",
	})

	gpuUtilization = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vramd",
		Subsystem: "gpu",
		Name:      "utilization_pct",
		Help:      "GPU utilization percentage",
	})

	gpuTemperature = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vramd",
		Subsystem: "gpu",
		Name:      "temperature_c",
		Help:      "GPU core temperature in Celsius",
	})

	telemetryStale = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vramd",
		Subsystem: "gpu",
		Name:      "telemetry_stale",
		Help:      "1 when telemetry is stale, else 0",
	})
)

func init() {
	prometheus.MustRegister(gpuVRAMUsed, gpuVRAMFree, gpuUtilization, gpuTemperature, telemetryStale)
}

func observeSnapshot(snap types.GPUDevice) {
	gpuVRAMUsed.Set(float64(snap.UsedVRAMMB))
	gpuVRAMFree.Set(float64(snap.FreeVRAMMB))
	gpuUtilization.Set(float64(snap.UtilizationPct))
	gpuTemperature.Set(float64(snap.TemperatureC))
	setStaleGauge(false)
}

func setStaleGauge(stale bool) {
	if stale {
		telemetryStale.Set(1)
		return
	}
	telemetryStale.Set(0)
}
