package telemetry

import (
	"context"
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// NVMLSource samples device 0 through NVML. Construction initializes the
// library; Close shuts it down.
type NVMLSource struct {
	device nvml.Device
}

// NewNVMLSource initializes NVML and resolves the device handle. Failure
// here is not fatal to the service: callers fall back to an UnavailableSource
// so the tracker reports stale instead of crashing.
func NewNVMLSource(index int) (*NVMLSource, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("nvml init: %s", nvml.ErrorString(ret))
	}
	device, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		_ = nvml.Shutdown()
		return nil, fmt.Errorf("nvml device %d: %s", index, nvml.ErrorString(ret))
	}
	return &NVMLSource{device: device}, nil
}

func (s *NVMLSource) Sample(ctx context.Context) (Reading, error) {
	mem, ret := s.device.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return Reading{}, fmt.Errorf("nvml memory info: %s", nvml.ErrorString(ret))
	}
	r := Reading{
		TotalMB: int(mem.Total / (1024 * 1024)),
		UsedMB:  int(mem.Used / (1024 * 1024)),
		FreeMB:  int(mem.Free / (1024 * 1024)),
	}
	// Utilization and temperature are informational; failures there do not
	// invalidate the memory reading.
	if util, ret := s.device.GetUtilizationRates(); ret == nvml.SUCCESS {
		r.UtilizationPct = int(util.Gpu)
	}
	if temp, ret := s.device.GetTemperature(nvml.TEMPERATURE_GPU); ret == nvml.SUCCESS {
		r.TemperatureC = int(temp)
	}
	return r, nil
}

func (s *NVMLSource) Close() error {
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("nvml shutdown: %s", nvml.ErrorString(ret))
	}
	return nil
}

// UnavailableSource always fails with the reason telemetry could not be
// initialized, driving the tracker stale.
type UnavailableSource struct {
	Err error
}

func (s UnavailableSource) Sample(context.Context) (Reading, error) {
	return Reading{}, s.Err
}

func (s UnavailableSource) Close() error { return nil }
