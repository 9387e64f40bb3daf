//go:build !nvml

package gpu

import (
	"fmt"
	"log/slog"
)

// Probe is the no-NVML fallback: one simulated device with fixed stats, so
// device-index validation still has something to validate against.
type Probe struct{}

// NewProbe reports the stub probe. Build with -tags nvml for real
// enumeration.
func NewProbe(logger *slog.Logger) *Probe {
	if logger != nil {
		logger.Debug("gpu: NVML support not built in, using simulated device")
	}
	return &Probe{}
}

// DeviceCount returns the number of visible devices.
func (p *Probe) DeviceCount() int { return 1 }

// DeviceInfo returns stats for one device.
func (p *Probe) DeviceInfo(index int) (*Info, error) {
	if index != 0 {
		return nil, fmt.Errorf("gpu: device index %d out of range (have 1)", index)
	}
	return &Info{
		Index:         0,
		Name:          "simulated-device",
		MemoryTotalGB: 8,
		MemoryFreeGB:  7.2,
		MemoryUsedGB:  0.8,
		Utilization:   0,
		TemperatureC:  42,
	}, nil
}

// Close releases probe resources.
func (p *Probe) Close() {}
