// Package gpu enumerates accelerator devices for configuration validation
// and dashboard stats. With the nvml build tag it loads NVML at runtime via
// dlopen; otherwise a stub reports a single simulated device.
package gpu

// Info holds one device's identity and live stats. Simulated values are
// served when NVML is unavailable.
type Info struct {
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	MemoryTotalGB float64 `json:"memory_total_gb"`
	MemoryFreeGB  float64 `json:"memory_free_gb"`
	MemoryUsedGB  float64 `json:"memory_used_gb"`
	Utilization   float64 `json:"utilization"`
	TemperatureC  float64 `json:"temperature_c"`
}
