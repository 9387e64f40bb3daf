//go:build nvml

package gpu

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

typedef int nvmlReturn_t;
typedef void* nvmlDevice_t;

typedef struct {
    unsigned long long total;
    unsigned long long free;
    unsigned long long used;
} nvmlMemory_t;

typedef struct {
    unsigned int gpu;
    unsigned int memory;
} nvmlUtilization_t;

static void* nvml_lib = NULL;

typedef nvmlReturn_t (*nvmlInit_t)(void);
typedef nvmlReturn_t (*nvmlShutdown_t)(void);
typedef nvmlReturn_t (*nvmlDeviceGetCount_t)(unsigned int*);
typedef nvmlReturn_t (*nvmlDeviceGetHandleByIndex_t)(unsigned int, nvmlDevice_t*);
typedef nvmlReturn_t (*nvmlDeviceGetMemoryInfo_t)(nvmlDevice_t, nvmlMemory_t*);
typedef nvmlReturn_t (*nvmlDeviceGetUtilizationRates_t)(nvmlDevice_t, nvmlUtilization_t*);
typedef nvmlReturn_t (*nvmlDeviceGetTemperature_t)(nvmlDevice_t, int, unsigned int*);
typedef nvmlReturn_t (*nvmlDeviceGetName_t)(nvmlDevice_t, char*, unsigned int);

static nvmlInit_t f_init = NULL;
static nvmlShutdown_t f_shutdown = NULL;
static nvmlDeviceGetCount_t f_count = NULL;
static nvmlDeviceGetHandleByIndex_t f_handle = NULL;
static nvmlDeviceGetMemoryInfo_t f_memory = NULL;
static nvmlDeviceGetUtilizationRates_t f_util = NULL;
static nvmlDeviceGetTemperature_t f_temp = NULL;
static nvmlDeviceGetName_t f_name = NULL;

static int probe_load() {
    nvml_lib = dlopen("libnvidia-ml.so.1", RTLD_LAZY);
    if (!nvml_lib) {
        nvml_lib = dlopen("libnvidia-ml.so", RTLD_LAZY);
    }
    if (!nvml_lib) return -1;

    f_init = (nvmlInit_t)dlsym(nvml_lib, "nvmlInit_v2");
    if (!f_init) f_init = (nvmlInit_t)dlsym(nvml_lib, "nvmlInit");
    f_shutdown = (nvmlShutdown_t)dlsym(nvml_lib, "nvmlShutdown");
    f_count = (nvmlDeviceGetCount_t)dlsym(nvml_lib, "nvmlDeviceGetCount_v2");
    if (!f_count) f_count = (nvmlDeviceGetCount_t)dlsym(nvml_lib, "nvmlDeviceGetCount");
    f_handle = (nvmlDeviceGetHandleByIndex_t)dlsym(nvml_lib, "nvmlDeviceGetHandleByIndex_v2");
    if (!f_handle) f_handle = (nvmlDeviceGetHandleByIndex_t)dlsym(nvml_lib, "nvmlDeviceGetHandleByIndex");
    f_memory = (nvmlDeviceGetMemoryInfo_t)dlsym(nvml_lib, "nvmlDeviceGetMemoryInfo");
    f_util = (nvmlDeviceGetUtilizationRates_t)dlsym(nvml_lib, "nvmlDeviceGetUtilizationRates");
    f_temp = (nvmlDeviceGetTemperature_t)dlsym(nvml_lib, "nvmlDeviceGetTemperature");
    f_name = (nvmlDeviceGetName_t)dlsym(nvml_lib, "nvmlDeviceGetName");

    if (!f_init || !f_count || !f_handle) return -2;
    return f_init();
}

static int probe_count() {
    unsigned int count = 0;
    if (f_count) f_count(&count);
    return (int)count;
}

static int probe_memory(int idx, unsigned long long* total, unsigned long long* free, unsigned long long* used) {
    nvmlDevice_t dev;
    if (f_handle(idx, &dev) != 0 || !f_memory) return -1;
    nvmlMemory_t mem;
    if (f_memory(dev, &mem) != 0) return -1;
    *total = mem.total;
    *free = mem.free;
    *used = mem.used;
    return 0;
}

static int probe_utilization(int idx, unsigned int* gpu) {
    nvmlDevice_t dev;
    if (f_handle(idx, &dev) != 0 || !f_util) return -1;
    nvmlUtilization_t u;
    if (f_util(dev, &u) != 0) return -1;
    *gpu = u.gpu;
    return 0;
}

static int probe_temperature(int idx, unsigned int* temp) {
    nvmlDevice_t dev;
    if (f_handle(idx, &dev) != 0 || !f_temp) return -1;
    // 0 = NVML_TEMPERATURE_GPU
    return f_temp(dev, 0, temp);
}

static int probe_name(int idx, char* buf, unsigned int len) {
    nvmlDevice_t dev;
    if (f_handle(idx, &dev) != 0 || !f_name) return -1;
    return f_name(dev, buf, len);
}

static void probe_shutdown() {
    if (f_shutdown) f_shutdown();
    if (nvml_lib) dlclose(nvml_lib);
    nvml_lib = NULL;
}
*/
import "C"

import (
	"fmt"
	"log/slog"
)

// Probe enumerates NVIDIA devices through NVML, loaded at runtime so the
// binary carries no compile-time driver dependency. A host without the
// library probes as zero devices.
type Probe struct {
	available bool
	count     int
}

// NewProbe attempts to load and initialize NVML. Failure is not fatal: the
// probe reports zero devices and the device-index check is skipped.
func NewProbe(logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	if rc := C.probe_load(); rc != 0 {
		logger.Warn("gpu: NVML unavailable", "code", int(rc))
		return &Probe{}
	}
	count := int(C.probe_count())
	logger.Info("gpu: NVML initialized", "devices", count)
	return &Probe{available: true, count: count}
}

// DeviceCount returns the number of visible devices, 0 when NVML is absent.
func (p *Probe) DeviceCount() int { return p.count }

// DeviceInfo returns live stats for one device.
func (p *Probe) DeviceInfo(index int) (*Info, error) {
	if !p.available {
		return nil, fmt.Errorf("gpu: NVML not available")
	}
	if index < 0 || index >= p.count {
		return nil, fmt.Errorf("gpu: device index %d out of range (have %d)", index, p.count)
	}
	info := &Info{Index: index}

	var name [256]C.char
	if C.probe_name(C.int(index), &name[0], 256) == 0 {
		info.Name = C.GoString(&name[0])
	}

	var total, free, used C.ulonglong
	if C.probe_memory(C.int(index), &total, &free, &used) == 0 {
		const gb = 1024 * 1024 * 1024
		info.MemoryTotalGB = float64(total) / gb
		info.MemoryFreeGB = float64(free) / gb
		info.MemoryUsedGB = float64(used) / gb
	}

	var util C.uint
	if C.probe_utilization(C.int(index), &util) == 0 {
		info.Utilization = float64(util)
	}

	var temp C.uint
	if C.probe_temperature(C.int(index), &temp) == 0 {
		info.TemperatureC = float64(temp)
	}
	return info, nil
}

// Close shuts NVML down.
func (p *Probe) Close() {
	if p.available {
		C.probe_shutdown()
		p.available = false
	}
}
