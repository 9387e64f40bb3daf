//go:build onnx

package main

import (
	"log/slog"
	"os"

	"github.com/kunal/gpu-tile-runner/pkg/config"
	"github.com/kunal/gpu-tile-runner/pkg/engine"
)

// createEngine returns the ONNX Runtime backend (GPU build).
// Build with: go build -tags onnx
func createEngine(cfg *config.Config, logger *slog.Logger) (engine.Engine, error) {
	if cfg.Backend == config.BackendSimulation {
		return engine.NewSimulated(engine.SimOptions{
			Channels:   cfg.SimChannels,
			WScale:     cfg.SimWScale,
			HScale:     cfg.SimHScale,
			SampleSize: cfg.SimSampleSize,
		}, logger)
	}
	return engine.NewONNX(engine.ONNXOptions{
		ModelPath:   cfg.EnginePath,
		DeviceID:    cfg.DeviceID,
		LibraryPath: os.Getenv("ONNXRUNTIME_LIB_PATH"),
	}, logger)
}
