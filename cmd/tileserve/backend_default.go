//go:build !onnx

package main

import (
	"log/slog"

	"github.com/kunal/gpu-tile-runner/pkg/config"
	"github.com/kunal/gpu-tile-runner/pkg/engine"
)

// createEngine returns the simulation backend (default build).
// For real ONNX inference, build with: go build -tags onnx
func createEngine(cfg *config.Config, logger *slog.Logger) (engine.Engine, error) {
	return engine.NewSimulated(engine.SimOptions{
		Channels:   cfg.SimChannels,
		WScale:     cfg.SimWScale,
		HScale:     cfg.SimHScale,
		SampleSize: cfg.SimSampleSize,
	}, logger)
}
