// Command tileserve runs the tiled-inference service: it builds the engine
// and instance pool from configuration and serves frames over HTTP with a
// live WebSocket dashboard feed.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kunal/gpu-tile-runner/pkg/config"
	"github.com/kunal/gpu-tile-runner/pkg/dashboard"
	"github.com/kunal/gpu-tile-runner/pkg/gpu"
	"github.com/kunal/gpu-tile-runner/pkg/metrics"
	"github.com/kunal/gpu-tile-runner/pkg/runner"
	"github.com/kunal/gpu-tile-runner/pkg/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	probe := gpu.NewProbe(logger)
	defer probe.Close()

	if err := cfg.Validate(probe.DeviceCount()); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	eng, err := createEngine(cfg, logger)
	if err != nil {
		logger.Error("create engine", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	sess, err := runner.New(runner.Params{
		FrameWidth:  cfg.FrameWidth,
		FrameHeight: cfg.FrameHeight,
		TileWidth:   cfg.TileWidth,
		TileHeight:  cfg.TileHeight,
		Pad:         cfg.Pad,
		NumStreams:  cfg.NumStreams,
		UseGraph:    cfg.UseGraph,
	}, eng, metrics.New(reg), logger)
	if err != nil {
		eng.Close()
		logger.Error("create session", "error", err)
		os.Exit(1)
	}
	defer sess.Close()

	outW, outH := sess.OutputSize()
	logger.Info("service starting",
		"session_id", sess.ID,
		"backend", eng.Name(),
		"frame_w", cfg.FrameWidth, "frame_h", cfg.FrameHeight,
		"out_w", outW, "out_h", outH,
		"streams", sess.PoolSize(), "graph", cfg.UseGraph,
	)

	tracker := dashboard.NewTracker(sess.PoolSize())
	sess.SetObserver(tracker)

	bcast := dashboard.NewBroadcaster(logger)
	feed := dashboard.NewFeed(tracker, bcast, probe)
	feed.SessionID = sess.ID.String()
	feed.Backend = eng.Name()
	feed.DeviceID = cfg.DeviceID

	feedCtx, cancelFeed := context.WithCancel(context.Background())
	defer cancelFeed()
	go feed.Run(feedCtx)

	srv := server.New(cfg.ListenAddr, sess, reg, bcast, logger)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}
}
