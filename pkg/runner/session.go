// Package runner owns the configured processing session: the engine, the
// fair instance pool, the resolved geometry, and the per-frame inference
// orchestration that ties them together.
package runner

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kunal/gpu-tile-runner/pkg/engine"
	"github.com/kunal/gpu-tile-runner/pkg/geometry"
	"github.com/kunal/gpu-tile-runner/pkg/metrics"
	"github.com/kunal/gpu-tile-runner/pkg/pool"
)

// Params is the configuration surface of one session. Frame dimensions are
// declared up front; every processed frame must match them.
type Params struct {
	FrameWidth  int
	FrameHeight int
	TileWidth   int // 0 = whole-frame tiling
	TileHeight  int // 0 = defaults to TileWidth
	Pad         int
	NumStreams  int // pool concurrency degree, >= 1
	UseGraph    bool
}

// Observer receives per-call lifecycle notifications, used by the dashboard
// to track per-instance state. Implementations must be cheap and
// thread-safe; calls arrive from whichever goroutine holds the instance.
type Observer interface {
	CallStarted(instance int)
	CallFinished(instance int, elapsed time.Duration, err error)
}

// Session is the explicitly constructed, explicitly closed processing state:
// no package globals, lifetime tied to the owning caller.
type Session struct {
	ID        uuid.UUID
	log       *slog.Logger
	eng       engine.Engine
	pool      *pool.Pool
	instances []*engine.Instance
	met       *metrics.Metrics
	obs       Observer

	params Params
	block  geometry.Block
	wScale int
	hScale int
	outW   int
	outH   int
}

// New validates the configuration, builds the instance pool, and resolves
// the geometry. Any failure aborts setup entirely; no partial session is
// ever returned.
func New(p Params, eng engine.Engine, met *metrics.Metrics, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if met == nil {
		met = metrics.New(prometheus.NewRegistry())
	}
	if p.NumStreams < 1 {
		return nil, fmt.Errorf("runner: num_streams %d must be >= 1", p.NumStreams)
	}

	block, err := geometry.ResolveBlock(p.TileWidth, p.TileHeight, p.Pad, p.FrameWidth, p.FrameHeight)
	if err != nil {
		return nil, err
	}

	profile, err := eng.SelectProfile(block)
	if err != nil {
		return nil, fmt.Errorf("runner: profile selection: %w", err)
	}

	instances, err := engine.BuildInstances(eng, profile, block, p.NumStreams, p.UseGraph)
	if err != nil {
		return nil, err
	}

	ctx := instances[0].Ctx
	wScale, hScale, err := geometry.ScaleFactors(ctx.InputShape(), ctx.OutputShape())
	if err != nil {
		engine.CloseInstances(instances)
		return nil, err
	}

	s := &Session{
		ID:        uuid.New(),
		log:       logger,
		eng:       eng,
		pool:      pool.New(p.NumStreams),
		instances: instances,
		met:       met,
		params:    p,
		block:     block,
		wScale:    wScale,
		hScale:    hScale,
		outW:      p.FrameWidth * wScale,
		outH:      p.FrameHeight * hScale,
	}

	// The engine may bind a patch differing from the requested block; the
	// padding legality check has to hold against the bound shape.
	probe := s.ioInfo(p.FrameWidth*ctx.SampleSize(), s.outW*ctx.SampleSize(), ctx.SampleSize())
	if err := probe.Validate(); err != nil {
		engine.CloseInstances(instances)
		return nil, err
	}

	logger.Info("session ready",
		"session", s.ID.String(),
		"backend", eng.Name(),
		"block", fmt.Sprintf("%dx%d", block.W, block.H),
		"patch", ctx.InputShape().String(),
		"scale", fmt.Sprintf("%dx%d", wScale, hScale),
		"pad", p.Pad,
		"streams", p.NumStreams,
		"graph", p.UseGraph,
	)
	return s, nil
}

// SetObserver attaches a call observer. Must be set before processing
// starts; nil detaches.
func (s *Session) SetObserver(obs Observer) { s.obs = obs }

// OutputSize returns the declared output frame dimensions.
func (s *Session) OutputSize() (w, h int) { return s.outW, s.outH }

// Scale returns the resolved per-axis scale factors.
func (s *Session) Scale() (w, h int) { return s.wScale, s.hScale }

// PoolSize returns the configured concurrency degree.
func (s *Session) PoolSize() int { return s.pool.Size() }

// SampleSize returns the per-sample byte width the backend requires.
func (s *Session) SampleSize() int { return s.instances[0].Ctx.SampleSize() }

// ioInfo assembles the per-call copy descriptor. Only pitches and sample
// size vary between calls; everything else is fixed at configuration.
func (s *Session) ioInfo(inPitch, outPitch, sampleSize int) geometry.IOInfo {
	in := s.instances[0].Ctx.InputShape()
	return geometry.IOInfo{
		In: geometry.InputInfo{
			Width:      s.params.FrameWidth,
			Height:     s.params.FrameHeight,
			Pitch:      inPitch,
			SampleSize: sampleSize,
			PatchW:     in.Width,
			PatchH:     in.Height,
		},
		Out:    geometry.OutputInfo{Pitch: outPitch, SampleSize: sampleSize},
		WScale: s.wScale,
		HScale: s.hScale,
		Pad:    s.params.Pad,
	}
}

// Close tears the pool down. Callers must have drained all in-flight work.
func (s *Session) Close() error {
	err := engine.CloseInstances(s.instances)
	if cerr := s.eng.Close(); err == nil {
		err = cerr
	}
	return err
}
