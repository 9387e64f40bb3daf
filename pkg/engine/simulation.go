package engine

import (
	"fmt"
	"log/slog"

	"github.com/kunal/gpu-tile-runner/pkg/geometry"
)

// SimOptions configures the simulated engine.
type SimOptions struct {
	Channels   int // input/output channel count (default 3)
	WScale     int // horizontal upscale factor (default 1)
	HScale     int // vertical upscale factor (default 1)
	SampleSize int // bytes per sample: 1, 2 or 4 (default 1)
	MaxTile    int // largest tile edge any profile supports (default 2048)

	// Fault, when set, is consulted on every execution; a non-nil return
	// fails that call. Used to exercise failure paths.
	Fault func() error
}

func (o *SimOptions) defaults() {
	if o.Channels <= 0 {
		o.Channels = 3
	}
	if o.WScale <= 0 {
		o.WScale = 1
	}
	if o.HScale <= 0 {
		o.HScale = 1
	}
	if o.SampleSize == 0 {
		o.SampleSize = 1
	}
	if o.MaxTile <= 0 {
		o.MaxTile = 2048
	}
}

// Simulated mimics an accelerator backend with a deterministic
// nearest-neighbour upscale by the configured factors. Output is an exact
// function of input, which makes the geometry properties directly testable.
type Simulated struct {
	opts SimOptions
	log  *slog.Logger
}

// NewSimulated creates the simulation backend.
func NewSimulated(opts SimOptions, logger *slog.Logger) (*Simulated, error) {
	opts.defaults()
	switch opts.SampleSize {
	case 1, 2, 4:
	default:
		return nil, fmt.Errorf("engine: unsupported sample size %d", opts.SampleSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulated{opts: opts, log: logger}, nil
}

func (s *Simulated) Name() string { return "simulation" }

// SelectProfile accepts any block whose edges fit within the configured
// maximum; there is one profile per supported size class.
func (s *Simulated) SelectProfile(block geometry.Block) (int, error) {
	if block.W > s.opts.MaxTile || block.H > s.opts.MaxTile {
		return 0, fmt.Errorf("engine: no profile supports a %dx%d tile (max edge %d)",
			block.W, block.H, s.opts.MaxTile)
	}
	return 0, nil
}

func (s *Simulated) NewContext(profile int, block geometry.Block) (Context, error) {
	if profile != 0 {
		return nil, fmt.Errorf("engine: unknown profile %d", profile)
	}
	ctx := &simContext{
		opts: s.opts,
		in:   geometry.TensorShape{Channels: s.opts.Channels, Height: block.H, Width: block.W},
		out: geometry.TensorShape{
			Channels: s.opts.Channels,
			Height:   block.H * s.opts.HScale,
			Width:    block.W * s.opts.WScale,
		},
	}
	s.log.Debug("simulation context bound",
		"input", ctx.in.String(), "output", ctx.out.String())
	return ctx, nil
}

func (s *Simulated) Close() error { return nil }

type simContext struct {
	opts SimOptions
	in   geometry.TensorShape
	out  geometry.TensorShape
}

func (c *simContext) InputShape() geometry.TensorShape  { return c.in }
func (c *simContext) OutputShape() geometry.TensorShape { return c.out }
func (c *simContext) SampleSize() int                   { return c.opts.SampleSize }

func (c *simContext) Execute(input, output []byte) error {
	if c.opts.Fault != nil {
		if err := c.opts.Fault(); err != nil {
			return err
		}
	}
	ss := c.opts.SampleSize
	for ch := 0; ch < c.out.Channels; ch++ {
		inPlane := input[ch*c.in.Height*c.in.Width*ss:]
		outPlane := output[ch*c.out.Height*c.out.Width*ss:]
		for y := 0; y < c.out.Height; y++ {
			srcRow := inPlane[(y/c.opts.HScale)*c.in.Width*ss:]
			dstRow := outPlane[y*c.out.Width*ss:]
			for x := 0; x < c.out.Width; x++ {
				src := (x / c.opts.WScale) * ss
				copy(dstRow[x*ss:(x+1)*ss], srcRow[src:src+ss])
			}
		}
	}
	return nil
}

// CaptureGraph records the bound buffer pair; replay re-runs the same
// execution over them, like a captured device graph would.
func (c *simContext) CaptureGraph(input, output []byte) (Graph, error) {
	if err := c.Execute(input, output); err != nil {
		return nil, fmt.Errorf("capture pass: %w", err)
	}
	return &simGraph{ctx: c, input: input, output: output}, nil
}

func (c *simContext) Close() error { return nil }

type simGraph struct {
	ctx    *simContext
	input  []byte
	output []byte
}

func (g *simGraph) Replay() error {
	return g.ctx.Execute(g.input, g.output)
}
