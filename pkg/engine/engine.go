// Package engine defines the boundary to the inference-engine collaborator:
// profile selection, execution contexts with fixed tensor bindings, optional
// replayable graphs, and the per-instance stream abstraction.
//
// Two backends exist: a deterministic simulation (default build) and ONNX
// Runtime (build with -tags onnx).
package engine

import (
	"fmt"

	"github.com/kunal/gpu-tile-runner/pkg/geometry"
)

// Engine loads a precompiled inference artifact and materializes execution
// contexts bound to a selected input-size profile.
type Engine interface {
	// Name identifies the backend in logs.
	Name() string

	// SelectProfile picks the input-size profile matching the requested
	// block geometry. Fails configuration when no profile fits.
	SelectProfile(block geometry.Block) (int, error)

	// NewContext binds a fresh execution context to the profile and block.
	// Each context carries its own fixed input/output tensor shapes.
	NewContext(profile int, block geometry.Block) (Context, error)

	Close() error
}

// Context is one bound execution context. Input and output shapes are fixed
// for its lifetime; Execute runs exactly one pass over the caller-owned
// buffers, which must be sized Shape.Elements()*SampleSize bytes.
type Context interface {
	InputShape() geometry.TensorShape
	OutputShape() geometry.TensorShape

	// SampleSize is the byte width the backend requires per sample in the
	// bound buffers (and therefore in the frames it is fed).
	SampleSize() int

	Execute(input, output []byte) error

	// CaptureGraph records one execution over the given buffers and returns
	// a replayable graph fixed to those buffers.
	CaptureGraph(input, output []byte) (Graph, error)

	Close() error
}

// Graph is a pre-captured execution replayed without re-issuing each
// operation. Bound to the buffers it was captured over.
type Graph interface {
	Replay() error
}

// Instance bundles everything needed to run one inference pass: a bound
// context, device buffers sized to its shapes, the optional captured graph
// and a private stream. Exactly one caller owns an instance at a time,
// enforced by the pool checkout discipline — no lock here.
type Instance struct {
	Index  int
	Ctx    Context
	Input  []byte
	Output []byte
	Graph  Graph // non-nil only in graph-replay mode
	Stream *Stream
}

// BuildInstances constructs n instances bound to the selected profile. Any
// construction failure tears down the already-built instances and aborts:
// a partially-initialized pool cannot safely serve requests.
func BuildInstances(eng Engine, profile int, block geometry.Block, n int, useGraph bool) ([]*Instance, error) {
	instances := make([]*Instance, 0, n)
	fail := func(err error) ([]*Instance, error) {
		for _, inst := range instances {
			inst.Ctx.Close()
		}
		return nil, err
	}

	for i := 0; i < n; i++ {
		ctx, err := eng.NewContext(profile, block)
		if err != nil {
			return fail(fmt.Errorf("engine: instance %d: %w", i, err))
		}
		inst := &Instance{
			Index:  i,
			Ctx:    ctx,
			Input:  make([]byte, ctx.InputShape().Elements()*ctx.SampleSize()),
			Output: make([]byte, ctx.OutputShape().Elements()*ctx.SampleSize()),
			Stream: &Stream{},
		}
		if useGraph {
			g, err := ctx.CaptureGraph(inst.Input, inst.Output)
			if err != nil {
				ctx.Close()
				return fail(fmt.Errorf("engine: instance %d graph capture: %w", i, err))
			}
			inst.Graph = g
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// CloseInstances releases every instance context, keeping the first error.
func CloseInstances(instances []*Instance) error {
	var first error
	for _, inst := range instances {
		if err := inst.Ctx.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
