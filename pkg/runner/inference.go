package runner

import (
	"fmt"
	"time"

	"github.com/kunal/gpu-tile-runner/pkg/engine"
	"github.com/kunal/gpu-tile-runner/pkg/geometry"
	"github.com/kunal/gpu-tile-runner/pkg/video"
)

// InferenceError reports a failed call. The failure is attached to that
// call's frame only; pool bookkeeping is unaffected and the instance it ran
// on has already been released.
type InferenceError struct {
	Instance int
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference on instance %d: %v", e.Instance, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Process runs one inference call over a set of same-dimensioned input
// frames and returns the reassembled output frame. It blocks while waiting
// for pool admission and while the call's stream drains.
//
// On failure the output is discarded and an *InferenceError returned; the
// checked-out instance is released either way.
func (s *Session) Process(inputs []*video.Frame) (*video.Frame, error) {
	if err := video.CheckInputs(inputs); err != nil {
		return nil, err
	}
	first := inputs[0]
	if first.Width != s.params.FrameWidth || first.Height != s.params.FrameHeight {
		return nil, fmt.Errorf("runner: frame is %dx%d, session configured for %dx%d",
			first.Width, first.Height, s.params.FrameWidth, s.params.FrameHeight)
	}
	if ss := s.SampleSize(); first.SampleSize != ss {
		return nil, fmt.Errorf("runner: frame sample size %d, backend requires %d",
			first.SampleSize, ss)
	}

	// Source planes in clip order then plane order, one per input channel.
	var srcPlanes [][]byte
	for _, f := range inputs {
		srcPlanes = append(srcPlanes, f.Planes...)
	}
	if want := s.instances[0].Ctx.InputShape().Channels; len(srcPlanes) != want {
		return nil, fmt.Errorf("runner: %d source planes for %d input channels",
			len(srcPlanes), want)
	}

	waitStart := time.Now()
	idx := s.pool.Checkout()
	s.met.PoolWait.Observe(time.Since(waitStart).Seconds())
	s.met.InstancesBusy.Inc()
	defer func() {
		s.met.InstancesBusy.Dec()
		s.pool.Release(idx)
	}()
	if s.obs != nil {
		s.obs.CallStarted(idx)
	}

	inst := s.instances[idx]
	out := video.NewFrame(s.outW, s.outH, inst.Ctx.OutputShape().Channels, first.SampleSize)
	info := s.ioInfo(first.Stride, out.Stride, first.SampleSize)

	callStart := time.Now()
	tiles := info.Tiles()
	err := s.runTiles(inst, info, tiles, srcPlanes, out.Planes)
	if s.obs != nil {
		s.obs.CallFinished(idx, time.Since(callStart), err)
	}
	if err != nil {
		s.met.FrameFailures.Inc()
		s.log.Warn("inference failed", "session", s.ID.String(), "instance", idx, "err", err)
		return nil, &InferenceError{Instance: idx, Err: err}
	}

	s.met.FramesTotal.Inc()
	s.met.TilesTotal.Add(float64(len(tiles)))
	s.met.InferLatency.Observe(time.Since(callStart).Seconds())
	return out, nil
}

// runTiles drives the per-call state machine on the instance's own stream:
// HostToDevice, Execute (direct or graph replay), DeviceToHost per tile,
// then one synchronize. The first fault latches and aborts the remaining
// phases.
func (s *Session) runTiles(inst *engine.Instance, info geometry.IOInfo, tiles []geometry.Tile, src, dst [][]byte) error {
	ss := info.In.SampleSize
	inShape := inst.Ctx.InputShape()
	outShape := inst.Ctx.OutputShape()
	inPlaneBytes := inShape.Height * inShape.Width * ss
	outPlaneBytes := outShape.Height * outShape.Width * ss

	for _, tile := range tiles {
		inst.Stream.Do("host-to-device", func() error {
			for ch := range src {
				geometry.CopyTileIn(inst.Input[ch*inPlaneBytes:(ch+1)*inPlaneBytes], src[ch], info, tile)
			}
			return nil
		})
		if inst.Graph != nil {
			inst.Stream.Do("graph-replay", inst.Graph.Replay)
		} else {
			inst.Stream.Do("execute", func() error {
				return inst.Ctx.Execute(inst.Input, inst.Output)
			})
		}
		inst.Stream.Do("device-to-host", func() error {
			for ch := range dst {
				geometry.CopyTileOut(dst[ch], inst.Output[ch*outPlaneBytes:(ch+1)*outPlaneBytes], info, tile)
			}
			return nil
		})
	}
	return inst.Stream.Synchronize()
}
