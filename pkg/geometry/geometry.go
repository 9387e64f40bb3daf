// Package geometry derives and validates the tiling protocol: block sizes,
// padding legality, scale factors between the frame's pixel planes and the
// executor's fixed tensor shapes, and the per-call copy descriptors.
package geometry

import "fmt"

// TensorShape is the fixed shape of one executor binding, without the batch
// dimension: channel count and spatial tile size.
type TensorShape struct {
	Channels int
	Height   int
	Width    int
}

func (s TensorShape) String() string {
	return fmt.Sprintf("[%d,%d,%d]", s.Channels, s.Height, s.Width)
}

// Elements returns the number of samples in the shape.
func (s TensorShape) Elements() int {
	return s.Channels * s.Height * s.Width
}

// Block describes the requested tiling of a frame: either an explicit tile
// size or whole-frame (dimensions taken from the first input).
type Block struct {
	W, H       int
	WholeFrame bool
}

// ResolveBlock validates the configured tile size and padding against the
// declared frame dimensions and produces the block descriptor.
//
// tileW == 0 means no explicit tile size was requested: the whole frame is
// one block and padding must be zero. tileH == 0 defaults to tileW.
func ResolveBlock(tileW, tileH, pad, frameW, frameH int) (Block, error) {
	if pad < 0 {
		return Block{}, fmt.Errorf("geometry: pad %d must be non-negative", pad)
	}
	if tileW > 0 {
		if tileH == 0 {
			tileH = tileW
		}
		if tileW-2*pad <= 0 || tileH-2*pad <= 0 {
			return Block{}, fmt.Errorf("geometry: pad %d too large for %dx%d tile", pad, tileW, tileH)
		}
		return Block{W: tileW, H: tileH}, nil
	}
	if tileH > 0 {
		return Block{}, fmt.Errorf("geometry: tile height given without tile width")
	}
	if pad != 0 {
		return Block{}, fmt.Errorf("geometry: pad requires an explicit tile size")
	}
	if frameW <= 0 || frameH <= 0 {
		return Block{}, fmt.Errorf("geometry: invalid frame size %dx%d", frameW, frameH)
	}
	return Block{W: frameW, H: frameH, WholeFrame: true}, nil
}

// ScaleFactors computes the up/down-scale between the bound input and output
// tensor shapes. Both ratios must be positive exact integers; anything else
// is a configuration error surfaced once at setup.
func ScaleFactors(in, out TensorShape) (wScale, hScale int, err error) {
	if in.Width <= 0 || in.Height <= 0 || out.Width <= 0 || out.Height <= 0 {
		return 0, 0, fmt.Errorf("geometry: non-positive binding shapes in=%v out=%v", in, out)
	}
	if out.Width%in.Width != 0 {
		return 0, 0, fmt.Errorf("geometry: output width %d is not an integer multiple of input width %d",
			out.Width, in.Width)
	}
	if out.Height%in.Height != 0 {
		return 0, 0, fmt.Errorf("geometry: output height %d is not an integer multiple of input height %d",
			out.Height, in.Height)
	}
	return out.Width / in.Width, out.Height / in.Height, nil
}

// InputInfo carries the per-call layout of the source planes together with
// the executor's bound input tile size.
type InputInfo struct {
	Width      int
	Height     int
	Pitch      int // bytes per row
	SampleSize int
	PatchW     int
	PatchH     int
}

// OutputInfo carries the per-call layout of the destination planes.
type OutputInfo struct {
	Pitch      int
	SampleSize int
}

// IOInfo is the complete copy descriptor for one inference call. It carries
// only sizes and strides; the plane byte slices travel alongside it and stay
// owned by the caller for the duration of the call.
type IOInfo struct {
	In     InputInfo
	Out    OutputInfo
	WScale int
	HScale int
	Pad    int
}

// StepW returns the horizontal distance between tile anchors.
func (io IOInfo) StepW() int { return io.In.PatchW - 2*io.Pad }

// StepH returns the vertical distance between tile anchors.
func (io IOInfo) StepH() int { return io.In.PatchH - 2*io.Pad }

// Validate checks the descriptor invariants shared by every call.
func (io IOInfo) Validate() error {
	if io.StepW() <= 0 || io.StepH() <= 0 {
		return fmt.Errorf("geometry: pad %d too large for %dx%d patch",
			io.Pad, io.In.PatchW, io.In.PatchH)
	}
	if io.WScale <= 0 || io.HScale <= 0 {
		return fmt.Errorf("geometry: non-positive scale %dx%d", io.WScale, io.HScale)
	}
	return nil
}

// Tile is one anchor in the plan. X and Y address the first interior pixel
// in source coordinates; W and H are the interior extent (smaller than the
// step only on the right/bottom edge).
type Tile struct {
	X, Y int
	W, H int
}

// Tiles enumerates the tile plan covering the full frame. Interiors of the
// returned tiles partition [0,Width)x[0,Height) exactly, so the reassembled
// output covers the declared output geometry with no overlap and no gaps.
func (io IOInfo) Tiles() []Tile {
	var tiles []Tile
	for y := 0; y < io.In.Height; y += io.StepH() {
		h := min(io.StepH(), io.In.Height-y)
		for x := 0; x < io.In.Width; x += io.StepW() {
			w := min(io.StepW(), io.In.Width-x)
			tiles = append(tiles, Tile{X: x, Y: y, W: w, H: h})
		}
	}
	return tiles
}
