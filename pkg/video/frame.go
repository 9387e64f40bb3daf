// Package video holds the frame data model exchanged with the host
// environment: planar pixel buffers with explicit stride and sample width.
package video

import "fmt"

// Frame is one planar video frame. Every plane shares the same width,
// height, stride and sample size. Plane data is addressed as
// Planes[p][y*Stride+x*SampleSize].
//
// Frames handed to a running call are treated as read-only by the callee;
// output frames are owned by the producer until returned.
type Frame struct {
	Width      int
	Height     int
	Stride     int // bytes per row, >= Width*SampleSize
	SampleSize int // bytes per sample: 1, 2 or 4
	Planes     [][]byte
}

// NewFrame allocates a frame with tightly packed rows.
func NewFrame(width, height, planes, sampleSize int) *Frame {
	f := &Frame{
		Width:      width,
		Height:     height,
		Stride:     width * sampleSize,
		SampleSize: sampleSize,
		Planes:     make([][]byte, planes),
	}
	for i := range f.Planes {
		f.Planes[i] = make([]byte, height*f.Stride)
	}
	return f
}

// PlaneCount returns the number of planes in the frame.
func (f *Frame) PlaneCount() int { return len(f.Planes) }

// Validate checks internal consistency of the frame layout.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("video: invalid dimensions %dx%d", f.Width, f.Height)
	}
	switch f.SampleSize {
	case 1, 2, 4:
	default:
		return fmt.Errorf("video: unsupported sample size %d", f.SampleSize)
	}
	if f.Stride < f.Width*f.SampleSize {
		return fmt.Errorf("video: stride %d too small for width %d (sample size %d)",
			f.Stride, f.Width, f.SampleSize)
	}
	if len(f.Planes) == 0 {
		return fmt.Errorf("video: frame has no planes")
	}
	for i, p := range f.Planes {
		if len(p) < f.Height*f.Stride {
			return fmt.Errorf("video: plane %d has %d bytes, need %d", i, len(p), f.Height*f.Stride)
		}
	}
	return nil
}

// CheckInputs validates a set of input frames for one call: every frame must
// be internally consistent and all frames must agree on geometry and sample
// size. Mirrors the cross-clip check done once per request.
func CheckInputs(frames []*Frame) error {
	if len(frames) == 0 {
		return fmt.Errorf("video: no input frames")
	}
	ref := frames[0]
	for i, f := range frames {
		if f == nil {
			return fmt.Errorf("video: input frame %d is nil", i)
		}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("video: input frame %d: %w", i, err)
		}
		if f.Width != ref.Width || f.Height != ref.Height {
			return fmt.Errorf("video: input frame %d is %dx%d, first is %dx%d",
				i, f.Width, f.Height, ref.Width, ref.Height)
		}
		if f.SampleSize != ref.SampleSize {
			return fmt.Errorf("video: input frame %d sample size %d differs from first (%d)",
				i, f.SampleSize, ref.SampleSize)
		}
	}
	return nil
}
