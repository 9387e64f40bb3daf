//go:build onnx

package engine

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/kunal/gpu-tile-runner/pkg/geometry"
)

// ONNXOptions configures the ONNX Runtime backend.
type ONNXOptions struct {
	ModelPath   string
	DeviceID    int
	LibraryPath string // optional override for the onnxruntime shared library
}

// ONNX runs the model through ONNX Runtime with fixed-shape bound tensors.
// Each context owns one session with preallocated input/output tensors, the
// equivalent of an execution context with bound device buffers. Frames must
// carry float32 samples (sample size 4).
type ONNX struct {
	opts    ONNXOptions
	log     *slog.Logger
	inName  string
	outName string
	inDims  []int64 // -1 marks a dynamic dimension
	outDims []int64
}

// NewONNX loads the model metadata and validates its binding topology.
func NewONNX(opts ONNXOptions, logger *slog.Logger) (*ONNX, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("engine: onnxruntime init: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("engine: load %s: %w", opts.ModelPath, err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("engine: model must have one input and one output binding, has %d/%d",
			len(inputs), len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 || len(outputs[0].Dimensions) != 4 {
		return nil, fmt.Errorf("engine: bindings must be NCHW, got %d/%d dims",
			len(inputs[0].Dimensions), len(outputs[0].Dimensions))
	}
	e := &ONNX{
		opts:    opts,
		log:     logger,
		inName:  inputs[0].Name,
		outName: outputs[0].Name,
		inDims:  append([]int64(nil), inputs[0].Dimensions...),
		outDims: append([]int64(nil), outputs[0].Dimensions...),
	}
	if e.inDims[1] <= 0 || e.outDims[1] <= 0 {
		return nil, fmt.Errorf("engine: dynamic channel counts are not supported")
	}
	logger.Info("onnx model loaded",
		"path", opts.ModelPath, "input", e.inName, "output", e.outName)
	return e, nil
}

func (e *ONNX) Name() string { return "onnx" }

// SelectProfile checks that the requested block is compatible with the
// model's spatial dimensions: static dimensions must match exactly, dynamic
// ones accept any size.
func (e *ONNX) SelectProfile(block geometry.Block) (int, error) {
	if h := e.inDims[2]; h > 0 && int(h) != block.H {
		return 0, fmt.Errorf("engine: model input height %d does not match %d tile", h, block.H)
	}
	if w := e.inDims[3]; w > 0 && int(w) != block.W {
		return 0, fmt.Errorf("engine: model input width %d does not match %d tile", w, block.W)
	}
	return 0, nil
}

func (e *ONNX) NewContext(profile int, block geometry.Block) (Context, error) {
	if profile != 0 {
		return nil, fmt.Errorf("engine: unknown profile %d", profile)
	}

	in := geometry.TensorShape{Channels: int(e.inDims[1]), Height: block.H, Width: block.W}
	if e.inDims[2] > 0 {
		in.Height = int(e.inDims[2])
	}
	if e.inDims[3] > 0 {
		in.Width = int(e.inDims[3])
	}
	out := geometry.TensorShape{Channels: int(e.outDims[1]), Height: in.Height, Width: in.Width}
	if e.outDims[2] > 0 {
		out.Height = int(e.outDims[2])
	} else {
		e.log.Warn("dynamic output height; assuming 1x vertical scale")
	}
	if e.outDims[3] > 0 {
		out.Width = int(e.outDims[3])
	} else {
		e.log.Warn("dynamic output width; assuming 1x horizontal scale")
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("engine: session options: %w", err)
	}
	defer opts.Destroy()

	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err == nil {
		if err := cudaOpts.Update(map[string]string{
			"device_id": strconv.Itoa(e.opts.DeviceID),
		}); err == nil {
			err = opts.AppendExecutionProviderCUDA(cudaOpts)
		}
		cudaOpts.Destroy()
	}
	if err != nil {
		e.log.Warn("CUDA provider unavailable, using CPU", "err", err)
	}

	inTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(in.Channels), int64(in.Height), int64(in.Width)))
	if err != nil {
		return nil, fmt.Errorf("engine: input tensor: %w", err)
	}
	outTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(out.Channels), int64(out.Height), int64(out.Width)))
	if err != nil {
		inTensor.Destroy()
		return nil, fmt.Errorf("engine: output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(e.opts.ModelPath,
		[]string{e.inName}, []string{e.outName},
		[]ort.Value{inTensor}, []ort.Value{outTensor}, opts)
	if err != nil {
		inTensor.Destroy()
		outTensor.Destroy()
		return nil, fmt.Errorf("engine: session: %w", err)
	}

	return &onnxContext{
		session:   session,
		inTensor:  inTensor,
		outTensor: outTensor,
		in:        in,
		out:       out,
	}, nil
}

func (e *ONNX) Close() error { return nil }

type onnxContext struct {
	session   *ort.AdvancedSession
	inTensor  *ort.Tensor[float32]
	outTensor *ort.Tensor[float32]
	in        geometry.TensorShape
	out       geometry.TensorShape
}

func (c *onnxContext) InputShape() geometry.TensorShape  { return c.in }
func (c *onnxContext) OutputShape() geometry.TensorShape { return c.out }
func (c *onnxContext) SampleSize() int                   { return 4 }

func (c *onnxContext) Execute(input, output []byte) error {
	data := c.inTensor.GetData()
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(input[i*4:]))
	}
	if err := c.session.Run(); err != nil {
		return fmt.Errorf("onnx run: %w", err)
	}
	res := c.outTensor.GetData()
	for i, v := range res {
		binary.LittleEndian.PutUint32(output[i*4:], math.Float32bits(v))
	}
	return nil
}

// CaptureGraph performs a warm-up pass over the bound tensors. ONNX Runtime
// has no user-visible graph capture; the fixed-shape session with bound
// tensors is already the replayable unit, so replay simply re-runs it.
func (c *onnxContext) CaptureGraph(input, output []byte) (Graph, error) {
	if err := c.Execute(input, output); err != nil {
		return nil, fmt.Errorf("capture pass: %w", err)
	}
	return &onnxGraph{ctx: c, input: input, output: output}, nil
}

func (c *onnxContext) Close() error {
	c.session.Destroy()
	c.inTensor.Destroy()
	c.outTensor.Destroy()
	return nil
}

type onnxGraph struct {
	ctx    *onnxContext
	input  []byte
	output []byte
}

func (g *onnxGraph) Replay() error {
	return g.ctx.Execute(g.input, g.output)
}
