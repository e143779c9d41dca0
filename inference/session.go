// Package inference - ONNX Runtime session engine.
package inference

import (
	"context"
	"image"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// ONNXConfig configures an ONNX Runtime engine for a YOLOv3-style model
// with one output tensor per detection scale.
type ONNXConfig struct {
	// ModelPath is the path to the .onnx model file.
	ModelPath string
	// LibraryPath is the path to the onnxruntime shared library.
	// Empty means DefaultLibraryPath().
	LibraryPath string
	// InputSize is the square network input resolution.
	InputSize int
	// Anchors is the number of anchor slots per grid cell.
	Anchors int
	// Classes is the number of classes per anchor.
	Classes int
	// Grids lists the output grid sizes, one per detection scale
	// (e.g. 13, 26, 52 for a 416 input).
	Grids []int
	// InputName and OutputNames are the model's tensor names.
	InputName   string
	OutputNames []string
}

// ONNXEngine runs a YOLOv3 ONNX model through ONNX Runtime. It
// implements Engine; Predict is serialized with a mutex because the
// session reads and writes fixed input/output tensors.
type ONNXEngine struct {
	mu      sync.Mutex
	cfg     ONNXConfig
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
}

// NewONNXEngine creates the session and its fixed input/output tensors.
//
// Returns:
//   - *ONNXEngine: a ready engine; call Close when done.
//   - error: if the runtime library, the model, or the tensor shapes
//     cannot be set up.
func NewONNXEngine(cfg ONNXConfig) (*ONNXEngine, error) {
	if len(cfg.Grids) == 0 {
		return nil, errors.New("at least one output grid size is required")
	}
	if cfg.InputName == "" {
		return nil, errors.New("model input tensor name is required")
	}
	if len(cfg.OutputNames) != len(cfg.Grids) {
		return nil, errors.Errorf("%d output names for %d grids", len(cfg.OutputNames), len(cfg.Grids))
	}

	if !ort.IsInitialized() {
		libPath := cfg.LibraryPath
		if libPath == "" {
			libPath = DefaultLibraryPath()
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "initializing onnxruntime environment")
		}
	}

	inputShape := ort.NewShape(1, 3, int64(cfg.InputSize), int64(cfg.InputSize))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}

	channels := int64(cfg.Anchors * (5 + cfg.Classes))
	outputs := make([]*ort.Tensor[float32], 0, len(cfg.Grids))
	arbitrary := make([]ort.ArbitraryTensor, 0, len(cfg.Grids))
	destroyAll := func() {
		input.Destroy()
		for _, o := range outputs {
			o.Destroy()
		}
	}
	for _, grid := range cfg.Grids {
		out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, channels, int64(grid), int64(grid)))
		if err != nil {
			destroyAll()
			return nil, errors.Wrapf(err, "creating %dx%d output tensor", grid, grid)
		}
		outputs = append(outputs, out)
		arbitrary = append(arbitrary, out)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		destroyAll()
		return nil, errors.Wrap(err, "creating session options")
	}
	defer options.Destroy()
	options.SetIntraOpNumThreads(runtime.NumCPU())
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		cfg.OutputNames,
		[]ort.ArbitraryTensor{input},
		arbitrary,
		options,
	)
	if err != nil {
		destroyAll()
		return nil, errors.Wrapf(err, "creating session for %s", cfg.ModelPath)
	}

	return &ONNXEngine{
		cfg:     cfg,
		session: session,
		input:   input,
		outputs: outputs,
	}, nil
}

// Predict implements Engine.
func (e *ONNXEngine) Predict(ctx context.Context, img image.Image) ([]OutputTensor, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, errors.New("engine is closed")
	}
	if err := PrepareInput(img, e.cfg.InputSize, e.input.GetData()); err != nil {
		return nil, errors.Wrap(err, "preparing input")
	}
	if err := e.session.Run(); err != nil {
		return nil, errors.Wrap(err, "running inference")
	}

	tensors := make([]OutputTensor, 0, len(e.outputs))
	channels := e.cfg.Anchors * (5 + e.cfg.Classes)
	for i, out := range e.outputs {
		grid := e.cfg.Grids[i]
		// The session reuses its output buffers across runs; copy so the
		// decoded tensors outlive the lock.
		src := out.GetData()
		data := make([]float32, len(src))
		copy(data, src)
		dense := tensor.New(
			tensor.WithShape(1, channels, grid, grid),
			tensor.Of(tensor.Float32),
			tensor.WithBacking(data),
		)
		ot, err := FromDense(dense, e.cfg.Anchors, e.cfg.Classes)
		if err != nil {
			return nil, errors.Wrapf(err, "wrapping %dx%d output", grid, grid)
		}
		tensors = append(tensors, ot)
	}
	return tensors, nil
}

// Close implements Engine.
func (e *ONNXEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.input != nil {
		e.input.Destroy()
		e.input = nil
	}
	for _, o := range e.outputs {
		o.Destroy()
	}
	e.outputs = nil
	return nil
}

// DefaultLibraryPath returns the expected location of the onnxruntime
// shared library for the current platform.
func DefaultLibraryPath() string {
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.dylib"
		}
		return "third_party/onnxruntime_amd64.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}
