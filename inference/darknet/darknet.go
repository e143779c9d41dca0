// Package darknet - OpenCV DNN engine for Darknet (YOLOv3) models.
package darknet

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/grocer-eye/go-detect/inference"
)

// Config locates and shapes a Darknet model.
type Config struct {
	// ConfigPath is the .cfg network topology file.
	ConfigPath string
	// WeightsPath is the trained .weights file.
	WeightsPath string
	// InputSize is the square network input resolution.
	InputSize int
	// Anchors and Classes declare the semantic layout of the output
	// tensors for the decoder.
	Anchors int
	Classes int
}

// Engine runs a Darknet model through OpenCV's DNN module, the same
// backend the network was validated against. It implements
// inference.Engine; Forward is serialized because gocv.Net is not safe
// for concurrent use.
type Engine struct {
	mu          sync.Mutex
	cfg         Config
	net         gocv.Net
	outputNames []string
	closed      bool
}

// NewEngine loads the network topology and weights.
//
// Arguments:
//   - cfg: model location and output layout.
//
// Returns:
//   - *Engine: a ready engine; call Close when done.
//   - error: if either file is missing or the network cannot be parsed.
func NewEngine(cfg Config) (*Engine, error) {
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		return nil, errors.Wrapf(err, "network config not found: %s", cfg.ConfigPath)
	}
	if _, err := os.Stat(cfg.WeightsPath); err != nil {
		return nil, errors.Wrapf(err, "network weights not found: %s", cfg.WeightsPath)
	}

	net := gocv.ReadNetFromDarknet(cfg.ConfigPath, cfg.WeightsPath)
	if net.Empty() {
		return nil, errors.Errorf("failed to load darknet model from %s", cfg.ConfigPath)
	}
	net.SetPreferableBackend(gocv.NetBackendOpenCV)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	layerNames := net.GetLayerNames()
	unconnected := net.GetUnconnectedOutLayers()
	if len(layerNames) == 0 || len(unconnected) == 0 {
		net.Close()
		return nil, errors.New("failed to resolve network output layers")
	}
	// Layer indices are 1-based in the DNN module.
	outputNames := make([]string, 0, len(unconnected))
	for _, idx := range unconnected {
		if idx-1 < 0 || idx-1 >= len(layerNames) {
			net.Close()
			return nil, errors.Errorf("output layer index %d out of range", idx)
		}
		outputNames = append(outputNames, layerNames[idx-1])
	}

	return &Engine{cfg: cfg, net: net, outputNames: outputNames}, nil
}

// Predict implements inference.Engine. Non-4-D outputs are dropped;
// the decoder only interprets (1, channel, row, col) tensors.
func (e *Engine) Predict(ctx context.Context, img image.Image) ([]inference.OutputTensor, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.New("engine is closed")
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "converting image")
	}
	defer mat.Close()

	// The mat is already RGB, so no channel swap here; scale to [0,1]
	// and square-resize to the network input, as the model was trained.
	blob := gocv.BlobFromImage(mat, 1.0/255.0,
		image.Pt(e.cfg.InputSize, e.cfg.InputSize),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	outputs := e.net.ForwardLayers(e.outputNames)
	defer func() {
		for _, out := range outputs {
			out.Close()
		}
	}()

	tensors := make([]inference.OutputTensor, 0, len(outputs))
	for _, out := range outputs {
		size := out.Size()
		if len(size) != 4 || size[0] != 1 {
			continue
		}
		src, err := out.DataPtrFloat32()
		if err != nil {
			return nil, errors.Wrap(err, "reading output tensor")
		}
		// DataPtrFloat32 aliases Mat memory that dies with the Mat.
		data := make([]float32, len(src))
		copy(data, src)

		dense := tensor.New(
			tensor.WithShape(1, size[1], size[2], size[3]),
			tensor.Of(tensor.Float32),
			tensor.WithBacking(data),
		)
		ot, err := inference.FromDense(dense, e.cfg.Anchors, e.cfg.Classes)
		if err != nil {
			return nil, errors.Wrap(err, "wrapping output tensor")
		}
		tensors = append(tensors, ot)
	}
	return tensors, nil
}

// Close implements inference.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.net.Close()
}
