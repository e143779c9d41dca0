// Package inference - engine boundary types for raw network outputs.
package inference

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// OutputTensor is one raw detection tensor produced by an inference
// engine: a dense NCHW float32 block (batch 1) together with the
// semantic shape the engine declares for it. Carrying anchors and
// classes explicitly lets the decoder validate the channel layout
// instead of duck-typing on array dimensions; a tensor whose actual
// channel count contradicts its declared layout is skipped by the
// decoder, not treated as an error, since different detection scales
// may legitimately have different shapes.
type OutputTensor struct {
	// Anchors is the declared number of anchor slots per grid cell.
	Anchors int
	// Classes is the declared number of class scores per anchor.
	Classes int
	// Channels is the actual channel count of the raw tensor.
	Channels int
	// GridH, GridW are the spatial grid dimensions.
	GridH, GridW int

	data []float32
}

// NewOutputTensor wraps a raw NCHW float32 block in an OutputTensor.
//
// Arguments:
//   - anchors, classes: the semantic layout the producing engine declares.
//   - channels, gridH, gridW: the actual tensor dimensions (batch omitted).
//   - data: the flat channel-major values; len must be channels*gridH*gridW.
//
// Returns:
//   - OutputTensor: the wrapped tensor.
//   - error: if data does not match the stated dimensions.
func NewOutputTensor(anchors, classes, channels, gridH, gridW int, data []float32) (OutputTensor, error) {
	if channels <= 0 || gridH <= 0 || gridW <= 0 {
		return OutputTensor{}, errors.Errorf("invalid tensor dimensions %dx%dx%d", channels, gridH, gridW)
	}
	if len(data) != channels*gridH*gridW {
		return OutputTensor{}, errors.Errorf(
			"tensor data holds %d floats, dimensions %dx%dx%d need %d",
			len(data), channels, gridH, gridW, channels*gridH*gridW)
	}
	return OutputTensor{
		Anchors:  anchors,
		Classes:  classes,
		Channels: channels,
		GridH:    gridH,
		GridW:    gridW,
		data:     data,
	}, nil
}

// FromDense converts a 4-D dense tensor (1, C, H, W) into an
// OutputTensor with the given declared layout. The backing slice is
// shared, not copied; the caller must not mutate the dense tensor
// afterwards.
func FromDense(d *tensor.Dense, anchors, classes int) (OutputTensor, error) {
	if d.Dtype() != tensor.Float32 {
		return OutputTensor{}, errors.Errorf("output tensor must be float32, got %v", d.Dtype())
	}
	shape := d.Shape()
	if len(shape) != 4 {
		return OutputTensor{}, errors.Errorf("output tensor must be 4-D (batch, channel, row, col), got shape %v", shape)
	}
	if shape[0] != 1 {
		return OutputTensor{}, errors.Errorf("output tensor batch size must be 1, got %d", shape[0])
	}
	data, ok := d.Data().([]float32)
	if !ok {
		return OutputTensor{}, errors.New("output tensor backing is not []float32")
	}
	return NewOutputTensor(anchors, classes, shape[1], shape[2], shape[3], data)
}

// Consistent reports whether the actual channel count matches the
// declared anchors×(5+classes) layout.
func (t *OutputTensor) Consistent() bool {
	return t.Channels == t.Anchors*(5+t.Classes)
}

// At returns the value at channel c, grid row y, grid column x.
func (t *OutputTensor) At(c, y, x int) float32 {
	return t.data[(c*t.GridH+y)*t.GridW+x]
}
