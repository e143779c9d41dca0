package detector

import (
	"context"
	"image"
	"testing"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocer-eye/go-detect/classes"
	"github.com/grocer-eye/go-detect/inference"
	"github.com/grocer-eye/go-detect/models/postprocess"
	"github.com/grocer-eye/go-detect/models/yolov3"
)

// stubEngine hands back canned tensors without running a network.
type stubEngine struct {
	tensors []inference.OutputTensor
	err     error
}

func (s *stubEngine) Predict(ctx context.Context, img image.Image) ([]inference.OutputTensor, error) {
	return s.tensors, s.err
}

func (s *stubEngine) Close() error { return nil }

var testNMS = postprocess.NMSConfig{ScoreThreshold: 0.4, IoUThreshold: 0.4}

func logit(p float32) float32 {
	return math32.Log(p / (1 - p))
}

func makeTensor(t *testing.T, anchors, numClasses, gridH, gridW int, fill func(set func(c, y, x int, v float32))) inference.OutputTensor {
	t.Helper()
	channels := anchors * (5 + numClasses)
	data := make([]float32, channels*gridH*gridW)
	if fill != nil {
		fill(func(c, y, x int, v float32) {
			data[(c*gridH+y)*gridW+x] = v
		})
	}
	ot, err := inference.NewOutputTensor(anchors, numClasses, channels, gridH, gridW, data)
	require.NoError(t, err)
	return ot
}

func TestDetectEmptyTensorSet(t *testing.T) {
	d := New(&stubEngine{}, yolov3.DefaultParams(25), testNMS, classes.Fallback)

	items, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 480)))
	require.NoError(t, err)
	assert.NotNil(t, items, "empty result must encode as [], not null")
	assert.Empty(t, items)
}

func TestDetectMismatchedTensorIgnored(t *testing.T) {
	// A single tensor whose channel count doesn't fit 3x(5+25) is
	// skipped entirely, leaving zero detections.
	data := make([]float32, 40*2*2)
	for i := range data {
		data[i] = 200
	}
	ot, err := inference.NewOutputTensor(3, 25, 40, 2, 2, data)
	require.NoError(t, err)

	d := New(&stubEngine{tensors: []inference.OutputTensor{ot}}, yolov3.DefaultParams(25), testNMS, classes.Fallback)
	items, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 480)))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDetectSingleSyntheticDetection(t *testing.T) {
	ot := makeTensor(t, 3, 25, 1, 1, func(set func(c, y, x int, v float32)) {
		set(4, 0, 0, logit(0.9))
		set(5, 0, 0, 500)
	})

	d := New(&stubEngine{tensors: []inference.OutputTensor{ot}}, yolov3.DefaultParams(25), testNMS, classes.Fallback)
	items, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 480)))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, classes.Fallback[0], items[0].Label)
	assert.Equal(t, BBox{X: 0, Y: 0, Width: 1, Height: 1}, items[0].BBox)
}

func TestDetectOutOfRangeClassLabel(t *testing.T) {
	// A model predicting class 99 against the 25-entry table falls back
	// to a synthetic label instead of failing.
	params := yolov3.DefaultParams(100)
	params.Anchors = 1
	ot := makeTensor(t, 1, 100, 1, 1, func(set func(c, y, x int, v float32)) {
		set(4, 0, 0, 500)
		set(5+99, 0, 0, 500)
	})

	d := New(&stubEngine{tensors: []inference.OutputTensor{ot}}, params, testNMS, classes.Fallback)
	items, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 480)))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "class_99", items[0].Label)
}

func TestDetectClassAgnosticSuppression(t *testing.T) {
	// Two anchors in the same cell predict the same geometry for
	// different classes. Suppression does not segregate by class, so
	// only the stronger candidate survives.
	ot := makeTensor(t, 3, 25, 1, 1, func(set func(c, y, x int, v float32)) {
		set(4, 0, 0, logit(0.9))
		set(5+2, 0, 0, 500) // anchor 0: class 2 at 0.9
		base := 30
		set(base+4, 0, 0, logit(0.8))
		set(base+5+11, 0, 0, 500) // anchor 1: class 11 at 0.8, same box
	})

	d := New(&stubEngine{tensors: []inference.OutputTensor{ot}}, yolov3.DefaultParams(25), testNMS, classes.Fallback)
	items, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 480)))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, classes.Fallback[2], items[0].Label)
}

func TestDecodeRoundsToFourDecimals(t *testing.T) {
	// Cell (4, 6) on a 13x13 grid with zero activations decodes to
	// x = 128/416 = 0.30769..., which must surface as 0.3077.
	ot := makeTensor(t, 3, 25, 13, 13, func(set func(c, y, x int, v float32)) {
		set(4, 6, 4, 500)
		set(5, 6, 4, 500)
	})

	d := New(&stubEngine{}, yolov3.DefaultParams(25), testNMS, classes.Fallback)
	items := d.Decode([]inference.OutputTensor{ot}, 640, 480)
	require.Len(t, items, 1)
	assert.Equal(t, float32(0.3077), items[0].BBox.X)
	assert.Equal(t, float32(0.4615), items[0].BBox.Y)
	assert.Equal(t, float32(0.0769), items[0].BBox.Width)
	assert.Equal(t, float32(0.0769), items[0].BBox.Height)
}

func TestDetectEngineErrorPropagates(t *testing.T) {
	d := New(&stubEngine{err: errors.New("forward pass failed")}, yolov3.DefaultParams(25), testNMS, classes.Fallback)
	_, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 480)))
	assert.Error(t, err)
}
