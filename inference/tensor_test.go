package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestNewOutputTensorValidation(t *testing.T) {
	data := make([]float32, 2*3*4)

	ot, err := NewOutputTensor(1, 0, 2, 3, 4, data)
	require.NoError(t, err)
	assert.Equal(t, 2, ot.Channels)
	assert.Equal(t, 3, ot.GridH)
	assert.Equal(t, 4, ot.GridW)

	_, err = NewOutputTensor(1, 0, 2, 3, 4, data[:5])
	assert.Error(t, err, "short backing slice should be rejected")

	_, err = NewOutputTensor(1, 0, 0, 3, 4, nil)
	assert.Error(t, err, "zero channel count should be rejected")
}

func TestFromDense(t *testing.T) {
	backing := make([]float32, 2*2*3)
	for i := range backing {
		backing[i] = float32(i)
	}
	dense := tensor.New(
		tensor.WithShape(1, 2, 2, 3),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(backing),
	)

	ot, err := FromDense(dense, 3, 25)
	require.NoError(t, err)
	assert.Equal(t, 3, ot.Anchors)
	assert.Equal(t, 25, ot.Classes)
	assert.Equal(t, 2, ot.Channels)
	assert.Equal(t, 2, ot.GridH)
	assert.Equal(t, 3, ot.GridW)

	// Channel-major NCHW layout: value(c, y, x) = backing[(c*H+y)*W+x].
	assert.Equal(t, float32(0), ot.At(0, 0, 0))
	assert.Equal(t, float32(5), ot.At(0, 1, 2))
	assert.Equal(t, float32(8), ot.At(1, 0, 2))
	assert.Equal(t, float32(11), ot.At(1, 1, 2))
}

func TestFromDenseRejectsBadShapes(t *testing.T) {
	threeD := tensor.New(tensor.WithShape(2, 3, 4), tensor.Of(tensor.Float32))
	_, err := FromDense(threeD, 3, 25)
	assert.Error(t, err, "non-4D tensor should be rejected")

	batched := tensor.New(tensor.WithShape(2, 3, 4, 4), tensor.Of(tensor.Float32))
	_, err = FromDense(batched, 3, 25)
	assert.Error(t, err, "batch size >1 should be rejected")

	ints := tensor.New(tensor.WithShape(1, 2, 2, 2), tensor.Of(tensor.Int))
	_, err = FromDense(ints, 3, 25)
	assert.Error(t, err, "non-float32 tensor should be rejected")
}

func TestConsistent(t *testing.T) {
	ok, err := NewOutputTensor(3, 25, 90, 1, 1, make([]float32, 90))
	require.NoError(t, err)
	assert.True(t, ok.Consistent())

	mismatched, err := NewOutputTensor(3, 25, 80, 1, 1, make([]float32, 80))
	require.NoError(t, err)
	assert.False(t, mismatched.Consistent())
}
