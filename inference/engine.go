package inference

import (
	"context"
	"image"
)

// Engine runs a network forward pass over an image and returns the raw
// detection tensors, one per output scale. It owns the network handle;
// construct it explicitly at startup and Close it when done.
//
// Implementations are safe for concurrent use: the underlying runtimes
// (OpenCV DNN nets, single-tensor ONNX sessions) do not support
// concurrent forward passes, so implementations serialize Predict with
// an internal lock. Decoding the returned tensors is pure and needs no
// synchronization.
type Engine interface {
	// Predict resizes/normalizes img to the network input and runs the
	// forward pass. The returned tensors declare their semantic shape;
	// the decoder decides which of them it can interpret.
	Predict(ctx context.Context, img image.Image) ([]OutputTensor, error)
	// Close releases the network handle. The engine must not be used
	// after Close.
	Close() error
}
