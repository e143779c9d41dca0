// Package yolov3 - decodes raw YOLOv3 output tensors into scored
// candidate boxes.
package yolov3

const (
	// DefaultInputSize is the fixed square network input resolution.
	DefaultInputSize = 416
	// DefaultAnchors is the number of anchor slots per grid cell.
	DefaultAnchors = 3
	// DefaultConfidenceThreshold drops candidates whose combined
	// objectness × class score falls below it.
	DefaultConfidenceThreshold = 0.4
)

// Params configures the decoder for a particular trained model.
//
// Box width and height scale with the grid stride alone; there are no
// per-anchor width/height priors. Standard YOLOv3 deployments use
// anchor-specific priors, but the grocer-eye model was validated with
// proportional scaling, so the decoder reproduces it exactly.
type Params struct {
	// InputSize is the square network input resolution in pixels.
	InputSize int
	// Anchors is the number of anchor slots per grid cell.
	Anchors int
	// Classes is the number of class scores per anchor, so each tensor
	// is expected to carry Anchors×(5+Classes) channels.
	Classes int
	// ConfidenceThreshold filters candidates before suppression.
	ConfidenceThreshold float32
}

// DefaultParams returns decoder parameters for a model trained with
// numClasses categories.
func DefaultParams(numClasses int) Params {
	return Params{
		InputSize:           DefaultInputSize,
		Anchors:             DefaultAnchors,
		Classes:             numClasses,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}
