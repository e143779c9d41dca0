// Package postprocess - candidate filtering for detection models.
package postprocess

// Candidate is one scored box emitted by a model decoder, in normalized
// [0,1] top-left image coordinates. Candidates are never mutated after
// creation; suppression works on parallel slices derived from them.
type Candidate struct {
	// X, Y, W, H is the normalized top-left box.
	X, Y, W, H float32
	// Score is objectness × top class score, in [0,1].
	Score float32
	// Class is the predicted class index.
	Class int
}
