package yolov3

import (
	"github.com/chewxy/math32"

	"github.com/grocer-eye/go-detect/inference"
	"github.com/grocer-eye/go-detect/models/postprocess"
)

// sigmoid is the logistic activation with a clamped input domain, so
// extreme raw values saturate to 0 or 1 instead of overflowing Exp.
func sigmoid(x float32) float32 {
	if x < -500 {
		x = -500
	} else if x > 500 {
		x = 500
	}
	return 1 / (1 + math32.Exp(-x))
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// decodeBox converts the raw activations of one anchor at grid cell
// (ix, iy) into a normalized top-left box.
//
// The center lands inside the cell via sigmoid, width and height grow
// exponentially with the stride, and everything is normalized by the
// network input size. x and y clamp into [0,1] and w,h into [0.01,1]:
// out-of-frame boxes are truncated, not rejected.
func (p Params) decodeBox(ix, iy int, strideX, strideY, tx, ty, tw, th float32) (x, y, w, h float32) {
	in := float32(p.InputSize)
	cx := (float32(ix) + sigmoid(tx)) * strideX
	cy := (float32(iy) + sigmoid(ty)) * strideY
	bw := math32.Exp(tw) * strideX
	bh := math32.Exp(th) * strideY

	x = clamp((cx-bw/2)/in, 0, 1)
	y = clamp((cy-bh/2)/in, 0, 1)
	w = clamp(bw/in, 0.01, 1)
	h = clamp(bh/in, 0.01, 1)
	return x, y, w, h
}

// Decode walks every grid cell and anchor slot of every tensor and
// emits the candidates that clear the confidence threshold.
//
// A tensor is skipped without error when its declared anchors/classes
// layout differs from the decoder's, or when its actual channel count
// contradicts its own declaration: output scales with other shapes are
// simply not this decoder's to interpret. Per anchor, the confidence is
// sigmoid(objectness) × the largest sigmoid class score, with the first
// class winning ties.
//
// Arguments:
//   - tensors: raw output tensors from the inference engine.
//
// Returns:
//   - []postprocess.Candidate: threshold-clearing candidates in tensor
//     iteration order.
func (p Params) Decode(tensors []inference.OutputTensor) []postprocess.Candidate {
	width := 5 + p.Classes
	var candidates []postprocess.Candidate

	for _, t := range tensors {
		// Trust the declaration, not just the raw channel count: the
		// tensor must claim this decoder's layout and its channels must
		// back that claim up.
		if t.Anchors != p.Anchors || t.Classes != p.Classes || !t.Consistent() {
			continue
		}
		strideX := float32(p.InputSize) / float32(t.GridW)
		strideY := float32(p.InputSize) / float32(t.GridH)

		for iy := 0; iy < t.GridH; iy++ {
			for ix := 0; ix < t.GridW; ix++ {
				for anchor := 0; anchor < p.Anchors; anchor++ {
					base := anchor * width

					obj := sigmoid(t.At(base+4, iy, ix))
					class := 0
					best := float32(-1)
					for c := 0; c < p.Classes; c++ {
						score := sigmoid(t.At(base+5+c, iy, ix))
						if score > best {
							best = score
							class = c
						}
					}
					confidence := obj * best
					if confidence < p.ConfidenceThreshold {
						continue
					}

					x, y, w, h := p.decodeBox(ix, iy, strideX, strideY,
						t.At(base+0, iy, ix),
						t.At(base+1, iy, ix),
						t.At(base+2, iy, ix),
						t.At(base+3, iy, ix))
					candidates = append(candidates, postprocess.Candidate{
						X: x, Y: y, W: w, H: h,
						Score: confidence,
						Class: class,
					})
				}
			}
		}
	}
	return candidates
}
