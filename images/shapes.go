// Package images - lightweight geometry used by detection postprocessing.
package images

// Rect is a bounding box in pixel coordinates. X2,Y2 are exclusive
// (like image.Rectangle), but stored as float32 so sub-pixel boxes
// produced by the decoder don't lose precision before suppression.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Area returns the area of r. Degenerate (inverted) rects have area 0.
func (r Rect) Area() float32 {
	w := r.X2 - r.X1
	h := r.Y2 - r.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// CalculateIoU computes the Intersection over Union of two rectangles.
//
// IoU = Area(r ∩ o) / Area(r ∪ o), with the union computed by
// inclusion-exclusion: Area(r) + Area(o) - Area(r ∩ o).
//
// Returns:
//   - float32: a value in [0, 1]; 0 when the rectangles do not overlap
//     or when both are degenerate.
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0
	}
	return interArea / unionArea
}
