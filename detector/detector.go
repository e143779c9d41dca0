// Package detector - the detection pipeline: raw tensors in, labeled
// detections out.
package detector

import (
	"context"
	"image"
	"math"

	"github.com/grocer-eye/go-detect/classes"
	"github.com/grocer-eye/go-detect/images"
	"github.com/grocer-eye/go-detect/inference"
	"github.com/grocer-eye/go-detect/models/postprocess"
	"github.com/grocer-eye/go-detect/models/yolov3"
)

// BBox is a normalized [0,1] top-left bounding box, rounded to four
// decimals for a stable, compact external representation.
type BBox struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// Detection is one labeled box, the externally visible result entity.
type Detection struct {
	Label string `json:"label"`
	BBox  BBox   `json:"bbox"`
}

// Detector runs the full pipeline: forward pass through an injected
// engine, candidate extraction, greedy NMS, label mapping. The decode
// stages are pure; a single Detector can serve concurrent requests
// (the engine serializes its own forward pass).
type Detector struct {
	engine inference.Engine
	params yolov3.Params
	nms    postprocess.NMSConfig
	table  []string
}

// New assembles a detector around an engine and a class table.
func New(engine inference.Engine, params yolov3.Params, nms postprocess.NMSConfig, table []string) *Detector {
	return &Detector{
		engine: engine,
		params: params,
		nms:    nms,
		table:  table,
	}
}

// Detect runs inference on img and decodes the result.
//
// Arguments:
//   - ctx: cancels the forward pass between requests.
//   - img: the image at its original resolution.
//
// Returns:
//   - []Detection: labeled boxes surviving suppression; empty, never
//     nil, when nothing clears the confidence threshold.
//   - error: engine failures only; decoding itself cannot fail.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	tensors, err := d.engine.Predict(ctx, img)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	return d.Decode(tensors, bounds.Dx(), bounds.Dy()), nil
}

// Decode is the pure half of the pipeline: extract candidates, suppress
// overlaps, map labels. imgW and imgH are the original image
// dimensions; suppression happens in that pixel space so overlap is
// judged at the image's true aspect ratio, not the square network
// input's.
func (d *Detector) Decode(tensors []inference.OutputTensor, imgW, imgH int) []Detection {
	candidates := d.params.Decode(tensors)
	if len(candidates) == 0 {
		return []Detection{}
	}

	w := float32(imgW)
	h := float32(imgH)
	boxes := make([]images.Rect, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		boxes[i] = images.Rect{
			X1: c.X * w,
			Y1: c.Y * h,
			X2: (c.X + c.W) * w,
			Y2: (c.Y + c.H) * h,
		}
		scores[i] = c.Score
	}

	keep := postprocess.NMS(boxes, scores, d.nms)
	detections := make([]Detection, 0, len(keep))
	for _, i := range keep {
		c := candidates[i]
		detections = append(detections, Detection{
			Label: classes.Label(d.table, c.Class),
			BBox: BBox{
				X:      round4(c.X),
				Y:      round4(c.Y),
				Width:  round4(c.W),
				Height: round4(c.H),
			},
		})
	}
	return detections
}

// round4 rounds to four decimal digits. Applied after suppression, so
// rounding never changes which boxes survive or their order.
func round4(v float32) float32 {
	return float32(math.Round(float64(v)*10000) / 10000)
}
