package postprocess

import (
	"sort"

	"github.com/grocer-eye/go-detect/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// ScoreThreshold drops boxes at or below it before suppression
	// starts; only strictly higher scores compete.
	ScoreThreshold float32
	// IoUThreshold is the overlap above which a lower-scored box is
	// suppressed by a retained one.
	IoUThreshold float32
}

// NMS performs greedy Non-Maximum Suppression over parallel boxes and
// scores slices and returns the indices of the retained boxes, highest
// score first. Ties are broken by insertion order, so identical inputs
// always produce identical output.
//
// Suppression is class-agnostic: every box competes with every other
// box regardless of its predicted class. Boxes should be in pixel
// coordinates of the original image so that overlap is judged at the
// image's true aspect ratio.
//
// Arguments:
//   - boxes: candidate boxes; parallel to scores.
//   - scores: candidate confidence scores.
//   - config: score and IoU thresholds.
//
// Returns:
//   - []int: retained indices into boxes, in descending score order.
func NMS(boxes []images.Rect, scores []float32, config NMSConfig) []int {
	order := make([]int, 0, len(boxes))
	for i, s := range scores {
		if s <= config.ScoreThreshold {
			continue
		}
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	keep := make([]int, 0, len(order))
	suppressed := make([]bool, len(boxes))
	for pos, i := range order {
		if suppressed[i] {
			continue
		}
		keep = append(keep, i)
		for _, j := range order[pos+1:] {
			if suppressed[j] {
				continue
			}
			if images.CalculateIoU(boxes[i], boxes[j]) > config.IoUThreshold {
				suppressed[j] = true
			}
		}
	}
	return keep
}
