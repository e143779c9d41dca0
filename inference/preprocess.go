package inference

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// PrepareInput fills dst with a planar RGB blob for a square network
// input: the image is resized to size×size (Lanczos3, no aspect-ratio
// preservation, matching blobFromImage with crop disabled) and each
// channel is scaled to [0, 1] by 1/255.
//
// Arguments:
//   - img: the source image at its original resolution.
//   - size: the square network input resolution (416 for YOLOv3).
//   - dst: destination buffer; needs at least 3*size*size floats.
//
// Returns:
//   - error: if dst is too small for the requested size.
func PrepareInput(img image.Image, size int, dst []float32) error {
	channelSize := size * size
	if len(dst) < channelSize*3 {
		return errors.Errorf("input buffer holds %d floats, needs %d", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	resized := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)

	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}
