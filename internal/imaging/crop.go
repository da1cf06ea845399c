package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ClipBox intersects box with the image bounds after translating it into the
// image's coordinate space, where box is expressed relative to the top-left
// pixel. Any part of the box outside the image is cut off: a box reaching
// past an edge keeps only its inside part, so negative coordinates are
// truncated to 0 and the box shrinks accordingly.
func ClipBox(img image.Image, box image.Rectangle) image.Rectangle {
	bounds := img.Bounds()
	return box.Add(bounds.Min).Intersect(bounds)
}

// CropBox extracts the rectangular region box from img.
//
// Boxes reaching past the image bounds are clipped rather than rejected, so
// an annotation drawn slightly outside its image still yields the visible
// part. The result always starts at (0,0).
//
// Returns an error only when nothing of the box lies inside the image.
func CropBox(img image.Image, box image.Rectangle) (*image.NRGBA, error) {
	clipped := ClipBox(img, box)
	if clipped.Empty() {
		bounds := img.Bounds()
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds %dx%d",
			box.Min.X, box.Min.Y, box.Max.X, box.Max.Y, bounds.Dx(), bounds.Dy())
	}
	return imaging.Crop(img, clipped), nil
}
