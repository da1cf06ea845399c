//go:build gocv
// +build gocv

package segment

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// GoCV runs the cascade through OpenCV.
type GoCV struct{}

// NewGoCV returns the OpenCV segmenter.
func NewGoCV() (*GoCV, error) {
	return &GoCV{}, nil
}

// Segment implements Segmenter.
func (GoCV) Segment(chip image.Image, rng Range, negate bool) (*Result, error) {
	if chip.Bounds().Empty() {
		return nil, errors.New("segment: empty chip")
	}

	src, err := gocv.ImageToMatRGB(chip)
	if err != nil {
		return nil, errors.Wrap(err, "segment: convert chip")
	}
	defer src.Close()

	boxed := gocv.NewMat()
	defer boxed.Close()
	gocv.Blur(src, &boxed, image.Pt(blurSize, blurSize))

	median := gocv.NewMat()
	defer median.Close()
	gocv.MedianBlur(boxed, &median, blurSize)

	gauss := gocv.NewMat()
	defer gauss.Close()
	gocv.GaussianBlur(median, &gauss, image.Pt(blurSize, blurSize), 0, 0, gocv.BorderDefault)

	bilateral := gocv.NewMat()
	defer bilateral.Close()
	gocv.BilateralFilter(gauss, &bilateral, bilateralDiam, bilateralSigmaC, bilateralSigmaSp)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bilateral, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(float64(rng.Low.H), float64(rng.Low.S), float64(rng.Low.V), 0),
		gocv.NewScalar(float64(rng.High.H), float64(rng.High.S), float64(rng.High.V), 0),
		&mask)
	if negate {
		gocv.BitwiseNot(mask, &mask)
	}

	img, err := mask.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "segment: convert mask")
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		return nil, errors.Errorf("segment: unexpected mask type %T", img)
	}
	return finish(chip, gray)
}
