// Package segment separates an object chip into foreground and background
// with a hand-tuned HSV color range.
//
// Before thresholding, the chip is smoothed with a fixed cascade of filters
// to suppress scanner noise: a 5x5 box blur, a 5x5 median blur, a 5x5
// gaussian blur and a bilateral filter (d=9, sigmaColor=75, sigmaSpace=75).
// The smoothed chip is converted to HSV (OpenCV 8-bit scale) and every pixel
// inside the range is marked as foreground.
//
// Two backends implement the same cascade: a pure Go one (the default) and an
// OpenCV one, compiled only with the gocv build tag.
package segment

import (
	"image"

	"github.com/pkg/errors"

	"github.com/ironsheep/threat-augment/internal/imaging"
)

// Backend names accepted by New.
const (
	BackendNative = "native"
	BackendGoCV   = "gocv"
)

// Filter cascade parameters.
const (
	blurSize         = 5
	bilateralDiam    = 9
	bilateralSigmaC  = 75.0
	bilateralSigmaSp = 75.0
)

// Range is an inclusive HSV color range.
type Range struct {
	Low  imaging.HSV `json:"low"`
	High imaging.HSV `json:"high"`
}

// DefaultRange is the range tuned by hand for firearms in X-ray scans.
var DefaultRange = Range{
	Low:  imaging.HSV{H: 55, S: 0, V: 0},
	High: imaging.HSV{H: 118, S: 255, V: 255},
}

// Validate reports a range whose low bound exceeds its high bound on any
// channel, or whose hue exceeds 179.
func (r Range) Validate() error {
	if r.Low.H > r.High.H || r.Low.S > r.High.S || r.Low.V > r.High.V {
		return errors.Errorf("hsv range low %s exceeds high %s", r.Low, r.High)
	}
	if r.High.H > 179 {
		return errors.Errorf("hsv hue %d out of range 0-179", r.High.H)
	}
	return nil
}

// Result is the outcome of segmenting one chip.
type Result struct {
	// Foreground is the original, unsmoothed chip with every pixel outside
	// the mask zeroed. It starts at (0,0).
	Foreground *image.NRGBA
	// Mask is 255 on object pixels and 0 elsewhere, same size as the chip.
	Mask *image.Gray
}

// Segmenter computes the foreground of a chip.
type Segmenter interface {
	// Segment masks the pixels of chip whose smoothed HSV value lies in rng.
	// With negate set the mask is inverted before it is applied.
	Segment(chip image.Image, rng Range, negate bool) (*Result, error)
}

// New returns the segmenter for backend; the empty string selects the
// native backend.
func New(backend string) (Segmenter, error) {
	switch backend {
	case "", BackendNative:
		return NewNative(), nil
	case BackendGoCV:
		s, err := NewGoCV()
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Errorf("unknown segmentation backend %q", backend)
	}
}

// Native is the pure Go segmenter.
type Native struct{}

// NewNative returns the pure Go segmenter.
func NewNative() *Native {
	return &Native{}
}

// Smooth applies the noise-reduction cascade to chip.
func (Native) Smooth(chip image.Image) *image.NRGBA {
	out := imaging.BoxBlur(chip, blurSize)
	out = imaging.MedianBlur(out, blurSize)
	out = imaging.GaussianBlur(out, blurSize)
	return imaging.BilateralFilter(out, bilateralDiam, bilateralSigmaC, bilateralSigmaSp)
}

// Segment implements Segmenter.
func (n Native) Segment(chip image.Image, rng Range, negate bool) (*Result, error) {
	if chip.Bounds().Empty() {
		return nil, errors.New("segment: empty chip")
	}

	mask := imaging.InRangeMask(n.Smooth(chip), rng.Low, rng.High)
	if negate {
		mask = imaging.InvertMask(mask)
	}
	return finish(chip, mask)
}

func finish(chip image.Image, mask *image.Gray) (*Result, error) {
	fg, err := imaging.ApplyMask(chip, mask)
	if err != nil {
		return nil, errors.Wrap(err, "segment")
	}
	return &Result{Foreground: fg, Mask: mask}, nil
}
