// Package composite pastes segmented object chips onto negative backgrounds.
//
// Each composite goes through four steps: a random rescale tied to the
// category's calibration ratio, a random rotation on an expanded canvas,
// segmentation of the rotated chip, and a masked merge into a region of
// interest of the background chosen by a Placement.
package composite

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/threat-augment/internal/dataset"
	imgutil "github.com/ironsheep/threat-augment/internal/imaging"
	"github.com/ironsheep/threat-augment/internal/segment"
)

// Options configures a Compositor.
type Options struct {
	Range     segment.Range
	Negate    bool
	Placement Placement
}

// Result is one composited frame.
type Result struct {
	// Image has the background's size and starts at (0,0).
	Image *image.NRGBA
	// ROI is the region of the background the foreground was merged into.
	ROI image.Rectangle
	// Box is the tight bounding box of the object mask in Image coordinates,
	// or ROI when the mask is empty.
	Box image.Rectangle
	// Scale is the integer rescale factor drawn for the chip.
	Scale int
	// Angle is the counter-clockwise rotation in degrees.
	Angle int
}

// Compositor builds composites. It is not safe for concurrent use because it
// draws from a shared random source.
type Compositor struct {
	logger *zap.SugaredLogger
	seg    segment.Segmenter
	rng    *rand.Rand
	opts   Options
}

// New returns a Compositor. A nil Placement selects FixedOffset at
// DefaultOffset.
func New(logger *zap.SugaredLogger, seg segment.Segmenter, rng *rand.Rand, opts Options) *Compositor {
	if opts.Placement == nil {
		opts.Placement = FixedOffset{Offset: DefaultOffset}
	}
	return &Compositor{logger: logger, seg: seg, rng: rng, opts: opts}
}

// Rescale resizes chip by a random integer factor s in [1, max(ratio)/2]
// (at least 1). The height is multiplied by s and the width by
// s/(ratio.Height/ratio.Width), so over many draws chips land at sizes
// proportionate to the backgrounds. Each side is at least one pixel.
func (c *Compositor) Rescale(chip image.Image, ratio dataset.Ratio) (*image.NRGBA, int) {
	upper := int(ratio.Max() / 2)
	if upper < 1 {
		upper = 1
	}
	scale := 1 + c.rng.IntN(upper)

	b := chip.Bounds()
	width := int(math.Round(float64(b.Dx()) * float64(scale) / ratio.Aspect()))
	height := int(math.Round(float64(b.Dy()) * float64(scale)))
	return imaging.Resize(chip, max(width, 1), max(height, 1), imaging.Lanczos), scale
}

// Rotate turns chip counter-clockwise by a random whole number of degrees in
// [0, 360). The canvas grows to hold the rotated corners, which are filled
// with opaque black.
func (c *Compositor) Rotate(chip image.Image) (*image.NRGBA, int) {
	angle := c.rng.IntN(360)
	return imaging.Rotate(chip, float64(angle), color.Black), angle
}

// Compose rescales, rotates and segments chip, then merges its foreground
// into a copy of background. The background itself is not modified.
//
// Inside the region of interest the result keeps the background where the
// object mask is clear and takes the chip where it is set. The region's
// width is the foreground's width and its height the foreground's height.
//
// Returns an error wrapping dataset.ErrGeometry when the region of interest
// does not fit inside the background.
func (c *Compositor) Compose(chip image.Image, ratio dataset.Ratio, background image.Image) (*Result, error) {
	if !ratio.Valid() {
		return nil, errors.Errorf("invalid calibration ratio %s", ratio)
	}
	if chip.Bounds().Empty() || background.Bounds().Empty() {
		return nil, errors.Wrap(dataset.ErrGeometry, "empty chip or background")
	}

	scaled, scale := c.Rescale(chip, ratio)
	rotated, angle := c.Rotate(scaled)

	seg, err := c.seg.Segment(rotated, c.opts.Range, c.opts.Negate)
	if err != nil {
		return nil, err
	}

	canvas := imaging.Clone(background)
	size := seg.Foreground.Rect.Size()
	at, err := c.opts.Placement.Place(canvas.Rect, size, c.rng)
	if err != nil {
		return nil, errors.WithMessagef(err, "chip %dx%d at scale %d angle %d", size.X, size.Y, scale, angle)
	}

	roi := image.Rectangle{Min: at, Max: at.Add(size)}
	draw.DrawMask(canvas, roi, seg.Foreground, image.Point{}, imgutil.MaskAlpha(seg.Mask), image.Point{}, draw.Src)

	box := imgutil.MaskBounds(seg.Mask)
	if box.Empty() {
		box = roi
	} else {
		box = box.Add(at)
	}

	c.logger.Debugw("composed chip", "scale", scale, "angle", angle, "roi", roi, "box", box,
		"mask_pixels", imgutil.CountMask(seg.Mask), "roi_pixels", size.X*size.Y)
	return &Result{Image: canvas, ROI: roi, Box: box, Scale: scale, Angle: angle}, nil
}
