package composite

import (
	"image"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/ironsheep/threat-augment/internal/dataset"
)

// Placement names accepted by NewPlacement.
const (
	PlacementFixed    = "fixed"
	PlacementRandom   = "random"
	PlacementCentered = "center"
)

// DefaultOffset is the region-of-interest origin of the fixed placement.
var DefaultOffset = image.Pt(250, 250)

// Placement chooses where a foreground of the given size lands on a
// background. The returned point is relative to the background's top-left
// corner. Implementations return dataset.ErrGeometry when the foreground does
// not fit.
type Placement interface {
	Place(background image.Rectangle, size image.Point, rng *rand.Rand) (image.Point, error)
}

// NewPlacement returns the placement strategy called name. offset is only
// used by the fixed strategy.
func NewPlacement(name string, offset image.Point) (Placement, error) {
	switch name {
	case "", PlacementFixed:
		return FixedOffset{Offset: offset}, nil
	case PlacementRandom:
		return RandomInBounds{}, nil
	case PlacementCentered:
		return Centered{}, nil
	default:
		return nil, errors.Errorf("unknown placement %q", name)
	}
}

// FixedOffset always places the foreground at Offset.
type FixedOffset struct {
	Offset image.Point
}

// Place implements Placement.
func (p FixedOffset) Place(background image.Rectangle, size image.Point, _ *rand.Rand) (image.Point, error) {
	return p.Offset, checkFit(background, p.Offset, size)
}

// RandomInBounds draws a uniformly random origin among those keeping the
// foreground fully inside the background.
type RandomInBounds struct{}

// Place implements Placement.
func (RandomInBounds) Place(background image.Rectangle, size image.Point, rng *rand.Rand) (image.Point, error) {
	slackX := background.Dx() - size.X
	slackY := background.Dy() - size.Y
	if slackX < 0 || slackY < 0 {
		return image.Point{}, checkFit(background, image.Point{}, size)
	}
	at := image.Pt(rng.IntN(slackX+1), rng.IntN(slackY+1))
	return at, checkFit(background, at, size)
}

// Centered aligns the foreground's center with the background's.
type Centered struct{}

// Place implements Placement.
func (Centered) Place(background image.Rectangle, size image.Point, _ *rand.Rand) (image.Point, error) {
	at := image.Pt((background.Dx()-size.X)/2, (background.Dy()-size.Y)/2)
	return at, checkFit(background, at, size)
}

func checkFit(background image.Rectangle, at, size image.Point) error {
	roi := image.Rectangle{Min: at, Max: at.Add(size)}
	canvas := image.Rect(0, 0, background.Dx(), background.Dy())
	if size.X <= 0 || size.Y <= 0 || !roi.In(canvas) {
		return errors.Wrapf(dataset.ErrGeometry,
			"region of interest %v (size %dx%d) does not fit background %dx%d",
			roi.Min, size.X, size.Y, canvas.Dx(), canvas.Dy())
	}
	return nil
}
