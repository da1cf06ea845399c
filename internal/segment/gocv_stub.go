//go:build !gocv
// +build !gocv

package segment

import (
	"image"

	"github.com/pkg/errors"
)

// GoCV is unavailable without the gocv build tag.
type GoCV struct{}

// NewGoCV returns an error when built without the gocv tag.
func NewGoCV() (*GoCV, error) {
	return nil, errors.New("gocv build tag is not enabled")
}

// Segment always fails without the gocv build tag.
func (GoCV) Segment(image.Image, Range, bool) (*Result, error) {
	return nil, errors.New("gocv build tag is not enabled")
}
