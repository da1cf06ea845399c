package dataset

import "github.com/pkg/errors"

var (
	// ErrResourceNotFound reports a missing annotation file, source image,
	// chip directory or negatives directory.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrParse reports a malformed annotation file or calibration cache.
	ErrParse = errors.New("parse error")

	// ErrEmptyCategory reports a calibration attempted on zero chips.
	ErrEmptyCategory = errors.New("no chips to calibrate")

	// ErrGeometry reports a crop or region of interest that does not fit
	// inside its image.
	ErrGeometry = errors.New("geometry error")

	// ErrIO reports a failure persisting a chip, composite or cache file.
	ErrIO = errors.New("io error")
)
