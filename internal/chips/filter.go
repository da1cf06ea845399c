package chips

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ironsheep/threat-augment/internal/dataset"
	"github.com/ironsheep/threat-augment/internal/imaging"
)

// FilterReport summarises a filter pass.
type FilterReport struct {
	Kept    []string
	Removed []string
	// Failures combines chips that could not be read or deleted.
	Failures error
}

// Filter deletes chips too small to be useful for compositing.
type Filter struct {
	logger *zap.SugaredLogger
}

// NewFilter returns a Filter.
func NewFilter(logger *zap.SugaredLogger) *Filter {
	return &Filter{logger: logger}
}

// RemoveUndersized deletes every chip in baseDir/category whose height is
// below min.Height or whose width is below min.Width. Deletion is permanent.
// Files without an image extension are left alone. Running it again on the
// same directory removes nothing further.
func (f *Filter) RemoveUndersized(baseDir, category string, min dataset.MinSize) (*FilterReport, error) {
	dir := dataset.CategoryDir(baseDir, category)
	names, err := dataset.ListImages(dir)
	if err != nil {
		return nil, errors.WithMessagef(err, "category %s", category)
	}

	report := &FilterReport{}
	for _, name := range names {
		path := filepath.Join(dir, name)
		width, height, err := imaging.Dimensions(path)
		if err != nil {
			f.logger.Warnw("cannot read chip", "chip", path, "error", err)
			report.Failures = multierr.Append(report.Failures, errors.Wrapf(err, "chip %s", path))
			continue
		}

		if height >= min.Height && width >= min.Width {
			report.Kept = append(report.Kept, name)
			continue
		}

		if err := os.Remove(path); err != nil {
			f.logger.Warnw("cannot remove chip", "chip", path, "error", err)
			report.Failures = multierr.Append(report.Failures, errors.Wrapf(dataset.ErrIO, "remove %s: %v", path, err))
			continue
		}
		f.logger.Debugw("removed undersized chip", "chip", name, "width", width, "height", height)
		report.Removed = append(report.Removed, name)
	}

	f.logger.Infow("filtered chips", "category", category,
		"kept", len(report.Kept), "removed", len(report.Removed),
		"min_height", min.Height, "min_width", min.Width)
	return report, nil
}
