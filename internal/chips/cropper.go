package chips

import (
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ironsheep/threat-augment/internal/annotation"
	"github.com/ironsheep/threat-augment/internal/dataset"
	"github.com/ironsheep/threat-augment/internal/imaging"
)

// DefaultFormat is the chip extension used when the source format cannot be
// encoded.
const DefaultFormat = ".jpg"

// Chip is a persisted crop of one annotation record.
type Chip struct {
	Category    string
	SourceImage string
	Row         int
	Path        string
	Width       int
	Height      int
}

// CropReport summarises a crop pass.
type CropReport struct {
	Chips []Chip
	// Failures combines every per-item failure; nil when none occurred.
	Failures error
}

// FailureCount returns the number of per-item failures.
func (r *CropReport) FailureCount() int {
	return len(multierr.Errors(r.Failures))
}

// Cropper slices annotated boxes out of source images.
type Cropper struct {
	logger  *zap.SugaredLogger
	quality int
}

// NewCropper returns a Cropper writing JPEG chips at the given quality.
func NewCropper(logger *zap.SugaredLogger, quality int) *Cropper {
	return &Cropper{logger: logger, quality: quality}
}

// CropDataset writes one chip per annotation row found in annotationPath.
//
// Boxes reaching past their image are clipped. A source image that cannot be
// loaded, a box entirely outside its image, or a failed write is logged and
// recorded in the report, and the pass moves on to the next item. Only a
// missing or malformed annotation file aborts the pass.
func (c *Cropper) CropDataset(imageRoot, annotationPath, outputRoot string) (*CropReport, error) {
	idx, err := annotation.Load(annotationPath)
	if err != nil {
		return nil, err
	}

	names := idx.Names()
	c.logger.Infow("cropping objects", "images", len(names), "records", idx.Len())

	report := &CropReport{}
	for _, name := range names {
		src, err := imaging.Load(filepath.Join(imageRoot, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				err = errors.Wrapf(dataset.ErrResourceNotFound, "source image %s", name)
			} else {
				err = errors.Wrapf(err, "source image %s", name)
			}
			c.logger.Warnw("skipping source image", "image", name, "error", err)
			report.Failures = multierr.Append(report.Failures, err)
			continue
		}

		for _, rec := range idx.Records(name) {
			chip, err := c.cropRecord(src, rec, outputRoot)
			if err != nil {
				c.logger.Warnw("skipping record", "image", name, "row", rec.Row, "error", err)
				report.Failures = multierr.Append(report.Failures, err)
				continue
			}
			report.Chips = append(report.Chips, chip)
		}
	}

	c.logger.Infow("cropping done", "chips", len(report.Chips), "failures", report.FailureCount())
	return report, nil
}

func (c *Cropper) cropRecord(src image.Image, rec annotation.Record, outputRoot string) (Chip, error) {
	cropped, err := imaging.CropBox(src, rec.Box)
	if err != nil {
		return Chip{}, errors.Wrapf(dataset.ErrGeometry, "%s row %d: %v", rec.ImageName, rec.Row, err)
	}

	ext := imaging.ExtFor(rec.ImageName, DefaultFormat)
	path := filepath.Join(dataset.CategoryDir(outputRoot, rec.Category), dataset.ChipFileName(rec.ImageName, rec.Row, ext))
	err = dataset.WriteFileAtomic(path, func(w io.Writer) error {
		return imaging.Encode(w, cropped, ext, c.quality)
	})
	if err != nil {
		return Chip{}, errors.WithMessagef(err, "%s row %d", rec.ImageName, rec.Row)
	}

	return Chip{
		Category:    rec.Category,
		SourceImage: rec.ImageName,
		Row:         rec.Row,
		Path:        path,
		Width:       cropped.Rect.Dx(),
		Height:      cropped.Rect.Dy(),
	}, nil
}
