// Package calibrate computes and memoizes the mean size ratio between
// negative backgrounds and a category's chips.
//
// The ratio is cached in <base_dir>/<category>/size_scale as two floats, one
// per line, in the same layout numpy.savetxt produces. An existing cache is
// trusted as-is even if the chips changed since it was written; set Force to
// recompute.
package calibrate

import (
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/threat-augment/internal/dataset"
	"github.com/ironsheep/threat-augment/internal/imaging"
)

// Calibrator computes per-category calibration ratios.
type Calibrator struct {
	logger *zap.SugaredLogger
	rng    *rand.Rand

	// Force ignores an existing cache and overwrites it.
	Force bool

	// mu serialises the cache read-then-write of concurrent callers.
	mu sync.Mutex
}

// New returns a Calibrator drawing negatives from rng.
func New(logger *zap.SugaredLogger, rng *rand.Rand) *Calibrator {
	return &Calibrator{logger: logger, rng: rng}
}

// Ratio returns the calibration ratio of category, reading the cache when
// present and computing then persisting it otherwise.
//
// For every chip one negative is drawn uniformly at random and the per-axis
// ratio negative/chip accumulated; the result is the mean over chips.
//
// # Errors
//
//   - dataset.ErrEmptyCategory when the category holds no chips
//   - dataset.ErrResourceNotFound when the category or negatives directory is
//     missing, or the negatives directory holds no images
//   - dataset.ErrParse when the cache exists but is malformed
//   - dataset.ErrIO when the cache cannot be written
func (c *Calibrator) Ratio(baseDir, category, negativesDir string) (dataset.Ratio, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cachePath := dataset.CachePath(baseDir, category)
	if !c.Force {
		ratio, err := ReadCache(cachePath)
		if err == nil {
			c.logger.Debugw("using cached calibration", "category", category, "ratio", ratio)
			return ratio, nil
		}
		if !errors.Is(err, dataset.ErrResourceNotFound) {
			return dataset.Ratio{}, err
		}
	}

	ratio, err := c.compute(dataset.CategoryDir(baseDir, category), negativesDir)
	if err != nil {
		return dataset.Ratio{}, errors.WithMessagef(err, "calibrate %s", category)
	}
	if err := WriteCache(cachePath, ratio); err != nil {
		return dataset.Ratio{}, err
	}

	c.logger.Infow("calibrated size ratio", "category", category, "ratio", ratio)
	return ratio, nil
}

func (c *Calibrator) compute(chipDir, negativesDir string) (dataset.Ratio, error) {
	chips, err := dataset.ListImages(chipDir)
	if err != nil {
		return dataset.Ratio{}, err
	}
	if len(chips) == 0 {
		return dataset.Ratio{}, errors.Wrapf(dataset.ErrEmptyCategory, "directory %s", chipDir)
	}

	negatives, err := dataset.ListImages(negativesDir)
	if err != nil {
		return dataset.Ratio{}, err
	}
	if len(negatives) == 0 {
		return dataset.Ratio{}, errors.Wrapf(dataset.ErrResourceNotFound, "no negative images in %s", negativesDir)
	}

	sum := make([]float64, 2)
	for _, chip := range chips {
		negPath := filepath.Join(negativesDir, negatives[c.rng.IntN(len(negatives))])
		nw, nh, err := imaging.Dimensions(negPath)
		if err != nil {
			return dataset.Ratio{}, errors.Wrapf(err, "negative %s", negPath)
		}

		chipPath := filepath.Join(chipDir, chip)
		cw, ch, err := imaging.Dimensions(chipPath)
		if err != nil {
			return dataset.Ratio{}, errors.Wrapf(err, "chip %s", chipPath)
		}
		if cw == 0 || ch == 0 {
			return dataset.Ratio{}, errors.Wrapf(dataset.ErrGeometry, "chip %s has zero size", chipPath)
		}

		floats.Add(sum, []float64{float64(nw) / float64(cw), float64(nh) / float64(ch)})
	}
	floats.Scale(1/float64(len(chips)), sum)

	return dataset.Ratio{Width: sum[0], Height: sum[1]}, nil
}

// ReadCache parses a calibration cache file. A missing file yields
// dataset.ErrResourceNotFound.
func ReadCache(path string) (dataset.Ratio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return dataset.Ratio{}, errors.Wrapf(dataset.ErrResourceNotFound, "calibration cache %s", path)
		}
		return dataset.Ratio{}, errors.Wrapf(dataset.ErrIO, "read %s: %v", path, err)
	}

	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return dataset.Ratio{}, errors.Wrapf(dataset.ErrParse, "calibration cache %s: want 2 values, got %d", path, len(fields))
	}
	var v [2]float64
	for i, f := range fields {
		v[i], err = strconv.ParseFloat(f, 64)
		if err != nil {
			return dataset.Ratio{}, errors.Wrapf(dataset.ErrParse, "calibration cache %s: %v", path, err)
		}
	}
	return dataset.Ratio{Width: v[0], Height: v[1]}, nil
}

// WriteCache persists ratio atomically.
func WriteCache(path string, ratio dataset.Ratio) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%.18e\n%.18e\n", ratio.Width, ratio.Height)
	return dataset.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(buf.Bytes())
		return err
	})
}
