package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ironsheep/threat-augment/internal/imaging"
)

const (
	// CacheFileName is the calibration cache stored in each category directory.
	CacheFileName = "size_scale"

	// SyntheticDirName holds composites, one subdirectory per category.
	SyntheticDirName = "synthetic"

	// AnnotationsFileName lists the boxes of every composite in a category.
	AnnotationsFileName = "annotations.csv"
)

// CategoryDir returns the chip directory of a category.
func CategoryDir(root, category string) string {
	return filepath.Join(root, category)
}

// CachePath returns the calibration cache path of a category.
func CachePath(root, category string) string {
	return filepath.Join(root, category, CacheFileName)
}

// SyntheticDir returns the composite directory of a category.
func SyntheticDir(root, category string) string {
	return filepath.Join(root, SyntheticDirName, category)
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ChipFileName names the chip cut from the given annotation row.
func ChipFileName(sourceImage string, row int, ext string) string {
	return fmt.Sprintf("%s_%d%s", Stem(sourceImage), row, ext)
}

// ListImages returns the sorted names of the image files directly inside dir.
// Subdirectories and files with non-image extensions are skipped.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrResourceNotFound, "directory %s", dir)
		}
		return nil, errors.Wrapf(err, "read directory %s", dir)
	}

	names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		return e.Name(), !e.IsDir() && imaging.IsImageFile(e.Name())
	})
	sort.Strings(names)
	return names, nil
}

// WriteFileAtomic writes path through a temporary file in the same directory
// and renames it into place, so readers never observe a partial file. The
// parent directory is created when missing.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(ErrIO, "create directory %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(ErrIO, "create temp file for %s: %v", path, err)
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(ErrIO, "write %s: %v", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(ErrIO, "close %s: %v", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(ErrIO, "rename %s: %v", path, err)
	}
	return nil
}
