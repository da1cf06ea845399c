// Package annotation indexes the per-object bounding boxes of a dataset.
//
// The annotation file is a CSV with a header row and one row per object
// instance. The columns img_name, object_type, xmin, ymin, xmax and ymax are
// required, in any order; extra columns are ignored.
package annotation

import (
	"encoding/csv"
	"image"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/ironsheep/threat-augment/internal/dataset"
)

// Column names of the annotation file.
const (
	ColImageName = "img_name"
	ColCategory  = "object_type"
	ColXMin      = "xmin"
	ColYMin      = "ymin"
	ColXMax      = "xmax"
	ColYMax      = "ymax"
)

// Header is the column order used when writing annotation files.
var Header = []string{ColImageName, ColCategory, ColXMin, ColYMin, ColXMax, ColYMax}

// Record is one annotated object instance.
type Record struct {
	// Row is the 0-based data row in the annotation file, header excluded.
	// It names the chip cut from this record.
	Row       int
	ImageName string
	Category  string
	// Box spans (xmin,ymin) inclusive to (xmax,ymax) exclusive.
	Box image.Rectangle
}

// Index maps each source image to its records in file order.
type Index struct {
	byImage map[string][]Record
	names   []string
	total   int
}

// Load reads and indexes the annotation file at path.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(dataset.ErrResourceNotFound, "annotation file %s", path)
		}
		return nil, errors.Wrapf(err, "open annotation file %s", path)
	}
	defer f.Close()

	idx, err := Parse(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "annotation file %s", path)
	}
	return idx, nil
}

// Parse indexes annotation CSV read from r.
func Parse(r io.Reader) (*Index, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(dataset.ErrParse, "empty annotation file")
	}
	if err != nil {
		return nil, errors.Wrapf(dataset.ErrParse, "header: %v", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	if missing := lo.Filter(Header, func(c string, _ int) bool {
		_, ok := cols[c]
		return !ok
	}); len(missing) > 0 {
		return nil, errors.Wrapf(dataset.ErrParse, "missing columns %s", strings.Join(missing, ", "))
	}

	idx := &Index{byImage: make(map[string][]Record)}
	for row := 0; ; row++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(dataset.ErrParse, "row %d: %v", row, err)
		}
		line, _ := reader.FieldPos(0)

		rec, err := parseRecord(fields, cols)
		if err != nil {
			return nil, errors.Wrapf(dataset.ErrParse, "line %d: %v", line, err)
		}
		rec.Row = row
		idx.byImage[rec.ImageName] = append(idx.byImage[rec.ImageName], rec)
		idx.total++
	}

	idx.names = lo.Keys(idx.byImage)
	sort.Strings(idx.names)
	return idx, nil
}

func parseRecord(fields []string, cols map[string]int) (Record, error) {
	rec := Record{
		ImageName: strings.TrimSpace(fields[cols[ColImageName]]),
		Category:  strings.TrimSpace(fields[cols[ColCategory]]),
	}
	if rec.ImageName == "" {
		return rec, errors.Errorf("empty %s", ColImageName)
	}
	if rec.Category == "" {
		return rec, errors.Errorf("empty %s", ColCategory)
	}

	var coords [4]int
	for i, col := range []string{ColXMin, ColYMin, ColXMax, ColYMax} {
		v, err := cast.ToFloat64E(strings.TrimSpace(fields[cols[col]]))
		if err != nil {
			return rec, errors.Errorf("%s: %v", col, err)
		}
		coords[i] = int(v)
	}
	rec.Box = image.Rectangle{
		Min: image.Pt(coords[0], coords[1]),
		Max: image.Pt(coords[2], coords[3]),
	}
	return rec, nil
}

// Names returns the distinct source image names in sorted order.
func (idx *Index) Names() []string {
	return append([]string(nil), idx.names...)
}

// Records returns the records of one source image in file order.
func (idx *Index) Records(name string) []Record {
	return idx.byImage[name]
}

// Len returns the total number of records.
func (idx *Index) Len() int {
	return idx.total
}

// Categories returns the distinct categories in sorted order.
func (idx *Index) Categories() []string {
	seen := make(map[string]struct{})
	for _, recs := range idx.byImage {
		for _, r := range recs {
			seen[r.Category] = struct{}{}
		}
	}
	cats := lo.Keys(seen)
	sort.Strings(cats)
	return cats
}

// Write writes records to w as annotation CSV, header first. Row is not
// written; it is implied by the order of records.
func Write(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.ImageName,
			r.Category,
			strconv.Itoa(r.Box.Min.X),
			strconv.Itoa(r.Box.Min.Y),
			strconv.Itoa(r.Box.Max.X),
			strconv.Itoa(r.Box.Max.Y),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
