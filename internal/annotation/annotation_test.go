package annotation

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/threat-augment/internal/dataset"
)

const sample = `img_name,object_type,xmin,ymin,xmax,ymax,difficult
P002.jpg,Gun,10,20,110,90,0
P001.jpg,Knife,5,5,50,40,1
P002.jpg,Knife,0,0,30.0,30.7,0
P001.jpg,Gun,1,2,3,4,0
`

func TestParse(t *testing.T) {
	idx, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	require.Equal(t, 4, idx.Len())
	require.Equal(t, []string{"P001.jpg", "P002.jpg"}, idx.Names())
	require.Equal(t, []string{"Gun", "Knife"}, idx.Categories())

	p2 := idx.Records("P002.jpg")
	require.Len(t, p2, 2)
	require.Equal(t, Record{Row: 0, ImageName: "P002.jpg", Category: "Gun",
		Box: image.Rect(10, 20, 110, 90)}, p2[0])
	require.Equal(t, 2, p2[1].Row)
	require.Equal(t, image.Rect(0, 0, 30, 30), p2[1].Box)

	p1 := idx.Records("P001.jpg")
	require.Equal(t, []int{1, 3}, []int{p1[0].Row, p1[1].Row})
	require.Nil(t, idx.Records("nope.jpg"))
}

func TestParse_ColumnOrderAndWhitespace(t *testing.T) {
	in := "ymax, xmax, ymin, xmin, object_type, img_name\n 90, 110, 20, 10, Gun, a.png\n"
	idx, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, image.Rect(10, 20, 110, 90), idx.Records("a.png")[0].Box)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing column", "img_name,object_type,xmin,ymin,xmax\na.png,Gun,1,2,3\n"},
		{"non-numeric", "img_name,object_type,xmin,ymin,xmax,ymax\na.png,Gun,one,2,3,4\n"},
		{"ragged row", "img_name,object_type,xmin,ymin,xmax,ymax\na.png,Gun,1,2,3\n"},
		{"empty name", "img_name,object_type,xmin,ymin,xmax,ymax\n,Gun,1,2,3,4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in))
			require.Error(t, err)
			require.True(t, errors.Is(err, dataset.ErrParse), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gt.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	idx, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, idx.Len())

	_, err = Load(filepath.Join(dir, "missing.csv"))
	require.True(t, errors.Is(err, dataset.ErrResourceNotFound))
}

func TestNames_ReturnsCopy(t *testing.T) {
	idx, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	names := idx.Names()
	names[0] = "changed"
	require.Equal(t, "P001.jpg", idx.Names()[0])
}

func TestWrite_ParsesBack(t *testing.T) {
	recs := []Record{
		{ImageName: "neg_1.jpg", Category: "Gun", Box: image.Rect(250, 250, 330, 310)},
		{ImageName: "neg_2.jpg", Category: "Gun", Box: image.Rect(0, 0, 5, 6)},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, recs))
	require.True(t, strings.HasPrefix(buf.String(), "img_name,object_type,xmin,ymin,xmax,ymax\n"))

	idx, err := Parse(&buf)
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())
	got := idx.Records("neg_1.jpg")
	require.Len(t, got, 1)
	require.Equal(t, image.Rect(250, 250, 330, 310), got[0].Box)
	require.Equal(t, 1, idx.Records("neg_2.jpg")[0].Row)
}
