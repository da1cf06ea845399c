package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// HSV is a color in the 8-bit hue/saturation/value encoding used by OpenCV.
//
//   - H: hue, 0-179 (degrees halved so the full circle fits a byte)
//   - S: saturation, 0-255
//   - V: value, 0-255
//
// Color ranges tuned against OpenCV's cvtColor(COLOR_BGR2HSV) output can be
// used unchanged.
type HSV struct {
	H uint8 `json:"h"`
	S uint8 `json:"s"`
	V uint8 `json:"v"`
}

func (c HSV) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.H, c.S, c.V)
}

// InRange reports whether every channel of c lies within [low, high].
func (c HSV) InRange(low, high HSV) bool {
	return c.H >= low.H && c.H <= high.H &&
		c.S >= low.S && c.S <= high.S &&
		c.V >= low.V && c.V <= high.V
}

// ToHSV converts 8-bit RGB components to the OpenCV HSV encoding.
func ToHSV(r, g, b uint8) HSV {
	h, s, v := colorful.Color{
		R: float64(r) / 255.0,
		G: float64(g) / 255.0,
		B: float64(b) / 255.0,
	}.Hsv()

	hue := int(math.Round(h / 2))
	if hue >= 180 {
		hue -= 180
	}
	return HSV{
		H: uint8(hue),
		S: uint8(math.Round(s * 255)),
		V: uint8(math.Round(v * 255)),
	}
}

// InRangeMask builds a binary mask over img: 255 where the pixel's HSV value
// lies within [low, high] on every channel, 0 elsewhere. The mask starts at
// (0,0) and has the same size as img.
func InRangeMask(img image.Image, low, high HSV) *image.Gray {
	src := imaging.Clone(img)
	mask := image.NewGray(src.Rect)

	for y := 0; y < src.Rect.Dy(); y++ {
		for x := 0; x < src.Rect.Dx(); x++ {
			i := src.PixOffset(x, y)
			if ToHSV(src.Pix[i], src.Pix[i+1], src.Pix[i+2]).InRange(low, high) {
				mask.Pix[mask.PixOffset(x, y)] = 255
			}
		}
	}
	return mask
}

// InvertMask returns the complement of mask.
func InvertMask(mask *image.Gray) *image.Gray {
	out := image.NewGray(mask.Rect)
	for i, v := range mask.Pix {
		out.Pix[i] = ^v
	}
	return out
}

// ApplyMask keeps the pixels of img where mask is non-zero and zeroes every
// other pixel, alpha included. img and mask must have the same size.
func ApplyMask(img image.Image, mask *image.Gray) (*image.NRGBA, error) {
	src := imaging.Clone(img)
	if src.Rect.Dx() != mask.Rect.Dx() || src.Rect.Dy() != mask.Rect.Dy() {
		return nil, fmt.Errorf("mask size %dx%d does not match image size %dx%d",
			mask.Rect.Dx(), mask.Rect.Dy(), src.Rect.Dx(), src.Rect.Dy())
	}

	for y := 0; y < src.Rect.Dy(); y++ {
		for x := 0; x < src.Rect.Dx(); x++ {
			if mask.GrayAt(mask.Rect.Min.X+x, mask.Rect.Min.Y+y).Y != 0 {
				continue
			}
			i := src.PixOffset(x, y)
			src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 0, 0, 0, 0
		}
	}
	return src, nil
}

// MaskAlpha converts a binary mask to an alpha mask usable with
// draw.DrawMask.
func MaskAlpha(mask *image.Gray) *image.Alpha {
	out := image.NewAlpha(mask.Rect)
	copy(out.Pix, mask.Pix)
	return out
}

// MaskBounds returns the smallest rectangle containing every non-zero mask
// pixel, or an empty rectangle when the mask is all zero.
func MaskBounds(mask *image.Gray) image.Rectangle {
	var box image.Rectangle
	for y := mask.Rect.Min.Y; y < mask.Rect.Max.Y; y++ {
		for x := mask.Rect.Min.X; x < mask.Rect.Max.X; x++ {
			if mask.GrayAt(x, y).Y == 0 {
				continue
			}
			box = box.Union(image.Rect(x, y, x+1, y+1))
		}
	}
	return box
}

// CountMask returns the number of non-zero mask pixels.
func CountMask(mask *image.Gray) int {
	n := 0
	for _, v := range mask.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// ColorFrequency represents a color and its occurrence frequency in an image.
type ColorFrequency struct {
	Hex        string     `json:"hex"`        // Hex color "#RRGGBB" (quantized)
	Percentage float64    `json:"percentage"` // Percentage of pixels with this color (0-100)
	RGB        color.RGBA `json:"rgb"`        // RGB components (quantized)
	HSV        HSV        `json:"hsv"`        // HSV of the quantized color, OpenCV scale
}

// DominantHSV extracts the count most common colors of img with their HSV
// encoding, to help pick a segmentation range for a category by hand.
//
// Fully transparent pixels are ignored. Colors are quantized by dividing each
// component by 16 and rounding down, so colors within 16 units of each other
// (per component) are grouped together. Results are sorted by frequency in
// descending order; ties are broken by hex value so output is stable.
func DominantHSV(img image.Image, count int) []ColorFrequency {
	bounds := img.Bounds()
	colorCounts := make(map[color.RGBA]int)
	totalPixels := 0

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A == 0 {
				continue
			}
			key := color.RGBA{R: c.R / 16 * 16, G: c.G / 16 * 16, B: c.B / 16 * 16, A: 255}
			colorCounts[key]++
			totalPixels++
		}
	}

	colors := make([]ColorFrequency, 0, len(colorCounts))
	for c, cnt := range colorCounts {
		colors = append(colors, ColorFrequency{
			Hex:        fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B),
			Percentage: float64(cnt) / float64(totalPixels) * 100,
			RGB:        c,
			HSV:        ToHSV(c.R, c.G, c.B),
		})
	}

	sort.Slice(colors, func(i, j int) bool {
		if colors[i].Percentage != colors[j].Percentage {
			return colors[i].Percentage > colors[j].Percentage
		}
		return colors[i].Hex < colors[j].Hex
	})

	if count >= 0 && len(colors) > count {
		colors = colors[:count]
	}
	return colors
}
