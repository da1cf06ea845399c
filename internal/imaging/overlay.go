package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
)

// DefaultBoxColor is the outline color used for preview boxes.
const DefaultBoxColor = "#FF0000"

// DrawBox returns a copy of img with the outline of box drawn on top.
//
// The outline is thickness pixels wide and drawn inside box. Parts of the box
// outside the image are ignored. An unparsable colorHex falls back to
// DefaultBoxColor.
func DrawBox(img image.Image, box image.Rectangle, colorHex string, thickness int) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	boxColor, err := parseHexColor(colorHex)
	if err != nil {
		boxColor, _ = parseHexColor(DefaultBoxColor)
	}
	if thickness < 1 {
		thickness = 1
	}

	box = box.Intersect(bounds)
	if box.Empty() {
		return result
	}

	fill := image.NewUniform(boxColor)
	edges := []image.Rectangle{
		image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+thickness), // top
		image.Rect(box.Min.X, box.Max.Y-thickness, box.Max.X, box.Max.Y), // bottom
		image.Rect(box.Min.X, box.Min.Y, box.Min.X+thickness, box.Max.Y), // left
		image.Rect(box.Max.X-thickness, box.Min.Y, box.Max.X, box.Max.Y), // right
	}
	for _, e := range edges {
		draw.Draw(result, e.Intersect(box), fill, image.Point{}, draw.Over)
	}
	return result
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.NRGBA, error) {
	if len(hex) == 0 {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}
