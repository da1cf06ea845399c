package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestDrawBox(t *testing.T) {
	img := solid(50, 40, color.NRGBA{0, 0, 0, 255})
	box := image.Rect(10, 10, 30, 25)

	out := DrawBox(img, box, "#00FF00", 2)
	green := color.RGBA{0, 255, 0, 255}
	black := color.RGBA{0, 0, 0, 255}

	checks := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"top edge", 15, 10, green},
		{"top edge inner row", 15, 11, green},
		{"left edge", 10, 20, green},
		{"right edge", 29, 20, green},
		{"bottom edge", 20, 24, green},
		{"inside", 20, 17, black},
		{"outside", 5, 5, black},
		{"just past right edge", 30, 20, black},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if got := out.RGBAAt(c.x, c.y); got != c.want {
				t.Errorf("pixel (%d,%d) = %v, want %v", c.x, c.y, got, c.want)
			}
		})
	}

	if img.NRGBAAt(15, 10) != (color.NRGBA{0, 0, 0, 255}) {
		t.Error("DrawBox modified its input")
	}
}

func TestDrawBox_ClipsAndDefaults(t *testing.T) {
	img := solid(20, 20, color.NRGBA{0, 0, 0, 255})

	out := DrawBox(img, image.Rect(10, 10, 40, 40), "not-a-color", 0)
	if got := out.RGBAAt(10, 15); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("left edge = %v, want default red", got)
	}
	// The right and bottom edges fall on the clipped box.
	if got := out.RGBAAt(19, 15); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("clipped right edge = %v, want default red", got)
	}

	out = DrawBox(img, image.Rect(30, 30, 40, 40), DefaultBoxColor, 1)
	for i := range out.Pix {
		if i%4 == 0 && out.Pix[i] != 0 {
			t.Fatal("box outside the image should draw nothing")
		}
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#FF0000", color.NRGBA{255, 0, 0, 255}, false},
		{"00ff00", color.NRGBA{0, 255, 0, 255}, false},
		{"#0000FF80", color.NRGBA{0, 0, 255, 128}, false},
		{"", color.NRGBA{}, true},
		{"#FFF", color.NRGBA{}, true},
		{"#GGGGGG", color.NRGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseHexColor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
