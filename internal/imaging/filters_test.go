package imaging

import (
	"image"
	"image/color"
	"testing"
)

func solid(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestBlurs_PreserveSolidColor(t *testing.T) {
	c := color.NRGBA{40, 90, 200, 255}
	img := solid(20, 20, c)

	tests := []struct {
		name string
		fn   func(image.Image, int) *image.RGBA
	}{
		{"box", BoxBlur},
		{"median", MedianBlur},
		{"gaussian", GaussianBlur},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.fn(img, 5)
			if out.Rect.Dx() != 20 || out.Rect.Dy() != 20 {
				t.Fatalf("size changed: %v", out.Rect)
			}
			px := out.RGBAAt(10, 10)
			if absInt(int(px.R)-40) > 1 || absInt(int(px.G)-90) > 1 || absInt(int(px.B)-200) > 1 {
				t.Errorf("center pixel %v, want about %v", px, c)
			}
		})
	}
}

func TestMedianBlur_RemovesSpeck(t *testing.T) {
	img := solid(15, 15, color.NRGBA{0, 0, 0, 255})
	img.SetNRGBA(7, 7, color.NRGBA{255, 255, 255, 255})

	out := MedianBlur(img, 5)
	if px := out.RGBAAt(7, 7); px.R != 0 || px.G != 0 || px.B != 0 {
		t.Errorf("speck survived median: %v", px)
	}
}

func TestBilateralFilter_KeepsStrongEdge(t *testing.T) {
	img := solid(20, 10, color.NRGBA{0, 0, 0, 255})
	for y := 0; y < 10; y++ {
		for x := 10; x < 20; x++ {
			img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}

	out := BilateralFilter(img, 9, 75, 75)
	// Black and white differ by 765 in L1 color distance, so the color
	// kernel gives the other side of the edge a weight of about zero.
	if px := out.NRGBAAt(9, 5); px.R > 2 {
		t.Errorf("dark side of edge bled: %v", px)
	}
	if px := out.NRGBAAt(10, 5); px.R < 253 {
		t.Errorf("bright side of edge bled: %v", px)
	}
}

func TestBilateralFilter_SmoothsNoise(t *testing.T) {
	img := solid(9, 9, color.NRGBA{100, 100, 100, 255})
	img.SetNRGBA(4, 4, color.NRGBA{110, 110, 110, 255})

	out := BilateralFilter(img, 9, 75, 75)
	px := out.NRGBAAt(4, 4)
	if px.R >= 110 || px.R < 100 {
		t.Errorf("noisy pixel not smoothed: %v", px)
	}
	if px.A != 255 {
		t.Errorf("alpha changed: %d", px.A)
	}
}

func TestBilateralFilter_SmallDiameterCopies(t *testing.T) {
	img := quadrantImage(10, 10)
	out := BilateralFilter(img, 1, 75, 75)
	for i := range img.Pix {
		if out.Pix[i] != img.Pix[i] {
			t.Fatalf("diameter 1 should copy the image, differs at byte %d", i)
		}
	}
}
