package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// BoxBlur averages each pixel over a size×size window.
//
// size is the kernel side length as used by OpenCV (5 means a 5x5 window)
// and is converted to bild's radius.
func BoxBlur(img image.Image, size int) *image.RGBA {
	return blur.Box(img, kernelRadius(size))
}

// MedianBlur replaces each pixel with the median of its size×size
// neighbourhood, removing salt-and-pepper noise while keeping edges.
func MedianBlur(img image.Image, size int) *image.RGBA {
	return effect.Median(img, kernelRadius(size))
}

// GaussianBlur convolves the image with a size×size Gaussian kernel.
func GaussianBlur(img image.Image, size int) *image.RGBA {
	return blur.Gaussian(img, kernelRadius(size))
}

// BilateralFilter smooths flat regions while preserving strong edges.
//
// Parameters:
//   - diameter: Diameter of the pixel neighbourhood. Only pixels inside the
//     inscribed circle contribute.
//   - sigmaColor: Spread of the range kernel. Larger values mix colors that
//     are further apart.
//   - sigmaSpace: Spread of the spatial kernel in pixels.
//
// The color distance between two pixels is the L1 distance of their RGB
// components, matching OpenCV's bilateralFilter for 3-channel input. Alpha
// is copied through unchanged. Border pixels use clamped (replicated) edge
// values.
func BilateralFilter(img image.Image, diameter int, sigmaColor, sigmaSpace float64) *image.NRGBA {
	src := imaging.Clone(img)
	width := src.Rect.Dx()
	height := src.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))

	radius := diameter / 2
	if radius < 1 {
		copy(dst.Pix, src.Pix)
		return dst
	}

	type tap struct {
		dx, dy int
		weight float64
	}
	spaceCoeff := -0.5 / (sigmaSpace * sigmaSpace)
	taps := make([]tap, 0, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			if math.Sqrt(d2) > float64(radius) {
				continue
			}
			taps = append(taps, tap{dx, dy, math.Exp(d2 * spaceCoeff)})
		}
	}

	colorCoeff := -0.5 / (sigmaColor * sigmaColor)
	colorWeight := make([]float64, 3*255+1)
	for i := range colorWeight {
		colorWeight[i] = math.Exp(float64(i*i) * colorCoeff)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			ci := src.PixOffset(x, y)
			r0, g0, b0 := int(src.Pix[ci]), int(src.Pix[ci+1]), int(src.Pix[ci+2])

			var sumR, sumG, sumB, sumW float64
			for _, t := range taps {
				ni := src.PixOffset(clamp(x+t.dx, 0, width-1), clamp(y+t.dy, 0, height-1))
				r, g, b := int(src.Pix[ni]), int(src.Pix[ni+1]), int(src.Pix[ni+2])
				w := t.weight * colorWeight[absInt(r-r0)+absInt(g-g0)+absInt(b-b0)]
				sumR += float64(r) * w
				sumG += float64(g) * w
				sumB += float64(b) * w
				sumW += w
			}

			di := dst.PixOffset(x, y)
			dst.Pix[di] = uint8(math.Round(sumR / sumW))
			dst.Pix[di+1] = uint8(math.Round(sumG / sumW))
			dst.Pix[di+2] = uint8(math.Round(sumB / sumW))
			dst.Pix[di+3] = src.Pix[ci+3]
		}
	}
	return dst
}

func kernelRadius(size int) float64 {
	if size < 1 {
		return 0
	}
	return float64(size / 2)
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
