package dataset

import (
	"fmt"
	"math"
)

// Ratio is the mean size multiple between negative images and a category's
// chips, per axis.
type Ratio struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Max returns the larger component.
func (r Ratio) Max() float64 {
	return math.Max(r.Width, r.Height)
}

// Aspect returns Height/Width, the factor the compositor divides the width
// scale by.
func (r Ratio) Aspect() float64 {
	return r.Height / r.Width
}

// Valid reports whether both components are finite and positive.
func (r Ratio) Valid() bool {
	for _, v := range []float64{r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return true
}

func (r Ratio) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", r.Width, r.Height)
}

// MinSize is the smallest chip footprint kept by the filter.
type MinSize struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}
