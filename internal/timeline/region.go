package timeline

import (
	"fmt"
	"math"
)

// Region is a rectangle normalized to the frame: 0..1 on both axes.
type Region struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// FullFrame covers the whole frame.
var FullFrame = Region{X: 0, Y: 0, Width: 1, Height: 1}

// Validate checks that the region lies in normalized space and has a size.
// The region is allowed to stick out past the right or bottom edge.
func (r Region) Validate() error {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value in %+v", ErrInvalidRegion, r)
		}
	}
	if r.X < 0 || r.X > 1 || r.Y < 0 || r.Y > 1 {
		return fmt.Errorf("%w: origin (%.3f, %.3f) outside [0,1]", ErrInvalidRegion, r.X, r.Y)
	}
	if r.Width <= 0 || r.Width > 1 || r.Height <= 0 || r.Height > 1 {
		return fmt.Errorf("%w: size %.3fx%.3f outside (0,1]", ErrInvalidRegion, r.Width, r.Height)
	}
	return nil
}

// Center returns the region centre in normalized coordinates.
func (r Region) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns width*height.
func (r Region) Area() float64 {
	return r.Width * r.Height
}

// Lerp interpolates every field linearly towards to.
func (r Region) Lerp(to Region, t float64) Region {
	return Region{
		X:      lerp(r.X, to.X, t),
		Y:      lerp(r.Y, to.Y, t),
		Width:  lerp(r.Width, to.Width, t),
		Height: lerp(r.Height, to.Height, t),
	}
}

// Offset shifts the region and clamps it so it stays fully inside the frame.
func (r Region) Offset(dx, dy float64) Region {
	return Region{
		X:      clamp(r.X+dx, 0, 1-r.Width),
		Y:      clamp(r.Y+dy, 0, 1-r.Height),
		Width:  r.Width,
		Height: r.Height,
	}
}

// Recenter moves the region so its centre lands on (cx, cy), keeping its size.
func (r Region) Recenter(cx, cy float64) Region {
	cx = clamp(cx, 0, 1)
	cy = clamp(cy, 0, 1)
	return Region{
		X:      clamp(cx-r.Width/2, 0, 1-r.Width),
		Y:      clamp(cy-r.Height/2, 0, 1-r.Height),
		Width:  r.Width,
		Height: r.Height,
	}
}

// AutoLevel picks a zoom level from the region area: smaller targets get a
// stronger zoom.
func AutoLevel(r Region) float64 {
	area := r.Area()
	switch {
	case area < 0.01:
		return 5.0
	case area < 0.05:
		return 4.0
	case area < 0.15:
		return 3.0
	case area < 0.3:
		return 2.0
	default:
		return 1.5
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// clamp follows max(lo, min(v, hi)): when hi < lo the lower bound wins.
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
