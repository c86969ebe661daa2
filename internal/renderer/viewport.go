package renderer

import (
	"errors"
	"fmt"
	"math"

	"github.com/ivlev/vidzoom/internal/timeline"
)

var (
	ErrInvalidViewport     = errors.New("viewport has no area")
	ErrViewportOutOfBounds = errors.New("viewport outside source frame")
	ErrSourceNotReady      = errors.New("source frame not ready")
)

// boundsTolerance absorbs float error when checking the clamped viewport.
const boundsTolerance = 1e-9

// Viewport is a rectangle in source pixel space.
type Viewport struct {
	X, Y, Width, Height float64
}

// ComputeViewport returns the part of a srcW x srcH frame shown at the given
// zoom level, centred on the region centre and clamped to the frame.
// Levels below 1 produce a viewport larger than the frame and are rejected.
func ComputeViewport(region timeline.Region, level float64, srcW, srcH int) (Viewport, error) {
	fw, fh := float64(srcW), float64(srcH)
	if !(level > 0) {
		return Viewport{}, fmt.Errorf("%w: level %v", ErrInvalidViewport, level)
	}
	vw, vh := fw/level, fh/level
	if !(vw > 0) || !(vh > 0) {
		return Viewport{}, fmt.Errorf("%w: %vx%v", ErrInvalidViewport, vw, vh)
	}

	cx, cy := region.Center()
	x := cx*fw - vw/2
	y := cy*fh - vh/2
	x = math.Max(0, math.Min(x, fw-vw))
	y = math.Max(0, math.Min(y, fh-vh))

	if x < 0 || y < 0 || x+vw > fw+boundsTolerance || y+vh > fh+boundsTolerance || math.IsNaN(x) || math.IsNaN(y) {
		return Viewport{}, fmt.Errorf("%w: (%.2f, %.2f) %.2fx%.2f in %dx%d",
			ErrViewportOutOfBounds, x, y, vw, vh, srcW, srcH)
	}
	return Viewport{X: x, Y: y, Width: vw, Height: vh}, nil
}
