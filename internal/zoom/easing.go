package zoom

import (
	"math"

	"github.com/ivlev/vidzoom/internal/timeline"
)

// Easing maps local phase progress in [0,1] to an eased factor.
type Easing func(t float64) float64

// For returns the easing function for an animation. Unknown values ease smoothly.
func For(a timeline.Animation) Easing {
	switch a {
	case timeline.AnimationSnap:
		return Snap
	case timeline.AnimationBounce:
		return Bounce
	case timeline.AnimationElastic:
		return Elastic
	case timeline.AnimationSmooth:
		return Smooth
	default:
		return Smooth
	}
}

// Smooth is a quadratic ease-in-out.
func Smooth(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

// Snap jumps to the target halfway through the phase.
func Snap(t float64) float64 {
	if t >= 0.5 {
		return 1
	}
	return 0
}

// Bounce is the four-segment bounce-out curve.
func Bounce(t float64) float64 {
	const n, d = 7.5625, 2.75
	switch {
	case t < 1/d:
		return n * t * t
	case t < 2/d:
		t -= 1.5 / d
		return n*t*t + 0.75
	case t < 2.5/d:
		t -= 2.25 / d
		return n*t*t + 0.9375
	default:
		t -= 2.625 / d
		return n*t*t + 0.984375
	}
}

// Elastic is an exponentially damped sine, in-out. It overshoots both ends
// of the range between the endpoints.
func Elastic(t float64) float64 {
	const c4 = (2 * math.Pi) / 3
	switch {
	case t == 0:
		return 0
	case t == 1:
		return 1
	case t < 0.5:
		return -(math.Pow(2, 20*t-10) * math.Sin((20*t-11.125)*c4)) / 2
	default:
		return (math.Pow(2, -20*t+10)*math.Sin((20*t-11.125)*c4))/2 + 1
	}
}
