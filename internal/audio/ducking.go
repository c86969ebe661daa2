package audio

import (
	"fmt"
	"math"
	"strings"

	"github.com/ivlev/vidzoom/internal/timeline"
)

const (
	// DuckRate is the share of the distance to the ducked volume covered per step.
	DuckRate = 0.1
	// RestoreRate is the share of the distance back to the base volume per step.
	RestoreRate = 0.05
)

// Ducker lowers playback volume while ducking events are active and eases
// it back afterwards. One Step is taken per playback tick.
type Ducker struct {
	base   float64
	volume float64
}

// NewDucker starts at the given base volume.
func NewDucker(base float64) *Ducker {
	base = clampUnit(base)
	return &Ducker{base: base, volume: base}
}

// Base returns the user volume that ducking is relative to.
func (d *Ducker) Base() float64 {
	return d.base
}

// SetBase changes the user volume, clamped to [0,1]. The current volume
// moves towards it on the following steps.
func (d *Ducker) SetBase(v float64) {
	d.base = clampUnit(v)
}

// Volume returns the current volume.
func (d *Ducker) Volume() float64 {
	return d.volume
}

// Step advances the volume for instant t and returns it.
func (d *Ducker) Step(events []timeline.Event, t float64) float64 {
	amount, ducking := Amount(events, t)
	target, rate := d.base, RestoreRate
	if ducking {
		target, rate = d.base*(1-amount), DuckRate
	}
	d.volume = clampUnit(d.volume + (target-d.volume)*rate)
	return d.volume
}

// Amount returns the strongest ducking amount among the ducking events
// active at t.
func Amount(events []timeline.Event, t float64) (float64, bool) {
	amount, found := 0.0, false
	for _, e := range events {
		if e.Ducking.Enabled && e.Contains(t) {
			amount = math.Max(amount, e.Ducking.Amount)
			found = true
		}
	}
	return amount, found
}

// FilterExpr builds an ffmpeg volume filter that ducks the sound track
// inside every ducking event. It returns "" when no event ducks.
//
// The expression is a chain of nested if() calls, one per event, ending
// in the base volume.
func FilterExpr(events []timeline.Event, base float64) string {
	base = clampUnit(base)
	var ducks []timeline.Event
	for _, e := range events {
		if e.Ducking.Enabled && e.Ducking.Amount > 0 {
			ducks = append(ducks, e)
		}
	}
	if len(ducks) == 0 {
		return ""
	}
	timeline.SortByStart(ducks)

	var expr strings.Builder
	for _, e := range ducks {
		fmt.Fprintf(&expr, "if(between(t,%.3f,%.3f),%.4f,", e.StartTime, e.End(), base*(1-e.Ducking.Amount))
	}
	fmt.Fprintf(&expr, "%.4f", base)
	expr.WriteString(strings.Repeat(")", len(ducks)))

	return fmt.Sprintf("volume='%s':eval=frame", expr.String())
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
