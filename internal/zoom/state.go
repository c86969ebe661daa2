package zoom

import (
	"math"

	"github.com/ivlev/vidzoom/internal/timeline"
)

const (
	// TransitionGap is the widest gap between two events that is bridged by
	// a transition instead of dropping back to the unzoomed frame.
	TransitionGap = 0.5
	// CloseNextGap keeps an event zoomed through its last phase when the
	// next event starts within this many seconds of its end.
	CloseNextGap = 0.5

	zoomInEnd    = 0.1
	zoomOutStart = 0.9
	phaseLength  = 0.1
)

// State is what the timeline looks like at one instant. It is one of Idle,
// Single, Transition or Multiple.
type State interface {
	isState()
}

// Idle means no event is active or being transitioned into.
type Idle struct{}

// Single means exactly one event is active.
type Single struct {
	Event    timeline.Event
	Progress float64
}

// Transition means the instant falls in a short gap between two events.
type Transition struct {
	From     timeline.Event
	To       timeline.Event
	Progress float64
}

// Active is an event together with its progress at the instant.
type Active struct {
	Event    timeline.Event
	Progress float64
}

// Multiple means two or more events are active at once, in start order.
type Multiple struct {
	Events []Active
}

func (Idle) isState()       {}
func (Single) isState()     {}
func (Transition) isState() {}
func (Multiple) isState()   {}

// Compute returns the state of the timeline at instant t. It does not modify
// events and gives the same answer for the same input.
func Compute(events []timeline.Event, t float64) State {
	sorted := sortedCopy(events)

	var active []Active
	for _, e := range sorted {
		if e.Contains(t) {
			active = append(active, Active{Event: e, Progress: clampUnit(e.Progress(t))})
		}
	}
	switch len(active) {
	case 0:
	case 1:
		return Single{Event: active[0].Event, Progress: active[0].Progress}
	default:
		return Multiple{Events: active}
	}

	for i := 0; i+1 < len(sorted); i++ {
		cur, next := sorted[i], sorted[i+1]
		end := cur.End()
		gap := next.StartTime - end
		if gap > TransitionGap || t < end || t > next.StartTime {
			continue
		}
		progress := 0.5
		if gap > 0 {
			progress = (t - end) / gap
		}
		return Transition{From: cur, To: next, Progress: progress}
	}
	return Idle{}
}

// Dominant picks the active event whose zoom is rendered: the highest level
// wins, ties go to the later start.
func Dominant(events []Active) Active {
	best := events[0]
	for _, a := range events[1:] {
		if a.Event.Level > best.Event.Level ||
			(a.Event.Level == best.Event.Level && a.Event.StartTime > best.Event.StartTime) {
			best = a
		}
	}
	return best
}

// Curve returns the zoom level of an event at the given progress and the
// local phase progress used for overlay alpha. With holdOut the event stays
// at full zoom through its last phase.
func Curve(e timeline.Event, progress float64, holdOut bool) (level, phase float64) {
	ease := For(e.Animation)
	switch {
	case progress <= zoomInEnd:
		phase = progress / phaseLength
		return 1 + (e.Level-1)*ease(phase), phase
	case progress >= zoomOutStart && !holdOut:
		phase = (1 - progress) / phaseLength
		return 1 + (e.Level-1)*ease(phase), phase
	default:
		return e.Level, 1
	}
}

// Drift returns the tracked region of an event at the given progress: the
// initial region moved along a fixed oscillation and kept inside the frame.
func Drift(tr timeline.Tracking, progress float64) timeline.Region {
	amount := tr.Sensitivity * 0.1
	offset := progress * math.Pi * 2
	dx := math.Sin(offset) * amount
	dy := math.Cos(offset*0.7) * amount * 0.5
	return tr.InitialRegion.Offset(dx, dy)
}

// hasCloseNext reports whether the event following e in start order begins
// within CloseNextGap of e's end.
func hasCloseNext(sorted []timeline.Event, e timeline.Event) bool {
	for i := range sorted {
		if sorted[i].ID != e.ID {
			continue
		}
		if i+1 >= len(sorted) {
			return false
		}
		return sorted[i+1].StartTime-e.End() <= CloseNextGap
	}
	return false
}

func sortedCopy(events []timeline.Event) []timeline.Event {
	out := make([]timeline.Event, len(events))
	copy(out, events)
	timeline.SortByStart(out)
	return out
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
