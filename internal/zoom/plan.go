package zoom

import (
	"fmt"

	"github.com/ivlev/vidzoom/internal/timeline"
)

// Kind tags a Plan with the state it came from.
type Kind int

const (
	KindIdle Kind = iota
	KindSingle
	KindTransition
	KindMultiple
)

func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindSingle:
		return "single"
	case KindTransition:
		return "transition"
	case KindMultiple:
		return "multiple"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Indicator is a small zoom-level label for one of several active events.
type Indicator struct {
	Level    float64
	Progress float64
	Dominant bool
}

// Plan holds the rendering instructions for one instant.
type Plan struct {
	Kind  Kind
	State State

	// Level and Region describe the viewport. Both are unset for KindIdle.
	Level  float64
	Region timeline.Region

	// EaseProgress scales overlay alpha.
	EaseProgress float64

	// Overlay is the text to draw; zero when there is none.
	Overlay timeline.TextOverlay

	// Indicators are set for KindMultiple only, in start order.
	Indicators []Indicator
}

// Zoomed reports whether the plan asks for a viewport crop.
func (p Plan) Zoomed() bool {
	return p.Kind != KindIdle
}

// Evaluate computes the state at t and turns it into rendering instructions.
func Evaluate(events []timeline.Event, t float64) Plan {
	return PlanFor(Compute(events, t), events)
}

// PlanFor turns a computed state into rendering instructions. events is the
// full list the state was computed from; it is needed for the close-next check.
func PlanFor(state State, events []timeline.Event) Plan {
	switch s := state.(type) {
	case Idle:
		return Plan{Kind: KindIdle, State: s}

	case Single:
		level, phase := Curve(s.Event, s.Progress, hasCloseNext(sortedCopy(events), s.Event))
		region := s.Event.Region
		if s.Event.Tracking.Enabled {
			region = Drift(s.Event.Tracking, s.Progress)
		}
		p := Plan{Kind: KindSingle, State: s, Level: level, Region: region, EaseProgress: phase}
		if s.Event.TextOverlay.Visible() {
			p.Overlay = s.Event.TextOverlay
		}
		return p

	case Transition:
		k := Smooth(s.Progress)
		return Plan{
			Kind:         KindTransition,
			State:        s,
			Level:        lerp(s.From.Level, s.To.Level, k),
			Region:       s.From.Region.Lerp(s.To.Region, k),
			EaseProgress: 1,
		}

	case Multiple:
		dom := Dominant(s.Events)
		level, phase := Curve(dom.Event, dom.Progress, hasCloseNext(sortedCopy(events), dom.Event))
		p := Plan{Kind: KindMultiple, State: s, Level: level, Region: dom.Event.Region, EaseProgress: phase}
		if dom.Event.TextOverlay.Visible() {
			p.Overlay = dom.Event.TextOverlay
		}
		for _, a := range s.Events {
			p.Indicators = append(p.Indicators, Indicator{
				Level:    a.Event.Level,
				Progress: a.Progress,
				Dominant: a.Event.ID == dom.Event.ID,
			})
		}
		return p

	default:
		panic(fmt.Sprintf("zoom: unknown state %T", state))
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
