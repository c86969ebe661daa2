package timeline

import (
	"math"
	"sort"
)

const (
	// OverlapTolerance lets events that nearly touch count as back-to-back
	// rather than overlapping. Such pairs later render as transitions.
	OverlapTolerance = 0.05
	// PlacementGap separates a newly placed event from its neighbour.
	PlacementGap = 0.1
	// MinDuration is the shortest an event can become through placement or resizing.
	MinDuration = 0.5
)

// Overlaps reports whether a and b overlap by more than OverlapTolerance.
func Overlaps(a, b Event) bool {
	return a.StartTime < b.End()-OverlapTolerance && a.End() > b.StartTime+OverlapTolerance
}

// Place repositions a new event so it does not overlap existing ones.
// It moves the candidate right after the overlapping event that ends last,
// or before the one that starts first, and as a last resort shortens it.
// A single pass is made: landing next to a third event is not re-checked.
func Place(candidate Event, existing []Event, timelineDuration float64) Event {
	var overlapping []Event
	for _, e := range existing {
		if e.ID == candidate.ID {
			continue
		}
		if Overlaps(candidate, e) {
			overlapping = append(overlapping, e)
		}
	}
	if len(overlapping) == 0 {
		return candidate
	}

	last, first := overlapping[0], overlapping[0]
	for _, e := range overlapping[1:] {
		if e.End() > last.End() {
			last = e
		}
		if e.StartTime < first.StartTime {
			first = e
		}
	}

	after := last.End() + PlacementGap
	if after+candidate.Duration <= timelineDuration {
		candidate.StartTime = after
		return candidate
	}

	before := first.StartTime - candidate.Duration - PlacementGap
	if before >= 0 {
		candidate.StartTime = before
		return candidate
	}

	candidate.Duration = math.Max(MinDuration, first.StartTime-candidate.StartTime-PlacementGap)
	return candidate
}

// ResolveEdit moves events[edited] off any event it now overlaps. Only the
// position changes, never the duration. The scan is a single pass over the
// other events in their current order, so chains of three or more events can
// still end up overlapping. The result is a new slice sorted by start time.
func ResolveEdit(edited int, events []Event, timelineDuration float64) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	if edited < 0 || edited >= len(out) {
		SortByStart(out)
		return out
	}

	ev := out[edited]
	for i, other := range out {
		if i == edited {
			continue
		}
		if !Overlaps(ev, other) {
			continue
		}
		if ev.StartTime < other.StartTime {
			start := other.StartTime - ev.Duration - OverlapTolerance
			if start >= 0 {
				ev.StartTime = start
			} else {
				ev.StartTime = other.End() + OverlapTolerance
				if ev.End() > timelineDuration {
					ev.StartTime = timelineDuration - ev.Duration
				}
			}
			continue
		}
		ev.StartTime = other.End() + OverlapTolerance
		if ev.End() > timelineDuration {
			start := other.StartTime - ev.Duration - OverlapTolerance
			if start >= 0 {
				ev.StartTime = start
			} else {
				ev.StartTime = math.Max(0, timelineDuration-ev.Duration)
			}
		}
	}
	out[edited] = ev

	SortByStart(out)
	return out
}

// SortByStart orders events by start time, keeping the relative order of ties.
func SortByStart(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartTime < events[j].StartTime
	})
}

// Connection is a pair of neighbouring events close enough to be chained.
type Connection struct {
	From, To Event
	Gap      float64
}

// DefaultConnectionThreshold is the largest gap shown as a connected pair.
const DefaultConnectionThreshold = 0.1

// Connections lists neighbours (in start order) separated by at most threshold.
func Connections(events []Event, threshold float64) []Connection {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	SortByStart(sorted)

	var out []Connection
	for i := 0; i+1 < len(sorted); i++ {
		gap := sorted[i+1].StartTime - sorted[i].End()
		if gap <= threshold {
			out = append(out, Connection{From: sorted[i], To: sorted[i+1], Gap: gap})
		}
	}
	return out
}
