package timeline

import (
	"errors"
	"fmt"
	"math"
)

// DragMode says what an interactive drag does to the grabbed event.
type DragMode int

const (
	DragMove DragMode = iota
	DragResizeStart
	DragResizeEnd
)

func (m DragMode) String() string {
	switch m {
	case DragMove:
		return "move"
	case DragResizeStart:
		return "resize-start"
	case DragResizeEnd:
		return "resize-end"
	default:
		return fmt.Sprintf("DragMode(%d)", int(m))
	}
}

var ErrDragEnded = errors.New("drag already ended")

// Drag is an in-progress move or resize. Every update is computed from the
// snapshot taken when the drag began, so the deltas never accumulate error.
type Drag struct {
	store  *Store
	mode   DragMode
	origin Event
	done   bool
}

// BeginDrag grabs the event with the given id.
func (s *Store) BeginDrag(id string, mode DragMode) (*Drag, error) {
	e, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return &Drag{store: s, mode: mode, origin: e}, nil
}

// Mode returns the drag mode.
func (d *Drag) Mode() DragMode {
	return d.mode
}

// Origin returns the event as it was when the drag began.
func (d *Drag) Origin() Event {
	return d.origin
}

// Update applies a time delta (seconds, relative to the drag start) and
// returns the event after overlap resolution.
func (d *Drag) Update(delta float64) (Event, error) {
	if d.done {
		return Event{}, ErrDragEnded
	}
	start, duration := d.bounds(delta)
	return d.store.Edit(d.origin.ID, Patch{StartTime: &start, Duration: &duration})
}

// Cancel restores the pre-drag timing and ends the drag.
func (d *Drag) Cancel() (Event, error) {
	if d.done {
		return Event{}, ErrDragEnded
	}
	d.done = true
	start, duration := d.origin.StartTime, d.origin.Duration
	return d.store.Edit(d.origin.ID, Patch{StartTime: &start, Duration: &duration})
}

// End finishes the drag. Further updates fail.
func (d *Drag) End() {
	d.done = true
}

func (d *Drag) bounds(delta float64) (float64, float64) {
	total := d.store.Duration()
	o := d.origin
	switch d.mode {
	case DragResizeStart:
		start := math.Max(0, math.Min(o.StartTime+delta, o.End()-MinDuration))
		return start, math.Max(MinDuration, o.End()-start)
	case DragResizeEnd:
		duration := math.Max(MinDuration, math.Min(o.Duration+delta, total-o.StartTime))
		return o.StartTime, duration
	default:
		start := math.Max(0, math.Min(o.StartTime+delta, total-o.Duration))
		return start, o.Duration
	}
}

// HitTest finds the event under instant t. Within handle seconds of an
// event's start or end the grab resizes, elsewhere inside it moves.
// Handles win over bodies, and earlier events win over later ones.
func HitTest(events []Event, t, handle float64) (string, DragMode, bool) {
	half := handle / 2
	for _, e := range events {
		if math.Abs(t-e.StartTime) <= half {
			return e.ID, DragResizeStart, true
		}
		if math.Abs(t-e.End()) <= half {
			return e.ID, DragResizeEnd, true
		}
		if e.Contains(t) {
			return e.ID, DragMove, true
		}
	}
	return "", DragMove, false
}
