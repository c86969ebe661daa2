package timeline

import (
	"fmt"
)

// Store keeps the zoom events of one video, sorted by start time.
// It is not safe for concurrent use; editing and playback share one control flow.
type Store struct {
	events   []Event
	duration float64
}

// NewStore creates an empty store for a timeline of the given length in seconds.
func NewStore(timelineDuration float64) *Store {
	return &Store{duration: timelineDuration}
}

// Duration returns the timeline length.
func (s *Store) Duration() float64 {
	return s.duration
}

// SetDuration changes the timeline length, e.g. after a new source is loaded.
func (s *Store) SetDuration(d float64) {
	s.duration = d
}

// Len returns the number of events.
func (s *Store) Len() int {
	return len(s.events)
}

// List returns a copy of the events in start order.
func (s *Store) List() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Get returns the event with the given id.
func (s *Store) Get(id string) (Event, error) {
	i := s.index(id)
	if i < 0 {
		return Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.events[i], nil
}

// Insert validates and stores the event as is, without overlap placement.
// Simultaneous events inserted this way are composited at render time.
func (s *Store) Insert(e Event) (Event, error) {
	if e.ID == "" {
		e.ID = NewID()
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	if s.index(e.ID) >= 0 {
		return Event{}, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	s.events = append(s.events, e)
	SortByStart(s.events)
	return e, nil
}

// Add places the event away from existing ones (see Place) and stores it.
func (s *Store) Add(e Event) (Event, error) {
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return s.Insert(Place(e, s.events, s.duration))
}

// Remove deletes the event with the given id.
func (s *Store) Remove(id string) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.events = append(s.events[:i], s.events[i+1:]...)
	return nil
}

// Edit applies the patch, resolves overlaps for the edited event and
// returns its final state. Invalid patches leave the store unchanged.
func (s *Store) Edit(id string, p Patch) (Event, error) {
	i := s.index(id)
	if i < 0 {
		return Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	updated := p.Apply(s.events[i])
	if err := updated.Validate(); err != nil {
		return Event{}, err
	}
	if s.duration > 0 && updated.Duration > s.duration {
		return Event{}, fmt.Errorf("%w: %.3fs exceeds timeline %.3fs", ErrInvalidDuration, updated.Duration, s.duration)
	}

	next := make([]Event, len(s.events))
	copy(next, s.events)
	next[i] = updated
	next = ResolveEdit(i, next, s.duration)

	for _, e := range next {
		if e.ID != id {
			continue
		}
		if err := e.Validate(); err != nil {
			return Event{}, err
		}
		s.events = next
		return e, nil
	}
	return Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Replace swaps the whole event list, e.g. when a template is applied.
// Every event is validated first; on error nothing changes.
func (s *Store) Replace(events []Event) error {
	seen := make(map[string]bool, len(events))
	next := make([]Event, 0, len(events))
	for _, e := range events {
		if e.ID == "" {
			e.ID = NewID()
		}
		if err := e.Validate(); err != nil {
			return fmt.Errorf("event %s: %w", e.ID, err)
		}
		if seen[e.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		seen[e.ID] = true
		next = append(next, e)
	}
	SortByStart(next)
	s.events = next
	return nil
}

// Next returns the event that follows id in start order.
func (s *Store) Next(id string) (Event, bool) {
	i := s.index(id)
	if i < 0 || i+1 >= len(s.events) {
		return Event{}, false
	}
	return s.events[i+1], true
}

// Prev returns the event that precedes id in start order.
func (s *Store) Prev(id string) (Event, bool) {
	i := s.index(id)
	if i <= 0 {
		return Event{}, false
	}
	return s.events[i-1], true
}

// ActiveAt returns the events covering t.
func (s *Store) ActiveAt(t float64) []Event {
	var out []Event
	for _, e := range s.events {
		if e.Contains(t) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) index(id string) int {
	for i, e := range s.events {
		if e.ID == id {
			return i
		}
	}
	return -1
}
