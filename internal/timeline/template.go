package timeline

// CloneTemplate deep-copies the event list. Ids are kept so the template
// still describes the original events; ApplyTemplate replaces them.
func CloneTemplate(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	SortByStart(out)
	return out
}

// ApplyTemplate returns copies of the template events with fresh ids and
// unchanged timing, ready to be attached to another source.
func ApplyTemplate(template []Event) []Event {
	out := make([]Event, len(template))
	for i, e := range template {
		e.ID = NewID()
		out[i] = e
	}
	SortByStart(out)
	return out
}

// FitTemplate drops template events that start past the end of a shorter
// timeline and trims the ones that run over it.
func FitTemplate(events []Event, timelineDuration float64) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.StartTime >= timelineDuration {
			continue
		}
		if e.End() > timelineDuration {
			e.Duration = timelineDuration - e.StartTime
		}
		if e.Duration <= 0 {
			continue
		}
		out = append(out, e)
	}
	return out
}
