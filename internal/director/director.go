package director

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/ivlev/vidzoom/internal/analyzer"
	"github.com/ivlev/vidzoom/internal/timeline"
)

var ErrNoBlocks = errors.New("no blocks detected")

// Director turns detected blocks of a frame into suggested zoom events.
type Director struct {
	Detector analyzer.Detector
	// Dwell is the duration of each suggested event, in seconds.
	Dwell float64
	// MaxEvents caps the number of suggestions; zero means no cap.
	MaxEvents int
	// Padding grows each block by this fraction of its size on every side.
	Padding float64
	// Options are applied to every suggested event. Duration is ignored.
	Options timeline.EventOptions
}

// NewDirector creates a director with default settings.
func NewDirector(detector analyzer.Detector) *Director {
	return &Director{
		Detector:  detector,
		Dwell:     2.0,
		MaxEvents: 8,
		Padding:   0.05,
	}
}

// Suggest detects blocks in frame and schedules one event per block in
// reading order, back to back from at. Each event is placed around the
// existing ones; suggestions that still collide or do not fit are dropped.
// The existing events are not modified.
func (d *Director) Suggest(frame image.Image, at float64, existing []timeline.Event, timelineDuration float64) ([]timeline.Event, error) {
	if d.Dwell < timeline.MinDuration {
		return nil, fmt.Errorf("dwell %.2fs is shorter than %.2fs", d.Dwell, timeline.MinDuration)
	}
	blocks, err := d.Detector.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	if len(blocks) == 0 {
		return nil, ErrNoBlocks
	}

	bounds := frame.Bounds()
	blocks = sortBlocks(blocks, max(20, bounds.Dy()/36))

	all := append([]timeline.Event(nil), existing...)
	var suggested []timeline.Event
	cursor := at
	for _, b := range blocks {
		if d.MaxEvents > 0 && len(suggested) >= d.MaxEvents {
			break
		}
		if cursor+timeline.MinDuration > timelineDuration {
			break
		}

		region, ok := regionFor(b.Rect, bounds, d.Padding)
		if !ok {
			continue
		}
		opts := d.Options
		opts.Duration = min(d.Dwell, timelineDuration-cursor)
		e := timeline.Place(timeline.NewEvent(cursor, region, opts), all, timelineDuration)
		if e.End() > timelineDuration+timeline.OverlapTolerance || collides(e, all) {
			continue
		}

		all = append(all, e)
		suggested = append(suggested, e)
		cursor = e.End()
	}
	return suggested, nil
}

// sortBlocks orders blocks top-to-bottom, then left-to-right within a row.
func sortBlocks(blocks []analyzer.Block, rowThreshold int) []analyzer.Block {
	sorted := make([]analyzer.Block, len(blocks))
	copy(sorted, blocks)

	sort.SliceStable(sorted, func(i, j int) bool {
		yDiff := sorted[i].Rect.Min.Y - sorted[j].Rect.Min.Y
		if abs(yDiff) > rowThreshold {
			return yDiff < 0
		}
		return sorted[i].Rect.Min.X < sorted[j].Rect.Min.X
	})
	return sorted
}

// regionFor pads the block, clips it to the frame and normalizes it.
func regionFor(r, frame image.Rectangle, padding float64) (timeline.Region, bool) {
	padX := int(float64(r.Dx()) * padding)
	padY := int(float64(r.Dy()) * padding)
	r = image.Rect(r.Min.X-padX, r.Min.Y-padY, r.Max.X+padX, r.Max.Y+padY).Intersect(frame)
	if r.Empty() {
		return timeline.Region{}, false
	}
	fw, fh := float64(frame.Dx()), float64(frame.Dy())
	region := timeline.Region{
		X:      float64(r.Min.X-frame.Min.X) / fw,
		Y:      float64(r.Min.Y-frame.Min.Y) / fh,
		Width:  float64(r.Dx()) / fw,
		Height: float64(r.Dy()) / fh,
	}
	return region, region.Validate() == nil
}

func collides(e timeline.Event, events []timeline.Event) bool {
	for _, other := range events {
		if timeline.Overlaps(e, other) {
			return true
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
