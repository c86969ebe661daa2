package director

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/vidzoom/internal/analyzer"
	"github.com/ivlev/vidzoom/internal/timeline"
)

type stubDetector struct {
	blocks []analyzer.Block
	err    error
}

func (s stubDetector) Detect(image.Image) ([]analyzer.Block, error) {
	return s.blocks, s.err
}

func frame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 1280, 720))
}

func block(x0, y0, x1, y1 int) analyzer.Block {
	return analyzer.Block{Rect: image.Rect(x0, y0, x1, y1), Kind: analyzer.KindText, Confidence: 0.7}
}

func TestSuggestFollowsReadingOrder(t *testing.T) {
	d := NewDirector(stubDetector{blocks: []analyzer.Block{
		block(700, 400, 1000, 600), // second row
		block(640, 52, 1200, 120),  // first row, right
		block(40, 40, 600, 120),    // first row, left
	}})
	d.Padding = 0

	events, err := d.Suggest(frame(), 1, nil, 20)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.InDelta(t, 40.0/1280, events[0].Region.X, 1e-9)
	assert.InDelta(t, 640.0/1280, events[1].Region.X, 1e-9)
	assert.InDelta(t, 400.0/720, events[2].Region.Y, 1e-9)

	for i, e := range events {
		assert.InDelta(t, 1+2*float64(i), e.StartTime, 1e-9)
		assert.Equal(t, 2.0, e.Duration)
		assert.Equal(t, timeline.AutoLevel(e.Region), e.Level)
		assert.NoError(t, e.Validate())
	}
}

func TestSuggestPadsAndClipsRegions(t *testing.T) {
	d := NewDirector(stubDetector{blocks: []analyzer.Block{block(0, 0, 640, 360)}})
	d.Padding = 0.1

	events, err := d.Suggest(frame(), 0, nil, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	r := events[0].Region
	assert.Equal(t, 0.0, r.X)
	assert.Equal(t, 0.0, r.Y)
	assert.InDelta(t, 704.0/1280, r.Width, 1e-9)
	assert.InDelta(t, 396.0/720, r.Height, 1e-9)
}

func TestSuggestAvoidsExistingEvents(t *testing.T) {
	existing := []timeline.Event{{ID: "x", StartTime: 1, Duration: 2, Level: 2, Region: timeline.FullFrame}}
	d := NewDirector(stubDetector{blocks: []analyzer.Block{block(100, 100, 400, 300)}})

	events, err := d.Suggest(frame(), 0, existing, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.InDelta(t, 3.1, events[0].StartTime, 1e-9)
	assert.Len(t, existing, 1)
	assert.False(t, timeline.Overlaps(events[0], existing[0]))
}

func TestSuggestStopsAtTimelineEnd(t *testing.T) {
	var blocks []analyzer.Block
	for i := 0; i < 6; i++ {
		blocks = append(blocks, block(10, 10+i*100, 300, 80+i*100))
	}
	d := NewDirector(stubDetector{blocks: blocks})

	events, err := d.Suggest(frame(), 0, nil, 5)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.InDelta(t, 1.0, events[2].Duration, 1e-9)
	assert.InDelta(t, 5.0, events[2].End(), 1e-9)

	d.MaxEvents = 1
	events, err = d.Suggest(frame(), 0, nil, 5)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSuggestErrors(t *testing.T) {
	_, err := NewDirector(stubDetector{}).Suggest(frame(), 0, nil, 10)
	assert.ErrorIs(t, err, ErrNoBlocks)

	boom := errors.New("boom")
	_, err = NewDirector(stubDetector{err: boom}).Suggest(frame(), 0, nil, 10)
	assert.ErrorIs(t, err, boom)

	d := NewDirector(stubDetector{blocks: []analyzer.Block{block(0, 0, 10, 10)}})
	d.Dwell = 0.1
	_, err = d.Suggest(frame(), 0, nil, 10)
	assert.Error(t, err)
}

func TestSuggestWithContrastDetector(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 640, 360))
	white := image.NewUniform(color.Gray{Y: 255})
	draw.Draw(img, image.Rect(40, 40, 200, 140), white, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(400, 200, 600, 320), white, image.Point{}, draw.Src)

	events, err := NewDirector(analyzer.NewContrastDetector()).Suggest(img, 0, nil, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Less(t, events[0].Region.X, events[1].Region.X)
	assert.Less(t, events[0].Region.Y, events[1].Region.Y)
}
