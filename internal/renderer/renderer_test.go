package renderer

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/vidzoom/internal/timeline"
	"github.com/ivlev/vidzoom/internal/zoom"
)

func TestComputeViewportStaysInsideFrame(t *testing.T) {
	const srcW, srcH = 1920, 1080
	steps := []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1}
	sizes := []float64{0.01, 0.1, 0.5, 1}
	levels := []float64{1, 1.5, 2, 3, 5, 10}

	for _, x := range steps {
		for _, y := range steps {
			for _, w := range sizes {
				for _, h := range sizes {
					region := timeline.Region{X: x, Y: y, Width: w, Height: h}
					for _, level := range levels {
						vp, err := ComputeViewport(region, level, srcW, srcH)
						require.NoError(t, err, "region %+v level %v", region, level)
						assert.GreaterOrEqual(t, vp.X, 0.0)
						assert.GreaterOrEqual(t, vp.Y, 0.0)
						assert.LessOrEqual(t, vp.X+vp.Width, float64(srcW)+1e-9)
						assert.LessOrEqual(t, vp.Y+vp.Height, float64(srcH)+1e-9)
					}
				}
			}
		}
	}
}

func TestComputeViewportCentresOnRegion(t *testing.T) {
	vp, err := ComputeViewport(timeline.Region{X: 0.4, Y: 0.4, Width: 0.2, Height: 0.2}, 2, 1000, 500)
	require.NoError(t, err)
	assert.InDelta(t, 250, vp.X, 1e-9)
	assert.InDelta(t, 125, vp.Y, 1e-9)
	assert.InDelta(t, 500, vp.Width, 1e-9)
	assert.InDelta(t, 250, vp.Height, 1e-9)
}

func TestComputeViewportFailsClosed(t *testing.T) {
	region := timeline.Region{X: 0.4, Y: 0.4, Width: 0.2, Height: 0.2}

	_, err := ComputeViewport(region, 0, 100, 100)
	assert.ErrorIs(t, err, ErrInvalidViewport)

	_, err = ComputeViewport(region, 2, 0, 100)
	assert.ErrorIs(t, err, ErrInvalidViewport)

	// An elastic undershoot can ask for less than 1x.
	_, err = ComputeViewport(region, 0.8, 100, 100)
	assert.ErrorIs(t, err, ErrViewportOutOfBounds)
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(nil)
	require.NoError(t, err)
	return r
}

func TestRenderIdleScalesFrame(t *testing.T) {
	r := newRenderer(t)
	dst := NewCanvas(64, 36)
	frame := solid(128, 72, color.RGBA{R: 200, A: 255})

	err := r.Render(dst, zoom.Plan{Kind: zoom.KindIdle}, frame, 0)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 200, A: 255}, dst.RGBAAt(32, 18))
}

func TestRenderZoomShowsRegion(t *testing.T) {
	r := newRenderer(t)
	frame := solid(200, 100, color.RGBA{B: 255, A: 255})
	// Right half of the source is green.
	draw.Draw(frame, image.Rect(100, 0, 200, 100), image.NewUniform(color.RGBA{G: 255, A: 255}), image.Point{}, draw.Src)

	dst := NewCanvas(100, 50)
	plan := zoom.Plan{
		Kind:         zoom.KindSingle,
		Level:        2,
		Region:       timeline.Region{X: 0.75, Y: 0.5, Width: 0.1, Height: 0.1},
		EaseProgress: 0,
	}
	err := r.Render(dst, plan, frame, 1)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, dst.RGBAAt(10, 25))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, dst.RGBAAt(90, 25))
}

func TestRenderFallsBackOnBadViewport(t *testing.T) {
	r := newRenderer(t)
	frame := solid(40, 20, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	dst := NewCanvas(40, 20)

	plan := zoom.Plan{Kind: zoom.KindSingle, Level: 0.5, Region: timeline.FullFrame}
	err := r.Render(dst, plan, frame, 3)

	var fb *Fallback
	require.True(t, errors.As(err, &fb))
	assert.Equal(t, 3.0, fb.Instant)
	assert.ErrorIs(t, err, ErrViewportOutOfBounds)
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, dst.RGBAAt(20, 10))
}

func TestRenderPlaceholderWhenSourceNotReady(t *testing.T) {
	r := newRenderer(t)
	dst := NewCanvas(320, 180)

	err := r.Render(dst, zoom.Plan{Kind: zoom.KindIdle}, nil, 0)
	assert.ErrorIs(t, err, ErrSourceNotReady)
	assert.Equal(t, color.RGBA{R: 0x1a, G: 0x1a, B: 0x1a, A: 0xff}, dst.RGBAAt(2, 2))

	lit := false
	for x := 100; x < 220 && !lit; x++ {
		for y := 80; y < 100; y++ {
			if dst.RGBAAt(x, y).R > 0x40 {
				lit = true
				break
			}
		}
	}
	assert.True(t, lit, "placeholder text not drawn")
}

func TestRenderOverlayAndReadout(t *testing.T) {
	r := newRenderer(t)
	frame := solid(320, 180, color.RGBA{A: 255})
	dst := NewCanvas(320, 180)

	plan := zoom.Plan{
		Kind:         zoom.KindSingle,
		Level:        1,
		Region:       timeline.FullFrame,
		EaseProgress: 1,
		Overlay:      timeline.TextOverlay{Enabled: true, Text: "HELLO", Position: timeline.PositionBottomLeft},
	}
	require.NoError(t, r.Render(dst, plan, frame, 0))

	assert.True(t, anyPixel(dst, image.Rect(20, 150, 120, 160), func(c color.RGBA) bool { return c.R > 128 && c.G > 128 }),
		"overlay text not drawn")
	assert.True(t, anyPixel(dst, image.Rect(260, 20, 300, 36), func(c color.RGBA) bool { return c.B > 100 && c.R < 50 }),
		"zoom readout not drawn")

	// Zero progress hides everything.
	plan.EaseProgress = 0
	require.NoError(t, r.Render(dst, plan, frame, 0))
	assert.False(t, anyPixel(dst, dst.Bounds(), func(c color.RGBA) bool { return c.R > 0 || c.G > 0 || c.B > 0 }))
}

func TestRenderIndicatorsForMultiple(t *testing.T) {
	r := newRenderer(t)
	frame := solid(320, 180, color.RGBA{A: 255})
	dst := NewCanvas(320, 180)

	plan := zoom.Plan{
		Kind:         zoom.KindMultiple,
		Level:        2,
		Region:       timeline.Region{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5},
		EaseProgress: 1,
		Indicators: []zoom.Indicator{
			{Level: 2, Progress: 1, Dominant: true},
			{Level: 1.5, Progress: 1},
		},
	}
	require.NoError(t, r.Render(dst, plan, frame, 0))

	assert.True(t, anyPixel(dst, image.Rect(260, 20, 300, 34), func(c color.RGBA) bool { return c.B > 100 && c.R < 50 }),
		"dominant indicator not drawn")
	assert.True(t, anyPixel(dst, image.Rect(260, 45, 300, 59), func(c color.RGBA) bool { return c.R > 60 && c.B < 20 }),
		"secondary indicator not drawn")
}

func TestRenderSharedAcrossGoroutines(t *testing.T) {
	r := newRenderer(t)
	frame := solid(320, 180, color.RGBA{R: 40, G: 40, B: 40, A: 255})
	plan := zoom.Plan{
		Kind:         zoom.KindSingle,
		Level:        2,
		Region:       timeline.Region{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5},
		EaseProgress: 1,
		Overlay:      timeline.TextOverlay{Enabled: true, Text: "Shared", Position: timeline.PositionCenter},
	}

	want := NewCanvas(320, 180)
	require.NoError(t, r.Render(want, plan, frame, 1))

	const workers, rounds = 4, 20
	got := make([]*image.RGBA, workers)
	var wg sync.WaitGroup
	for i := range workers {
		got[i] = NewCanvas(320, 180)
		wg.Add(1)
		go func(dst *image.RGBA) {
			defer wg.Done()
			for range rounds {
				r.Render(dst, plan, frame, 1)
				r.Render(NewCanvas(64, 36), plan, nil, 1)
			}
		}(got[i])
	}
	wg.Wait()

	for i, dst := range got {
		assert.Equal(t, want.Pix, dst.Pix, "worker %d", i)
	}
}

func anyPixel(img *image.RGBA, rect image.Rectangle, match func(color.RGBA) bool) bool {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if match(img.RGBAAt(x, y)) {
				return true
			}
		}
	}
	return false
}
