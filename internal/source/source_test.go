package source

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTime drives a Clock without real sleeping.
type fakeTime struct {
	now time.Time
}

func (f *fakeTime) install(c *Clock) {
	c.Now = func() time.Time { return f.now }
	c.Sleep = func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		f.now = f.now.Add(d)
		return nil
	}
}

func TestClockPlayPauseSeek(t *testing.T) {
	ft := &fakeTime{now: time.Unix(0, 0)}
	c := NewClock(10)
	ft.install(c)

	assert.Equal(t, 0.0, c.Time())
	assert.False(t, c.Playing())

	c.Play()
	ft.now = ft.now.Add(1500 * time.Millisecond)
	assert.InDelta(t, 1.5, c.Time(), 1e-9)

	c.Pause()
	ft.now = ft.now.Add(time.Second)
	assert.InDelta(t, 1.5, c.Time(), 1e-9)

	c.Seek(4)
	assert.InDelta(t, 4, c.Time(), 1e-9)

	c.Seek(99)
	assert.True(t, c.Ended())

	c.Play()
	assert.InDelta(t, 0, c.Time(), 1e-9, "playing from the end restarts")
}

func TestClockWaitTickReachesEnd(t *testing.T) {
	ft := &fakeTime{now: time.Unix(0, 0)}
	c := NewClock(1)
	ft.install(c)
	c.Play()

	ctx := context.Background()
	ticks := 0
	var last float64
	for {
		tm, err := c.WaitTick(ctx, 30)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Greater(t, tm, last)
		last = tm
		ticks++
		require.Less(t, ticks, 100)
	}
	assert.InDelta(t, 1.0, last, 1e-9)
	assert.InDelta(t, 30, ticks, 1)
}

func TestClockWaitTickHonoursContext(t *testing.T) {
	c := NewClock(5)
	c.Play()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.WaitTick(ctx, 30)
	assert.ErrorIs(t, err, context.Canceled)
}

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestStillPlaysPagesInOrder(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 8, 4, color.RGBA{G: 255, A: 255})
	writePNG(t, filepath.Join(dir, "a.png"), 8, 4, color.RGBA{R: 255, A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	pages, err := NewImagePages(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, pages.PageCount())

	s, err := NewStill(pages, 2, 10)
	require.NoError(t, err)
	defer s.Close()

	w, h := s.Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 4, h)
	assert.Equal(t, 4.0, s.Duration())
	assert.True(t, s.Paused())

	frame, err := s.Frame()
	require.NoError(t, err)
	r, _, _, _ := frame.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	require.NoError(t, s.Seek(3))
	frame, err = s.Frame()
	require.NoError(t, err)
	_, g, _, _ := frame.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, 1, s.PageIndex(99))
}

func TestImagePagesEmptyDir(t *testing.T) {
	_, err := NewImagePages(t.TempDir())
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "audio", "duration": "12.0"},
			{"codec_type": "video", "width": 1920, "height": 1080, "avg_frame_rate": "30000/1001", "r_frame_rate": "30/1", "duration": "11.9"}
		],
		"format": {"duration": "12.012"}
	}`)
	p, err := ParseProbe(data)
	require.NoError(t, err)
	assert.Equal(t, 1920, p.Width)
	assert.Equal(t, 1080, p.Height)
	assert.InDelta(t, 29.97, p.FPS, 0.01)
	assert.InDelta(t, 12.012, p.Duration, 1e-9)
	assert.True(t, p.HasAudio)

	_, err = ParseProbe([]byte(`{"streams": [{"codec_type": "audio"}], "format": {}}`))
	assert.Error(t, err)

	p, err = ParseProbe([]byte(`{"streams": [{"codec_type": "video", "width": 2, "height": 2, "avg_frame_rate": "0/0", "r_frame_rate": "25/1"}], "format": {"duration": "3"}}`))
	require.NoError(t, err)
	assert.Equal(t, 25.0, p.FPS)
	assert.False(t, p.HasAudio)
}

func TestIsVideo(t *testing.T) {
	assert.True(t, IsVideo("clip.MP4"))
	assert.True(t, IsVideo("/tmp/a.webm"))
	assert.False(t, IsVideo("deck.pdf"))
	assert.False(t, IsVideo("shot.png"))
}
