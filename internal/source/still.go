package source

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
)

const (
	DefaultPageDuration = 5.0
	DefaultFPS          = 30.0
)

// Still plays a set of pages as a slideshow, each page shown for a fixed
// duration. Its clock runs in real time like a video.
type Still struct {
	pages        Pages
	pageDuration float64
	fps          float64
	clock        *Clock
	width        int
	height       int

	mu      sync.Mutex
	current int
	frame   image.Image
}

// NewStill wraps pages. Non-positive durations and rates use the defaults.
func NewStill(pages Pages, pageDuration, fps float64) (*Still, error) {
	if pages.PageCount() == 0 {
		return nil, ErrNoPages
	}
	if pageDuration <= 0 {
		pageDuration = DefaultPageDuration
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	w, h, err := pages.PageSize(0)
	if err != nil {
		return nil, fmt.Errorf("first page: %w", err)
	}
	return &Still{
		pages:        pages,
		pageDuration: pageDuration,
		fps:          fps,
		clock:        NewClock(float64(pages.PageCount()) * pageDuration),
		width:        w,
		height:       h,
		current:      -1,
	}, nil
}

// Clock exposes the playback clock.
func (s *Still) Clock() *Clock {
	return s.clock
}

func (s *Still) Duration() float64       { return s.clock.Duration() }
func (s *Still) Size() (int, int)        { return s.width, s.height }
func (s *Still) Ready() bool             { return true }
func (s *Still) CurrentTime() float64    { return s.clock.Time() }
func (s *Still) Paused() bool            { return !s.clock.Playing() }
func (s *Still) Ended() bool             { return s.clock.Ended() }
func (s *Still) Pause()                  { s.clock.Pause() }
func (s *Still) Play() error             { s.clock.Play(); return nil }
func (s *Still) Seek(t float64) error    { s.clock.Seek(t); return nil }
func (s *Still) Close() error            { return s.pages.Close() }
func (s *Still) PageIndex(t float64) int { return s.pageAt(t) }
func (s *Still) PageDuration() float64   { return s.pageDuration }

func (s *Still) WaitFrame(ctx context.Context) (float64, error) {
	return s.clock.WaitTick(ctx, s.fps)
}

func (s *Still) pageAt(t float64) int {
	i := int(math.Floor(t / s.pageDuration))
	return max(0, min(i, s.pages.PageCount()-1))
}

// Frame renders the page under the current time; pages are decoded once
// while they stay on screen.
func (s *Still) Frame() (image.Image, error) {
	i := s.pageAt(s.clock.Time())

	s.mu.Lock()
	defer s.mu.Unlock()
	if i == s.current && s.frame != nil {
		return s.frame, nil
	}
	img, err := s.pages.RenderPage(i)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", i, err)
	}
	s.current, s.frame = i, img
	return img, nil
}
