package source

import (
	"context"
	"io"
	"math"
	"sync"
	"time"
)

// Clock is a media playback clock: media time advances with wall time while
// playing and stops at the media duration.
type Clock struct {
	// Now and Sleep are the wall-clock hooks; tests replace them.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	duration float64
	base     float64
	anchor   time.Time
	playing  bool
}

// NewClock returns a paused clock at time 0.
func NewClock(duration float64) *Clock {
	return &Clock{
		Now:      time.Now,
		Sleep:    sleepContext,
		duration: duration,
	}
}

// Duration returns the media duration.
func (c *Clock) Duration() float64 {
	return c.duration
}

// Time returns the current media time.
func (c *Clock) Time() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeLocked()
}

func (c *Clock) timeLocked() float64 {
	t := c.base
	if c.playing {
		t += c.Now().Sub(c.anchor).Seconds()
	}
	return math.Min(t, c.duration)
}

// Playing reports whether the clock is running.
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing && c.timeLocked() < c.duration
}

// Ended reports whether media time reached the duration.
func (c *Clock) Ended() bool {
	return c.Time() >= c.duration
}

// Play starts the clock. Playing from the end restarts at 0.
func (c *Clock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	if c.base >= c.duration {
		c.base = 0
	}
	c.anchor = c.Now()
	c.playing = true
}

// Pause freezes media time.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = c.timeLocked()
	c.playing = false
}

// Seek moves media time, clamped to [0, duration].
func (c *Clock) Seek(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = math.Max(0, math.Min(t, c.duration))
	c.anchor = c.Now()
}

// WaitTick blocks until the next frame boundary at the given rate and
// returns the media time reached. It returns io.EOF once the clock has
// already ended.
func (c *Clock) WaitTick(ctx context.Context, fps float64) (float64, error) {
	t := c.Time()
	if t >= c.duration {
		return t, io.EOF
	}
	if !c.Playing() {
		if err := c.Sleep(ctx, time.Duration(float64(time.Second)/fps)); err != nil {
			return t, err
		}
		return c.Time(), nil
	}
	next := (math.Floor(t*fps+1e-6) + 1) / fps
	wait := time.Duration(math.Ceil((math.Min(next, c.duration) - t) * float64(time.Second)))
	if err := c.Sleep(ctx, wait); err != nil {
		return t, err
	}
	return c.Time(), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
