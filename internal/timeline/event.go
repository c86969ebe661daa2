package timeline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidRegion    = errors.New("invalid region")
	ErrInvalidLevel     = errors.New("invalid zoom level")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrInvalidStart     = errors.New("invalid start time")
	ErrInvalidAnimation = errors.New("invalid animation")
	ErrInvalidPosition  = errors.New("invalid text position")
	ErrInvalidTracking  = errors.New("invalid tracking sensitivity")
	ErrInvalidDucking   = errors.New("invalid ducking amount")
	ErrNotFound         = errors.New("zoom event not found")
	ErrDuplicateID      = errors.New("duplicate zoom event id")
)

// Animation selects the easing used for the zoom-in and zoom-out phases.
type Animation string

const (
	AnimationSmooth  Animation = "smooth"
	AnimationSnap    Animation = "snap"
	AnimationBounce  Animation = "bounce"
	AnimationElastic Animation = "elastic"
)

// Animations lists every supported animation.
var Animations = []Animation{AnimationSmooth, AnimationSnap, AnimationBounce, AnimationElastic}

// ParseAnimation accepts the names above, case-insensitively. Empty means smooth.
func ParseAnimation(s string) (Animation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AnimationSmooth, nil
	}
	for _, a := range Animations {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAnimation, s)
}

// TextPosition anchors the overlay text on the canvas.
type TextPosition string

const (
	PositionCenter      TextPosition = "center"
	PositionTop         TextPosition = "top"
	PositionBottom      TextPosition = "bottom"
	PositionTopLeft     TextPosition = "top-left"
	PositionTopRight    TextPosition = "top-right"
	PositionBottomLeft  TextPosition = "bottom-left"
	PositionBottomRight TextPosition = "bottom-right"
)

var positions = []TextPosition{
	PositionCenter, PositionTop, PositionBottom,
	PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight,
}

// ParseTextPosition accepts the names above. Empty means center.
func ParseTextPosition(s string) (TextPosition, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PositionCenter, nil
	}
	for _, p := range positions {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPosition, s)
}

// Tracking drives the synthetic drift of the zoom target.
type Tracking struct {
	Enabled       bool    `yaml:"enabled"`
	Sensitivity   float64 `yaml:"sensitivity"`
	InitialRegion Region  `yaml:"initial_region"`
}

// TextOverlay is drawn on top of the zoomed frame while the event is active.
type TextOverlay struct {
	Enabled  bool         `yaml:"enabled"`
	Text     string       `yaml:"text"`
	Position TextPosition `yaml:"position"`
}

// Visible reports whether there is anything to draw.
func (o TextOverlay) Visible() bool {
	return o.Enabled && o.Text != ""
}

// Ducking lowers the audio volume while the event is active.
type Ducking struct {
	Enabled bool    `yaml:"enabled"`
	Amount  float64 `yaml:"amount"`
}

// DefaultDuckingAmount is the fraction of volume removed while ducking.
const DefaultDuckingAmount = 0.3

// DefaultEventDuration is used when a new event gets no explicit duration.
const DefaultEventDuration = 2.0

// Event is a single time-bounded zoom effect. ID never changes once assigned.
type Event struct {
	ID          string      `yaml:"id"`
	StartTime   float64     `yaml:"start_time"`
	Duration    float64     `yaml:"duration"`
	Level       float64     `yaml:"level"`
	Region      Region      `yaml:"region"`
	Animation   Animation   `yaml:"animation"`
	Tracking    Tracking    `yaml:"tracking"`
	TextOverlay TextOverlay `yaml:"text_overlay"`
	Ducking     Ducking     `yaml:"ducking"`
}

// NewID returns a fresh event id.
func NewID() string {
	return uuid.NewString()
}

// EventOptions tweak the defaults of NewEvent. Zero values mean "default".
type EventOptions struct {
	Duration    float64
	Level       float64
	Animation   Animation
	Tracking    bool
	Sensitivity float64
	Text        string
	Position    TextPosition
	Duck        bool
	DuckAmount  float64
}

// NewEvent builds an event at the given time for a freshly selected region.
// The zoom level is derived from the region size unless opts sets one.
func NewEvent(at float64, region Region, opts EventOptions) Event {
	e := Event{
		ID:        NewID(),
		StartTime: at,
		Duration:  opts.Duration,
		Level:     opts.Level,
		Region:    region,
		Animation: opts.Animation,
		Tracking: Tracking{
			Enabled:       opts.Tracking,
			Sensitivity:   opts.Sensitivity,
			InitialRegion: region,
		},
		TextOverlay: TextOverlay{
			Enabled:  opts.Text != "",
			Text:     opts.Text,
			Position: opts.Position,
		},
		Ducking: Ducking{Enabled: opts.Duck, Amount: opts.DuckAmount},
	}
	if e.Duration <= 0 {
		e.Duration = DefaultEventDuration
	}
	if e.Level <= 0 {
		e.Level = AutoLevel(region)
	}
	if e.Animation == "" {
		e.Animation = AnimationSmooth
	}
	if e.TextOverlay.Position == "" {
		e.TextOverlay.Position = PositionCenter
	}
	if e.Ducking.Enabled && e.Ducking.Amount == 0 {
		e.Ducking.Amount = DefaultDuckingAmount
	}
	return e
}

// End returns StartTime + Duration.
func (e Event) End() float64 {
	return e.StartTime + e.Duration
}

// Contains reports whether the instant falls inside [start, end].
func (e Event) Contains(t float64) bool {
	return t >= e.StartTime && t <= e.End()
}

// Progress maps t onto [0,1] over the event; values outside are not clamped.
func (e Event) Progress(t float64) float64 {
	return (t - e.StartTime) / e.Duration
}

// Validate checks every field that has a domain restriction.
func (e Event) Validate() error {
	if math.IsNaN(e.StartTime) || math.IsInf(e.StartTime, 0) || e.StartTime < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidStart, e.StartTime)
	}
	if math.IsNaN(e.Duration) || math.IsInf(e.Duration, 0) || e.Duration <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, e.Duration)
	}
	if math.IsNaN(e.Level) || math.IsInf(e.Level, 0) || e.Level < 1 {
		return fmt.Errorf("%w: %v", ErrInvalidLevel, e.Level)
	}
	if err := e.Region.Validate(); err != nil {
		return err
	}
	if _, err := ParseAnimation(string(e.Animation)); err != nil {
		return err
	}
	if e.Tracking.Enabled {
		if e.Tracking.Sensitivity < 0 || e.Tracking.Sensitivity > 1 {
			return fmt.Errorf("%w: %v", ErrInvalidTracking, e.Tracking.Sensitivity)
		}
		if err := e.Tracking.InitialRegion.Validate(); err != nil {
			return fmt.Errorf("tracking: %w", err)
		}
	}
	if _, err := ParseTextPosition(string(e.TextOverlay.Position)); err != nil {
		return err
	}
	if e.Ducking.Amount < 0 || e.Ducking.Amount > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidDucking, e.Ducking.Amount)
	}
	return nil
}

// Patch carries the fields to change in an edit. Nil fields are left alone.
type Patch struct {
	StartTime   *float64
	Duration    *float64
	Level       *float64
	Region      *Region
	Animation   *Animation
	Tracking    *Tracking
	TextOverlay *TextOverlay
	Ducking     *Ducking
}

// Apply returns a copy of e with the patch applied.
func (p Patch) Apply(e Event) Event {
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.Duration != nil {
		e.Duration = *p.Duration
	}
	if p.Level != nil {
		e.Level = *p.Level
	}
	if p.Region != nil {
		e.Region = *p.Region
	}
	if p.Animation != nil {
		e.Animation = *p.Animation
	}
	if p.Tracking != nil {
		e.Tracking = *p.Tracking
	}
	if p.TextOverlay != nil {
		e.TextOverlay = *p.TextOverlay
	}
	if p.Ducking != nil {
		e.Ducking = *p.Ducking
	}
	return e
}
