package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"

	"github.com/ivlev/vidzoom/internal/analyzer"
	"github.com/ivlev/vidzoom/internal/audio"
	"github.com/ivlev/vidzoom/internal/config"
	"github.com/ivlev/vidzoom/internal/director"
	"github.com/ivlev/vidzoom/internal/export"
	"github.com/ivlev/vidzoom/internal/renderer"
	"github.com/ivlev/vidzoom/internal/source"
	"github.com/ivlev/vidzoom/internal/system"
	"github.com/ivlev/vidzoom/internal/timeline"
	"github.com/ivlev/vidzoom/internal/zoom"
)

// Project ties one source video to its zoom events and everything that
// consumes them: live rendering, audio ducking, suggestions and export.
type Project struct {
	Config *config.Config
	Source source.Source

	logger   *slog.Logger
	encoder  export.Encoder
	renderer *renderer.Renderer
	director *director.Director
	exports  *export.Manager
	pool     *system.ImagePool

	mu     sync.Mutex
	store  *timeline.Store
	ducker *audio.Ducker
	canvas *image.RGBA
}

// NewProject creates a project over src. A nil encoder records through
// ffmpeg; a nil logger discards log output.
func NewProject(cfg *config.Config, src source.Source, enc export.Encoder, logger *slog.Logger) (*Project, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if enc == nil {
		enc = &export.FFmpegEncoder{}
	}

	r, err := renderer.New(logger)
	if err != nil {
		return nil, err
	}
	det, err := analyzer.NewDetector(cfg.Director.Detector)
	if err != nil {
		return nil, err
	}
	if cd, ok := det.(*analyzer.ContrastDetector); ok && cfg.Director.MinArea > 0 {
		cd.MinArea = cfg.Director.MinArea
	}
	dir := director.NewDirector(det)
	dir.Dwell = cfg.Director.Dwell
	dir.MaxEvents = cfg.Director.MaxEvents
	dir.Options = timeline.EventOptions{
		Duck:       cfg.Audio.Ducking,
		DuckAmount: cfg.Audio.DuckingAmount,
	}

	pool := system.NewImagePool()
	return &Project{
		Config:   cfg,
		Source:   src,
		logger:   logger,
		encoder:  enc,
		renderer: r,
		director: dir,
		exports:  export.NewManager(logger),
		pool:     pool,
		store:    timeline.NewStore(src.Duration()),
		ducker:   audio.NewDucker(cfg.Audio.BaseVolume),
		canvas:   pool.Get(image.Rect(0, 0, cfg.Render.Width, cfg.Render.Height)),
	}, nil
}

// NewEvent builds an event at the given time using the configured defaults.
func (p *Project) NewEvent(at float64, region timeline.Region) timeline.Event {
	return timeline.NewEvent(at, region, timeline.EventOptions{
		Duration:   p.Config.Timeline.EventDuration,
		Duck:       p.Config.Audio.Ducking,
		DuckAmount: p.Config.Audio.DuckingAmount,
	})
}

// AddEvent validates the event, moves it clear of existing events and
// stores it.
func (p *Project) AddEvent(e timeline.Event) (timeline.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Add(e)
}

func (p *Project) RemoveEvent(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Remove(id)
}

// ListEvents returns the events ordered by start time.
func (p *Project) ListEvents() []timeline.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.List()
}

// EditEvent applies the patch and resolves overlaps. The returned event is
// the stored result, which may have been moved.
func (p *Project) EditEvent(id string, patch timeline.Patch) (timeline.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Edit(id, patch)
}

// MoveRegionCenter moves the event's region so it is centred on (cx, cy),
// keeping its size. A tracked event drifts around the new position.
func (p *Project) MoveRegionCenter(id string, cx, cy float64) (timeline.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.store.Get(id)
	if err != nil {
		return timeline.Event{}, err
	}
	region := e.Region.Recenter(cx, cy)
	patch := timeline.Patch{Region: &region}
	if e.Tracking.Enabled {
		tr := e.Tracking
		tr.InitialRegion = region
		patch.Tracking = &tr
	}
	return p.store.Edit(id, patch)
}

// BeginDrag starts an interactive move or resize of an event. The drag must
// be ended or cancelled before other edits are made.
func (p *Project) BeginDrag(id string, mode timeline.DragMode) (*timeline.Drag, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.BeginDrag(id, mode)
}

// EventAt finds the event under time t on the timeline and the drag mode a
// press there would start.
func (p *Project) EventAt(t float64) (string, timeline.DragMode, bool) {
	return timeline.HitTest(p.ListEvents(), t, p.Config.Timeline.HandleWidth)
}

// Connections lists back-to-back neighbours within the configured threshold.
func (p *Project) Connections() []timeline.Connection {
	return timeline.Connections(p.ListEvents(), p.Config.Timeline.ConnectionThreshold)
}

// ComputeState returns the zoom state at the instant.
func (p *Project) ComputeState(instant float64) zoom.State {
	return zoom.Compute(p.ListEvents(), instant)
}

// RenderFrame draws the current source frame with the zoom effect for the
// instant onto the project canvas and returns it. The canvas is reused by
// the next call. Render problems fall back to the unzoomed frame and are
// only logged.
func (p *Project) RenderFrame(instant float64) *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()

	plan := zoom.Evaluate(p.store.List(), instant)
	frame, err := p.Source.Frame()
	if err != nil {
		if !errors.Is(err, source.ErrNotReady) {
			p.logger.Warn("frame unavailable", "instant", instant, "error", err)
		}
		frame = nil
	}
	var fb *renderer.Fallback
	if err := p.renderer.Render(p.canvas, plan, frame, instant); err != nil && !errors.As(err, &fb) {
		p.logger.Error("render failed", "instant", instant, "error", err)
	}
	return p.canvas
}

// PreviewAt seeks the source to the instant and renders it.
func (p *Project) PreviewAt(instant float64) (*image.RGBA, error) {
	p.Source.Pause()
	if err := p.Source.Seek(instant); err != nil {
		return nil, fmt.Errorf("seek to %.3fs: %w", instant, err)
	}
	return p.RenderFrame(p.Source.CurrentTime()), nil
}

// Play runs live playback from the current position: every frame is
// rendered and the ducked volume is stepped before fn is called. Play
// returns nil at the end of the media.
func (p *Project) Play(ctx context.Context, fn func(instant float64, frame *image.RGBA, volume float64) error) error {
	if err := p.Source.Play(); err != nil {
		return err
	}
	defer p.Source.Pause()

	for {
		t, err := p.Source.WaitFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		frame := p.RenderFrame(t)
		if err := fn(t, frame, p.stepVolume(t)); err != nil {
			return err
		}
	}
}

func (p *Project) stepVolume(instant float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ducker.Step(p.store.List(), instant)
}

// Volume returns the current, possibly ducked, playback volume.
func (p *Project) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ducker.Volume()
}

// SetVolume sets the base volume ducking works from.
func (p *Project) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ducker.SetBase(v)
	p.Config.Audio.BaseVolume = p.ducker.Base()
}

// CloneEventsAsTemplate copies the current events for reuse on other sources.
func (p *Project) CloneEventsAsTemplate() []timeline.Event {
	return timeline.CloneTemplate(p.ListEvents())
}

// ApplyTemplate replaces the events with copies of the template that get
// fresh ids and keep their offsets. Events past the end of this source are
// dropped or trimmed.
func (p *Project) ApplyTemplate(template []timeline.Event) ([]timeline.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	events := timeline.FitTemplate(timeline.ApplyTemplate(template), p.store.Duration())
	if err := p.store.Replace(events); err != nil {
		return nil, fmt.Errorf("apply template: %w", err)
	}
	return p.store.List(), nil
}

// Suggest analyses the current source frame and adds one event per detected
// block, back to back from at. The added events are returned.
func (p *Project) Suggest(at float64) ([]timeline.Event, error) {
	frame, err := p.Source.Frame()
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	suggested, err := p.director.Suggest(frame, at, p.store.List(), p.store.Duration())
	if err != nil {
		return nil, err
	}
	added := make([]timeline.Event, 0, len(suggested))
	for _, e := range suggested {
		stored, err := p.store.Insert(e)
		if err != nil {
			return added, err
		}
		added = append(added, stored)
	}
	return added, nil
}

// Document returns the project in its on-disk form.
func (p *Project) Document() *timeline.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &timeline.Document{
		Version:  timeline.DocumentVersion,
		Source:   p.Config.InputPath,
		Duration: p.store.Duration(),
		Events:   p.store.List(),
	}
}

func (p *Project) SaveDocument(path string) error {
	return timeline.WriteDocument(p.Document(), path)
}

// LoadDocument replaces the events with the ones stored at path.
func (p *Project) LoadDocument(path string) error {
	doc, err := timeline.ReadDocument(path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Replace(doc.Events)
}

// Close releases the canvas and the source.
func (p *Project) Close() error {
	p.mu.Lock()
	p.pool.Put(p.canvas)
	p.mu.Unlock()
	return p.Source.Close()
}
