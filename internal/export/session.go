package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/ivlev/vidzoom/internal/audio"
	"github.com/ivlev/vidzoom/internal/renderer"
	"github.com/ivlev/vidzoom/internal/source"
	"github.com/ivlev/vidzoom/internal/system"
	"github.com/ivlev/vidzoom/internal/timeline"
	"github.com/ivlev/vidzoom/internal/zoom"
)

var (
	ErrNoCodec       = errors.New("no supported codec")
	ErrCancelled     = errors.New("export cancelled")
	ErrRecorder      = errors.New("recorder failure")
	ErrCapture       = errors.New("capture failure")
	ErrUnknownHandle = errors.New("unknown export handle")
)

type Phase int32

const (
	PhaseIdle Phase = iota
	PhasePreparing
	PhaseRecording
	PhaseFinalizing
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreparing:
		return "preparing"
	case PhaseRecording:
		return "recording"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// Artifact is a finished recording.
type Artifact struct {
	Data     []byte
	Codec    Codec
	Frames   int
	Duration float64
}

func (a *Artifact) MimeType() string  { return a.Codec.MimeType }
func (a *Artifact) Extension() string { return a.Codec.Extension() }

// Session records one pass of the source through the zoom pipeline.
// A session can be run again after it completes or fails.
type Session struct {
	Source   source.Source
	Events   []timeline.Event
	Renderer *renderer.Renderer
	Encoder  Encoder
	Codecs   []string

	Width, Height int
	FPS           int
	Quality       int

	// MuxAudio carries the source sound track into the recording, ducked by
	// the events at BaseVolume.
	MuxAudio   bool
	BaseVolume float64

	Logger *slog.Logger
	Pool   *system.ImagePool

	phase    atomic.Int32
	progress atomic.Uint64
}

func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

// Progress returns the recorded fraction of the source, in [0,1].
func (s *Session) Progress() float64 {
	return math.Float64frombits(s.progress.Load())
}

func (s *Session) setPhase(p Phase) {
	s.phase.Store(int32(p))
	s.logger().Info("export phase", "phase", p.String())
}

func (s *Session) setProgress(v float64) {
	s.progress.Store(math.Float64bits(max(0, min(1, v))))
}

func (s *Session) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// Run plays the source from the start, renders every frame into the
// recorder and returns the assembled artifact. The playback position and
// paused state of the source are restored whatever the outcome.
func (s *Session) Run(ctx context.Context) (*Artifact, error) {
	s.setProgress(0)
	s.setPhase(PhasePreparing)

	savedTime := s.Source.CurrentTime()
	savedPaused := s.Source.Paused()

	chunks, frames, codec, err := s.record(ctx)

	if rerr := s.restore(savedTime, savedPaused); rerr != nil {
		err = errors.Join(err, rerr)
	}
	if err != nil {
		s.setPhase(PhaseFailed)
		return nil, err
	}

	artifact := &Artifact{
		Data:     bytes.Join(chunks, nil),
		Codec:    codec,
		Frames:   frames,
		Duration: s.Source.Duration(),
	}
	s.setProgress(1)
	s.setPhase(PhaseCompleted)
	return artifact, nil
}

func (s *Session) record(ctx context.Context) (chunks [][]byte, frames int, codec Codec, err error) {
	codec, err = Negotiate(ctx, s.Codecs, s.Encoder)
	if err != nil {
		return nil, 0, codec, err
	}

	events := append([]timeline.Event(nil), s.Events...)
	opts := RecorderOptions{
		Codec:   codec,
		Width:   s.Width,
		Height:  s.Height,
		FPS:     s.FPS,
		Quality: s.Quality,
	}
	if track, ok := s.Source.(source.AudioTrack); ok && s.MuxAudio && track.HasAudio() {
		opts.AudioPath = track.AudioPath()
		opts.AudioFilter = audio.FilterExpr(events, s.BaseVolume)
	}

	rec, err := s.Encoder.NewRecorder(opts)
	if err != nil {
		return nil, 0, codec, fmt.Errorf("%w: %w", ErrRecorder, err)
	}

	s.Source.Pause()
	if err := s.Source.Seek(0); err != nil {
		return nil, 0, codec, fmt.Errorf("%w: seek to start: %w", ErrCapture, err)
	}
	if err := rec.Start(ctx); err != nil {
		return nil, 0, codec, fmt.Errorf("%w: %w", ErrRecorder, err)
	}
	if err := s.Source.Play(); err != nil {
		rec.Abort()
		return nil, 0, codec, fmt.Errorf("%w: play: %w", ErrCapture, err)
	}
	s.setPhase(PhaseRecording)

	frames, err = s.capture(ctx, events, rec)
	if err != nil {
		rec.Abort()
		return nil, frames, codec, err
	}

	s.setPhase(PhaseFinalizing)
	chunks, err = rec.Stop()
	if err != nil {
		return nil, frames, codec, fmt.Errorf("%w: %w", ErrRecorder, err)
	}
	return chunks, frames, codec, nil
}

func (s *Session) capture(ctx context.Context, events []timeline.Event, rec Recorder) (int, error) {
	pool := s.Pool
	if pool == nil {
		pool = system.NewImagePool()
	}
	canvas := pool.Get(image.Rect(0, 0, s.Width, s.Height))
	defer pool.Put(canvas)

	duration := s.Source.Duration()
	frames := 0
	emit := func(t float64) error {
		if err := s.captureFrame(canvas, events, rec, t); err != nil {
			return err
		}
		frames++
		if duration > 0 {
			s.setProgress(t / duration)
		}
		return nil
	}

	// The first tick is one frame in, so the opening frame is drawn here.
	if err := emit(s.Source.CurrentTime()); err != nil {
		return frames, err
	}
	for {
		t, err := s.Source.WaitFrame(ctx)
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return frames, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		}
		if err != nil {
			return frames, fmt.Errorf("%w: %w", ErrCapture, err)
		}
		if err := emit(t); err != nil {
			return frames, err
		}
		if t >= duration || s.Source.Ended() {
			return frames, nil
		}
	}
}

func (s *Session) captureFrame(canvas *image.RGBA, events []timeline.Event, rec Recorder, t float64) error {
	frame, err := s.Source.Frame()
	if err != nil {
		if !errors.Is(err, source.ErrNotReady) {
			return fmt.Errorf("%w: frame at %.3fs: %w", ErrCapture, t, err)
		}
		frame = nil
	}

	// Fallback frames are already logged by the renderer.
	_ = s.Renderer.Render(canvas, zoom.Evaluate(events, t), frame, t)

	if err := rec.WriteFrame(canvas); err != nil {
		return fmt.Errorf("%w: %w", ErrRecorder, err)
	}
	return nil
}

func (s *Session) restore(t float64, paused bool) error {
	s.Source.Pause()
	var errs []error
	if err := s.Source.Seek(t); err != nil {
		errs = append(errs, fmt.Errorf("restore position: %w", err))
	}
	if !paused {
		if err := s.Source.Play(); err != nil {
			errs = append(errs, fmt.Errorf("restore playback: %w", err))
		}
	}
	return errors.Join(errs...)
}
