package source

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"strings"
)

var (
	ErrNotReady = errors.New("source not ready")
	ErrNoPages  = errors.New("source has no pages")
)

// Source is a raw-frame source driven by a playback clock.
type Source interface {
	// Duration is the media length in seconds.
	Duration() float64
	// Size is the natural pixel size of the frames.
	Size() (width, height int)
	// Ready reports whether Frame can return a picture.
	Ready() bool

	CurrentTime() float64
	Paused() bool
	Ended() bool
	Play() error
	Pause()
	Seek(t float64) error

	// Frame returns the picture for the current time. The image stays valid
	// until the next call on the source.
	Frame() (image.Image, error)
	// WaitFrame blocks until the next frame is due and returns its time.
	// It returns io.EOF after the end of the media.
	WaitFrame(ctx context.Context) (float64, error)

	Close() error
}

// AudioTrack is implemented by sources with a sound track that an export
// can mux back in.
type AudioTrack interface {
	HasAudio() bool
	AudioPath() string
}

var videoExtensions = []string{".mp4", ".mov", ".mkv", ".webm", ".avi", ".m4v"}

// IsVideo reports whether the path has a video file extension.
func IsVideo(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, v := range videoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

// Options configure Open.
type Options struct {
	FPS          float64
	PageDuration float64
	DPI          int
}

// Open picks a source for the path: a decoded video for video files,
// otherwise a slideshow of a PDF, an image or a directory of images.
func Open(ctx context.Context, path string, opts Options) (Source, error) {
	if IsVideo(path) {
		return OpenVideo(ctx, path)
	}
	var (
		pages Pages
		err   error
	)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		pages, err = NewFitzPages(path, opts.DPI)
	} else {
		pages, err = NewImagePages(path)
	}
	if err != nil {
		return nil, err
	}
	return NewStill(pages, opts.PageDuration, opts.FPS)
}
