package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/ivlev/vidzoom/internal/system"
)

// chunkSize is how much encoder output is buffered per chunk.
const chunkSize = 256 << 10

// RecorderOptions describe the stream a recorder produces.
type RecorderOptions struct {
	Codec   Codec
	Width   int
	Height  int
	FPS     int
	Quality int

	// AudioPath is muxed in as the sound track when set; AudioFilter is
	// applied to it (an ffmpeg audio filter, e.g. a volume expression).
	AudioPath   string
	AudioFilter string
}

// Recorder turns rendered frames into buffered chunks of a media stream.
type Recorder interface {
	Start(ctx context.Context) error
	WriteFrame(img *image.RGBA) error
	// Stop finishes the stream and returns every chunk in order.
	Stop() ([][]byte, error)
	// Abort tears the recorder down and drops buffered output.
	Abort() error
}

// Encoder probes codecs and creates recorders.
type Encoder interface {
	Prober
	NewRecorder(opts RecorderOptions) (Recorder, error)
}

// FFmpegEncoder records through an ffmpeg process: raw RGBA frames go in on
// stdin, a streamable container comes out on stdout.
type FFmpegEncoder struct{}

// Supports checks the local ffmpeg encoder list.
func (e *FFmpegEncoder) Supports(ctx context.Context, codec string) bool {
	encoders, err := system.AvailableEncoders(ctx)
	return err == nil && encoders[codec]
}

func (e *FFmpegEncoder) NewRecorder(opts RecorderOptions) (Recorder, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 {
		return nil, fmt.Errorf("invalid stream %dx%d @ %d", opts.Width, opts.Height, opts.FPS)
	}
	return &ffmpegRecorder{opts: opts, args: buildFFmpegArgs(opts)}, nil
}

func buildFFmpegArgs(opts RecorderOptions) []string {
	args := []string{
		"-y", "-v", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", strconv.Itoa(opts.FPS),
		"-i", "-",
	}

	if opts.AudioPath != "" {
		args = append(args, "-i", opts.AudioPath, "-map", "0:v:0", "-map", "1:a:0?")
		if opts.AudioFilter != "" {
			args = append(args, "-af", opts.AudioFilter)
		}
		audioCodec := "aac"
		if opts.Codec.Container == "webm" {
			audioCodec = "libopus"
		}
		args = append(args, "-c:a", audioCodec, "-shortest")
	}

	args = append(args, "-pix_fmt", "yuv420p", "-c:v", opts.Codec.Name)
	args = append(args, qualityArgs(opts.Codec.Name, opts.Quality)...)

	switch opts.Codec.Container {
	case "mp4":
		// Only fragmented MP4 can be written to a pipe.
		args = append(args, "-movflags", "frag_keyframe+empty_moov+default_base_moof", "-f", "mp4")
	default:
		args = append(args, "-f", opts.Codec.Container)
	}
	return append(args, "-")
}

// lockedBuffer collects ffmpeg stderr. exec copies into it from its own
// goroutine while frames are still being written.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns the trimmed output so far.
func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.buf.Bytes()))
}

type ffmpegRecorder struct {
	opts RecorderOptions
	args []string

	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stderr   lockedBuffer
	readDone chan error

	mu     sync.Mutex
	chunks [][]byte
}

func (r *ffmpegRecorder) Start(ctx context.Context) error {
	r.cmd = exec.CommandContext(ctx, "ffmpeg", r.args...)
	r.cmd.Stderr = &r.stderr

	stdin, err := r.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	stdout, err := r.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := r.cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}
	r.stdin = stdin
	r.readDone = make(chan error, 1)
	go r.collect(stdout)
	return nil
}

func (r *ffmpegRecorder) collect(out io.Reader) {
	for {
		buf := make([]byte, chunkSize)
		n, err := io.ReadFull(out, buf)
		if n > 0 {
			r.mu.Lock()
			r.chunks = append(r.chunks, buf[:n])
			r.mu.Unlock()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = nil
			}
			r.readDone <- err
			return
		}
	}
}

func (r *ffmpegRecorder) WriteFrame(img *image.RGBA) error {
	if r.stdin == nil {
		return errors.New("recorder not started")
	}
	if err := writeRawRGBA(r.stdin, img); err != nil {
		return fmt.Errorf("write raw error: %w (%s)", err, r.stderr.String())
	}
	return nil
}

// writeRawRGBA writes tightly packed pixels, copying when the stride or
// origin does not allow writing Pix as is.
func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	bounds := img.Bounds()
	if img.Stride != bounds.Dx()*4 || bounds.Min != (image.Point{}) {
		packed := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(packed, packed.Bounds(), img, bounds.Min, draw.Src)
		img = packed
	}
	_, err := w.Write(img.Pix)
	return err
}

func (r *ffmpegRecorder) Stop() ([][]byte, error) {
	if r.cmd == nil {
		return nil, errors.New("recorder not started")
	}
	r.stdin.Close()
	readErr := <-r.readDone
	if err := r.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg wait error: %w (%s)", err, r.stderr.String())
	}
	if readErr != nil {
		return nil, fmt.Errorf("read output: %w", readErr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	chunks := r.chunks
	r.chunks = nil
	return chunks, nil
}

func (r *ffmpegRecorder) Abort() error {
	if r.cmd == nil {
		return nil
	}
	r.stdin.Close()
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	<-r.readDone
	r.cmd.Wait()

	r.mu.Lock()
	r.chunks = nil
	r.mu.Unlock()
	return nil
}
