package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Probe is the subset of ffprobe output the video source needs.
type Probe struct {
	Width    int
	Height   int
	Duration float64
	FPS      float64
	HasAudio bool
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeFile runs ffprobe on a media file.
func ProbeFile(ctx context.Context, path string) (Probe, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error",
		"-print_format", "json", "-show_streams", "-show_format", path)
	out, err := cmd.Output()
	if err != nil {
		return Probe{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseProbe(out)
}

// ParseProbe reads ffprobe JSON output.
func ParseProbe(data []byte) (Probe, error) {
	var po probeOutput
	if err := json.Unmarshal(data, &po); err != nil {
		return Probe{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var p Probe
	found := false
	for _, s := range po.Streams {
		switch s.CodecType {
		case "video":
			if found {
				continue
			}
			found = true
			p.Width, p.Height = s.Width, s.Height
			p.FPS = parseRate(s.AvgFrameRate)
			if p.FPS <= 0 {
				p.FPS = parseRate(s.RFrameRate)
			}
			p.Duration, _ = strconv.ParseFloat(s.Duration, 64)
		case "audio":
			p.HasAudio = true
		}
	}
	if !found {
		return Probe{}, errors.New("no video stream")
	}
	if d, err := strconv.ParseFloat(po.Format.Duration, 64); err == nil && d > 0 {
		p.Duration = d
	}
	if p.FPS <= 0 {
		p.FPS = DefaultFPS
	}
	if p.Width <= 0 || p.Height <= 0 || p.Duration <= 0 {
		return Probe{}, fmt.Errorf("unusable video stream %dx%d, %.3fs", p.Width, p.Height, p.Duration)
	}
	return p, nil
}

func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// decoder is one ffmpeg process streaming raw RGBA frames from a start time.
type decoder struct {
	cmd   *exec.Cmd
	out   io.ReadCloser
	start float64
	fps   float64
	read  int
	done  bool
}

func startDecoder(ctx context.Context, path string, at float64, p Probe) (*decoder, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-v", "error",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", path,
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-r", strconv.FormatFloat(p.FPS, 'f', -1, 64),
		"-")
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	return &decoder{cmd: cmd, out: out, start: at, fps: p.FPS}, nil
}

// pos is the media time of the next frame the decoder will deliver.
func (d *decoder) pos() float64 {
	return d.start + float64(d.read)/d.fps
}

func (d *decoder) next(buf []byte) error {
	if _, err := io.ReadFull(d.out, buf); err != nil {
		d.done = true
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return err
	}
	d.read++
	return nil
}

func (d *decoder) close() {
	d.out.Close()
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.cmd.Wait()
}

// Video decodes a video file with ffmpeg, paced by a Clock.
type Video struct {
	path  string
	probe Probe
	clock *Clock
	ctx   context.Context
	stop  context.CancelFunc

	mu    sync.Mutex
	dec   *decoder
	frame *image.RGBA
	ready bool
}

// OpenVideo probes the file; decoding starts on the first Frame call.
func OpenVideo(ctx context.Context, path string) (*Video, error) {
	p, err := ProbeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	vctx, stop := context.WithCancel(context.Background())
	return &Video{
		path:  path,
		probe: p,
		clock: NewClock(p.Duration),
		ctx:   vctx,
		stop:  stop,
		frame: image.NewRGBA(image.Rect(0, 0, p.Width, p.Height)),
	}, nil
}

func (v *Video) Duration() float64    { return v.probe.Duration }
func (v *Video) Size() (int, int)     { return v.probe.Width, v.probe.Height }
func (v *Video) CurrentTime() float64 { return v.clock.Time() }
func (v *Video) Paused() bool         { return !v.clock.Playing() }
func (v *Video) Ended() bool          { return v.clock.Ended() }
func (v *Video) Pause()               { v.clock.Pause() }
func (v *Video) HasAudio() bool       { return v.probe.HasAudio }
func (v *Video) FPS() float64         { return v.probe.FPS }

// AudioPath returns the file itself when it carries audio.
func (v *Video) AudioPath() string {
	if !v.probe.HasAudio {
		return ""
	}
	return v.path
}

func (v *Video) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

func (v *Video) Play() error {
	v.clock.Play()
	return nil
}

// Seek moves the clock; the decoder restarts at the new position.
func (v *Video) Seek(t float64) error {
	v.clock.Seek(t)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resetLocked()
	return nil
}

func (v *Video) WaitFrame(ctx context.Context) (float64, error) {
	return v.clock.WaitTick(ctx, v.probe.FPS)
}

// Frame decodes forward to the current clock time, dropping late frames.
func (v *Video) Frame() (image.Image, error) {
	t := v.clock.Time()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Going backwards or far ahead is cheaper with a fresh decoder.
	if v.dec != nil && (t < v.dec.start || t-v.dec.pos() > 2) {
		v.resetLocked()
	}
	if v.dec == nil {
		dec, err := startDecoder(v.ctx, v.path, t, v.probe)
		if err != nil {
			return nil, err
		}
		v.dec = dec
	}

	for !v.dec.done && (!v.ready || v.dec.pos() <= t) {
		if err := v.dec.next(v.frame.Pix); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode %s: %w", v.path, err)
		}
		v.ready = true
	}
	if !v.ready {
		return nil, ErrNotReady
	}
	return v.frame, nil
}

func (v *Video) resetLocked() {
	if v.dec != nil {
		v.dec.close()
		v.dec = nil
	}
	v.ready = false
}

func (v *Video) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resetLocked()
	v.stop()
	return nil
}
