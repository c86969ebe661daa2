package export

import (
	"context"
	"fmt"
	"strconv"
)

// Codec is a video encoder together with the container it is written in.
type Codec struct {
	Name      string
	Container string
	MimeType  string
}

// Extension returns the output file extension, with the dot.
func (c Codec) Extension() string {
	return "." + c.Container
}

var codecs = map[string]Codec{
	"h264_videotoolbox": {Name: "h264_videotoolbox", Container: "mp4", MimeType: "video/mp4"},
	"h264_nvenc":        {Name: "h264_nvenc", Container: "mp4", MimeType: "video/mp4"},
	"libx264":           {Name: "libx264", Container: "mp4", MimeType: "video/mp4"},
	"libvpx":            {Name: "libvpx", Container: "webm", MimeType: "video/webm"},
	"libvpx-vp9":        {Name: "libvpx-vp9", Container: "webm", MimeType: "video/webm"},
	"mpeg4":             {Name: "mpeg4", Container: "mp4", MimeType: "video/mp4"},
}

// LookupCodec returns the codec registered under name.
func LookupCodec(name string) (Codec, bool) {
	c, ok := codecs[name]
	return c, ok
}

// Prober reports whether an encoder can be used on this machine.
type Prober interface {
	Supports(ctx context.Context, codec string) bool
}

// Negotiate walks the preference list and returns the first known codec
// the prober accepts.
func Negotiate(ctx context.Context, preferences []string, p Prober) (Codec, error) {
	var tried []string
	for _, name := range preferences {
		c, ok := LookupCodec(name)
		if !ok {
			tried = append(tried, name+" (unknown)")
			continue
		}
		if p.Supports(ctx, name) {
			return c, nil
		}
		tried = append(tried, name)
	}
	return Codec{}, fmt.Errorf("%w: tried %v", ErrNoCodec, tried)
}

// qualityArgs maps a CRF-like quality (lower is better) onto each encoder's
// own rate control.
func qualityArgs(codec string, quality int) []string {
	switch codec {
	case "h264_videotoolbox":
		// VideoToolbox has no CRF mode, so quality maps to a bitrate.
		bitrate := max(500, (51-quality)*250)
		return []string{"-b:v", strconv.Itoa(bitrate) + "k"}
	case "h264_nvenc":
		return []string{"-cq", strconv.Itoa(quality)}
	case "libvpx", "libvpx-vp9":
		return []string{"-crf", strconv.Itoa(quality), "-b:v", "2M", "-deadline", "realtime"}
	case "mpeg4":
		return []string{"-q:v", strconv.Itoa(max(2, min(31, quality/5)))}
	default: // libx264
		return []string{"-crf", strconv.Itoa(quality), "-preset", "veryfast"}
	}
}
