package system

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLatestVideo(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.mp4")
	recent := filepath.Join(dir, "recent.MOV")
	require.NoError(t, os.WriteFile(old, nil, 0644))
	require.NoError(t, os.WriteFile(recent, nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "newest.txt"), nil, 0644))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	got, err := FindLatestVideo(dir)
	require.NoError(t, err)
	assert.Equal(t, recent, got)

	videos, err := ListVideos(dir)
	require.NoError(t, err)
	assert.Len(t, videos, 2)

	_, err = FindLatestVideo(t.TempDir())
	assert.Error(t, err)
}

func TestParseEncoders(t *testing.T) {
	out := []byte(`Encoders:
 V..... = Video
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D libvpx               libvpx VP8 (codec vp8)
 A....D aac                  AAC (Advanced Audio Coding)
`)
	got := ParseEncoders(out)
	assert.True(t, got["libx264"])
	assert.True(t, got["libvpx"])
	assert.True(t, got["aac"])
	assert.False(t, got["Video"])
	assert.False(t, got["h264_nvenc"])
}

func TestImagePoolReuse(t *testing.T) {
	p := NewImagePool()
	rect := image.Rect(0, 0, 4, 4)

	img := p.Get(rect)
	require.Equal(t, rect, img.Rect)
	p.Put(img)
	p.Put(image.NewRGBA(image.Rect(0, 0, 1, 1)))

	again := p.Get(rect)
	assert.Equal(t, rect, again.Rect)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KiB", FormatBytes(1536))
	assert.Equal(t, "2.0 GiB", FormatBytes(2<<30))
}
