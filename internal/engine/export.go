package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/vidzoom/internal/export"
	"github.com/ivlev/vidzoom/internal/system"
)

// NewSession snapshots the current events into an export session.
func (p *Project) NewSession() *export.Session {
	cfg := p.Config
	return &export.Session{
		Source:     p.Source,
		Events:     p.ListEvents(),
		Renderer:   p.renderer,
		Encoder:    p.encoder,
		Codecs:     cfg.Export.Codecs,
		Width:      cfg.Render.Width,
		Height:     cfg.Render.Height,
		FPS:        cfg.Render.FPS,
		Quality:    cfg.Export.Quality,
		MuxAudio:   cfg.Export.MuxAudio,
		BaseVolume: cfg.Audio.BaseVolume,
		Logger:     p.logger,
		Pool:       p.pool,
	}
}

// StartExport records the project in the background. Only one export may
// run on a source at a time; the caller must wait for it before starting
// another.
func (p *Project) StartExport(ctx context.Context) export.Handle {
	return p.exports.Start(ctx, p.NewSession())
}

// ExportProgress returns the completion percentage of an export.
func (p *Project) ExportProgress(h export.Handle) (float64, error) {
	return p.exports.Progress(h)
}

func (p *Project) ExportPhase(h export.Handle) (export.Phase, error) {
	return p.exports.Phase(h)
}

func (p *Project) CancelExport(h export.Handle) error {
	return p.exports.Cancel(h)
}

// WaitExport blocks until the export finishes and returns the artifact or
// the reason it failed.
func (p *Project) WaitExport(ctx context.Context, h export.Handle) (*export.Artifact, error) {
	return p.exports.Wait(ctx, h)
}

// ProgressInterval is how often ExportToFile reports progress.
const ProgressInterval = 500 * time.Millisecond

// Report summarises a finished export to file.
type Report struct {
	Build    string
	Input    string
	Output   string
	Codec    string
	Frames   int
	Bytes    int
	Duration float64
	Wall     time.Duration
	Host     system.HostStats
}

// FPS is the effective recording rate.
func (r *Report) FPS() float64 {
	if r.Wall <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Wall.Seconds()
}

func (r *Report) String() string {
	return fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Codec: %s\n"+
			"Frames: %d (%.2fs of media)\n"+
			"Output: %s (%s)\n"+
			"Total Time: %.2fs\n"+
			"Effective FPS: %.2f\n"+
			"Host: %s\n"+
			"----------------------------\n",
		r.Build, r.Codec, r.Frames, r.Duration, r.Output, system.FormatBytes(uint64(r.Bytes)),
		r.Wall.Seconds(), r.FPS(), r.Host,
	)
}

// LogLine is the single-line form appended to the benchmark log.
func (r *Report) LogLine(at time.Time) string {
	return fmt.Sprintf("[%s] Build: %s | Input: %s | Codec: %s | Frames: %d | Total: %.2fs | FPS: %.2f\n",
		at.Format("2006-01-02 15:04:05"), r.Build, filepath.Base(r.Input), r.Codec, r.Frames, r.Wall.Seconds(), r.FPS())
}

// AppendBenchmarkLog appends the report line to the log file at path.
func AppendBenchmarkLog(path string, r *Report) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(r.LogLine(time.Now())); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExportToFile records the project and writes the artifact to output. When
// output has no extension the codec's container extension is added. The
// final path is in the returned report. A non-nil onProgress is polled with
// the completion percentage while recording.
func (p *Project) ExportToFile(ctx context.Context, output string, onProgress func(percent float64)) (*Report, error) {
	start := time.Now()
	h := p.StartExport(ctx)

	done := make(chan struct{})
	if onProgress != nil {
		go func() {
			ticker := time.NewTicker(ProgressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if v, err := p.ExportProgress(h); err == nil {
						onProgress(v)
					}
				}
			}
		}()
	}
	artifact, err := p.WaitExport(ctx, h)
	if err != nil && ctx.Err() != nil {
		// Let the session restore playback before returning.
		p.CancelExport(h)
		artifact, err = p.WaitExport(context.Background(), h)
	}
	close(done)
	p.exports.Forget(h)
	if err != nil {
		return nil, err
	}

	if filepath.Ext(output) == "" {
		output += artifact.Extension()
	} else if !strings.EqualFold(filepath.Ext(output), artifact.Extension()) {
		p.logger.Warn("output extension does not match codec container",
			"output", output, "container", artifact.Codec.Container)
	}
	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(output, artifact.Data, 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", output, err)
	}

	return &Report{
		Build:    p.Config.BuildVersion,
		Input:    p.Config.InputPath,
		Output:   output,
		Codec:    artifact.Codec.Name,
		Frames:   artifact.Frames,
		Bytes:    len(artifact.Data),
		Duration: artifact.Duration,
		Wall:     time.Since(start),
		Host:     system.CollectHostStats(ctx),
	}, nil
}

// OutputPath builds output/<name>_<timestamp> for an input, without an
// extension.
func OutputPath(dir, input string, at time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if name == "" || name == "." {
		name = "export"
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s", name, at.Format("2006-01-02_15-04-05")))
}
