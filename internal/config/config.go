package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VIDZOOM_"

type Config struct {
	InputPath    string `toml:"input"`
	OutputPath   string `toml:"output"`
	ProjectPath  string `toml:"project"`
	ShowStats    bool   `toml:"show_stats"`
	BuildVersion string `toml:"-"`

	Render   RenderConfig   `toml:"render"`
	Export   ExportConfig   `toml:"export"`
	Timeline TimelineConfig `toml:"timeline"`
	Audio    AudioConfig    `toml:"audio"`
	Director DirectorConfig `toml:"director"`
	Batch    BatchConfig    `toml:"batch"`
}

// RenderConfig sizes the canvas and the still-image sources.
type RenderConfig struct {
	Width        int     `toml:"width"`
	Height       int     `toml:"height"`
	FPS          int     `toml:"fps"`
	DPI          int     `toml:"dpi"`
	PageDuration float64 `toml:"page_duration"`
}

// ExportConfig controls codec negotiation and output files.
type ExportConfig struct {
	Codecs    []string `toml:"codecs"`
	Quality   int      `toml:"quality"`
	OutputDir string   `toml:"output_dir"`
	MuxAudio  bool     `toml:"mux_audio"`
}

// TimelineConfig holds authoring defaults.
type TimelineConfig struct {
	EventDuration       float64 `toml:"event_duration"`
	HandleWidth         float64 `toml:"handle_width"`
	ConnectionThreshold float64 `toml:"connection_threshold"`
}

// AudioConfig holds the playback volume and default ducking.
type AudioConfig struct {
	BaseVolume    float64 `toml:"base_volume"`
	Ducking       bool    `toml:"ducking"`
	DuckingAmount float64 `toml:"ducking_amount"`
}

// DirectorConfig tunes automatic event suggestions.
type DirectorConfig struct {
	Detector  string  `toml:"detector"`
	Dwell     float64 `toml:"dwell"`
	MaxEvents int     `toml:"max_events"`
	MinArea   float64 `toml:"min_area"`
}

// BatchConfig controls batch export.
type BatchConfig struct {
	InputDir string `toml:"input_dir"`
	Workers  int    `toml:"workers"`
}

// DefaultCodecs is the encoder preference order.
var DefaultCodecs = []string{"h264_videotoolbox", "h264_nvenc", "libx264", "libvpx", "mpeg4"}

// Default returns a configuration with every value set.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			Width:        1280,
			Height:       720,
			FPS:          30,
			DPI:          150,
			PageDuration: 5,
		},
		Export: ExportConfig{
			Codecs:    append([]string(nil), DefaultCodecs...),
			Quality:   23,
			OutputDir: "output",
			MuxAudio:  true,
		},
		Timeline: TimelineConfig{
			EventDuration:       2,
			HandleWidth:         0.2,
			ConnectionThreshold: 0.1,
		},
		Audio: AudioConfig{
			BaseVolume:    1,
			DuckingAmount: 0.3,
		},
		Director: DirectorConfig{
			Detector:  "contrast",
			Dwell:     2,
			MaxEvents: 8,
			MinArea:   0.002,
		},
		Batch: BatchConfig{
			InputDir: "input/video",
			Workers:  2,
		},
	}
}

// Load builds the configuration: defaults, then the TOML file at path (if
// any), then .env and VIDZOOM_* environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("decode TOML %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides reads VIDZOOM_* variables over the current values.
func (c *Config) ApplyEnvOverrides() error {
	var errs []error
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}

	str("INPUT", &c.InputPath)
	str("OUTPUT", &c.OutputPath)
	str("PROJECT", &c.ProjectPath)
	str("OUTPUT_DIR", &c.Export.OutputDir)
	str("BATCH_DIR", &c.Batch.InputDir)
	integer("WIDTH", &c.Render.Width)
	integer("HEIGHT", &c.Render.Height)
	integer("FPS", &c.Render.FPS)
	integer("QUALITY", &c.Export.Quality)
	integer("WORKERS", &c.Batch.Workers)
	float("VOLUME", &c.Audio.BaseVolume)
	float("DUCKING_AMOUNT", &c.Audio.DuckingAmount)
	if v := os.Getenv(EnvPrefix + "CODECS"); v != "" {
		c.Export.Codecs = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "STATS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSTATS: %w", EnvPrefix, err))
		} else {
			c.ShowStats = b
		}
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		errs = append(errs, fmt.Errorf("render size must be positive, got %dx%d", c.Render.Width, c.Render.Height))
	}
	if c.Render.Width%2 != 0 || c.Render.Height%2 != 0 {
		errs = append(errs, fmt.Errorf("render size must be even for yuv420p, got %dx%d", c.Render.Width, c.Render.Height))
	}
	if c.Render.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.Render.FPS))
	}
	if c.Render.PageDuration <= 0 {
		errs = append(errs, fmt.Errorf("page_duration must be positive, got %v", c.Render.PageDuration))
	}
	if len(c.Export.Codecs) == 0 {
		errs = append(errs, errors.New("export.codecs must list at least one codec"))
	}
	if c.Timeline.EventDuration <= 0 {
		errs = append(errs, fmt.Errorf("timeline.event_duration must be positive, got %v", c.Timeline.EventDuration))
	}
	if c.Audio.BaseVolume < 0 || c.Audio.BaseVolume > 1 {
		errs = append(errs, fmt.Errorf("audio.base_volume must be in [0,1], got %v", c.Audio.BaseVolume))
	}
	if c.Audio.DuckingAmount < 0 || c.Audio.DuckingAmount > 1 {
		errs = append(errs, fmt.Errorf("audio.ducking_amount must be in [0,1], got %v", c.Audio.DuckingAmount))
	}
	if c.Director.Dwell <= 0 {
		errs = append(errs, fmt.Errorf("director.dwell must be positive, got %v", c.Director.Dwell))
	}
	if c.Batch.Workers < 1 {
		errs = append(errs, fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers))
	}
	return errors.Join(errs...)
}
