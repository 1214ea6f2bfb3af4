// file: internal/config/config.go
// version: 2.1.0
// guid: 7b8c9d0e-1f2a-3b4c-5d6e-7f8a9b0c1d2e

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jdfalk/beat-organizer/internal/analyzer"
	"github.com/jdfalk/beat-organizer/internal/cache"
	"github.com/jdfalk/beat-organizer/internal/cluster"
	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/ffmpeg"
	"github.com/jdfalk/beat-organizer/internal/fingerprint"
	"github.com/jdfalk/beat-organizer/internal/logging"
	"github.com/jdfalk/beat-organizer/internal/sysinfo"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// BEAT_ORGANIZER_ANALYSIS_THRESHOLD.
const EnvPrefix = "BEAT_ORGANIZER"

// Config holds application configuration
type Config struct {
	Analysis    AnalysisConfig     `mapstructure:"analysis"`
	Fingerprint fingerprint.Params `mapstructure:"fingerprint"`
	Cache       cache.Options      `mapstructure:"cache"`
	FFmpeg      ffmpeg.Config      `mapstructure:"ffmpeg"`
	Log         logging.Options    `mapstructure:"log"`
	Scan        ScanConfig         `mapstructure:"scan"`
	Metrics     MetricsConfig      `mapstructure:"metrics"`
}

// AnalysisConfig tunes the batch engine.
type AnalysisConfig struct {
	Threshold      float64           `mapstructure:"threshold"`
	MaxConcurrency int               `mapstructure:"max_concurrency"`
	MaxExtractions int               `mapstructure:"max_extractions"`
	SkipQuality    bool              `mapstructure:"skip_quality"`
	EnvelopeWidth  int               `mapstructure:"envelope_width"`
	Timeouts       analyzer.Timeouts `mapstructure:"timeouts"`
}

// ScanConfig controls discovery and watch mode.
type ScanConfig struct {
	Extensions []string      `mapstructure:"extensions"`
	Workers    int           `mapstructure:"workers"`
	Debounce   time.Duration `mapstructure:"debounce"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	// Textfile is written after every batch when set.
	Textfile string `mapstructure:"textfile"`
}

// SupportedExtensions are the audio containers discovered by default.
var SupportedExtensions = []string{".wav", ".flac", ".aiff", ".aif", ".mp3", ".m4a", ".aac", ".ogg", ".opus"}

var AppConfig Config

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	p := fingerprint.DefaultParams()
	t := analyzer.DefaultTimeouts()
	f := ffmpeg.DefaultConfig()

	v.SetDefault("analysis.threshold", cluster.DefaultThreshold)
	v.SetDefault("analysis.max_concurrency", runtime.NumCPU())
	v.SetDefault("analysis.max_extractions", sysinfo.ExtractionSlots(runtime.NumCPU()))
	v.SetDefault("analysis.skip_quality", false)
	v.SetDefault("analysis.envelope_width", fingerprint.DefaultEnvelopeWidth)
	v.SetDefault("analysis.timeouts.extract", t.Extract)
	v.SetDefault("analysis.timeouts.loudness", t.Loudness)
	v.SetDefault("analysis.timeouts.probe", t.Probe)
	v.SetDefault("analysis.timeouts.cache", t.Cache)

	v.SetDefault("fingerprint.sample_rate", p.SampleRate)
	v.SetDefault("fingerprint.window_seconds", p.WindowSeconds)
	v.SetDefault("fingerprint.min_seconds", p.MinSeconds)
	v.SetDefault("fingerprint.low_hz", p.LowHz)
	v.SetDefault("fingerprint.high_hz", p.HighHz)
	v.SetDefault("fingerprint.chunks", p.Chunks)
	v.SetDefault("fingerprint.bands_per_chunk", p.BandsPerChunk)
	v.SetDefault("fingerprint.frame_size", p.FrameSize)

	v.SetDefault("cache.backend", string(cache.BackendPebble))
	v.SetDefault("cache.path", defaultCachePath())
	v.SetDefault("cache.memory_ttl", 10*time.Minute)

	v.SetDefault("ffmpeg.ffmpeg_path", f.FFmpegPath)
	v.SetDefault("ffmpeg.ffprobe_path", f.FFprobePath)
	v.SetDefault("ffmpeg.spawn_rate", f.SpawnRate)
	v.SetDefault("ffmpeg.spawn_burst", f.SpawnBurst)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("scan.extensions", SupportedExtensions)
	v.SetDefault("scan.workers", runtime.NumCPU())
	v.SetDefault("scan.debounce", 2*time.Second)

	v.SetDefault("metrics.textfile", "")
}

// Load applies defaults and environment overrides to v, decodes it and
// validates the result.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrInvalidConfig, err)
	}
	for i, ext := range cfg.Scan.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Scan.Extensions[i] = ext
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InitConfig loads the global viper instance into AppConfig.
func InitConfig() error {
	cfg, err := Load(viper.GetViper())
	if err != nil {
		return err
	}
	AppConfig = *cfg
	return nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	if err := c.AnalyzerOptions().Validate(); err != nil {
		return err
	}
	switch cache.Backend(strings.ToLower(string(c.Cache.Backend))) {
	case cache.BackendPebble, cache.BackendBadger:
		if c.Cache.Path == "" {
			return fmt.Errorf("%w: cache.path is required for the %s backend", failure.ErrInvalidConfig, c.Cache.Backend)
		}
	case cache.BackendMemory, cache.BackendNone:
	default:
		return fmt.Errorf("%w: unknown cache backend %q", failure.ErrInvalidConfig, c.Cache.Backend)
	}
	if c.FFmpeg.FFmpegPath == "" || c.FFmpeg.FFprobePath == "" {
		return fmt.Errorf("%w: ffmpeg and ffprobe paths must be set", failure.ErrInvalidConfig)
	}
	if len(c.Scan.Extensions) == 0 {
		return fmt.Errorf("%w: scan.extensions is empty", failure.ErrInvalidConfig)
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("%w: scan.workers must be at least 1", failure.ErrInvalidConfig)
	}
	return nil
}

// AnalyzerOptions projects the config onto one batch request. Progress is
// left for the caller.
func (c *Config) AnalyzerOptions() analyzer.Options {
	return analyzer.Options{
		Threshold:      c.Analysis.Threshold,
		MaxConcurrency: c.Analysis.MaxConcurrency,
		MaxExtractions: c.Analysis.MaxExtractions,
		Timeouts:       c.Analysis.Timeouts,
		Params:         c.Fingerprint,
		SkipQuality:    c.Analysis.SkipQuality,
		EnvelopeWidth:  c.Analysis.EnvelopeWidth,
	}
}

// FingerprintParams returns the configured generation settings.
func (c *Config) FingerprintParams() fingerprint.Params {
	return c.Fingerprint
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", ".beat-organizer-cache")
	}
	return filepath.Join(dir, "beat-organizer", "analysis")
}
