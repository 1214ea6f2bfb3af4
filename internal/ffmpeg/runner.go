// file: internal/ffmpeg/runner.go
// version: 1.1.0
// guid: 7d2a93a9-fdb4-4af8-9869-9141dd1b1f79

// Package ffmpeg adapts the ffmpeg and ffprobe command line tools to the
// decode, loudness and probe contracts of the analyzer.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/fingerprint"
	"golang.org/x/time/rate"
)

// Config holds ffmpeg-related configuration.
type Config struct {
	FFmpegPath  string  `mapstructure:"ffmpeg_path"`
	FFprobePath string  `mapstructure:"ffprobe_path"`
	SpawnRate   float64 `mapstructure:"spawn_rate"` // launches per second, 0 = unlimited
	SpawnBurst  int     `mapstructure:"spawn_burst"`
}

// DefaultConfig returns the default ffmpeg configuration.
func DefaultConfig() Config {
	return Config{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe", SpawnBurst: 4}
}

// Runner invokes ffmpeg and ffprobe. Every call runs under the caller's
// context: cancelling it kills the subprocess, and an expired deadline is
// reported as ErrExternalToolTimeout. A Runner is safe for concurrent use.
type Runner struct {
	cfg     Config
	limiter *rate.Limiter
}

// New creates a Runner.
func New(cfg Config) *Runner {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	r := &Runner{cfg: cfg}
	if cfg.SpawnRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.SpawnRate), max(1, cfg.SpawnBurst))
	}
	return r
}

// Check verifies that both tools can be executed.
func (r *Runner) Check(ctx context.Context) error {
	for _, bin := range []string{r.cfg.FFmpegPath, r.cfg.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: %s not found: %v", failure.ErrInvalidConfig, bin, err)
		}
		if _, _, err := r.run(ctx, bin, "-version"); err != nil {
			return fmt.Errorf("%s -version: %w", bin, err)
		}
	}
	return nil
}

// Extract decodes the leading MaxSeconds of path to native-endian float32
// PCM, resampled and band-limited per req. Leading silence is removed before
// the duration limit applies.
func (r *Runner) Extract(ctx context.Context, path string, req fingerprint.DecodeRequest) ([]float32, error) {
	args := []string{
		"-hide_banner", "-nostdin", "-v", "error",
		"-i", path,
		"-vn",
	}
	if req.MaxSeconds > 0 {
		args = append(args, "-t", strconv.Itoa(req.MaxSeconds))
	}
	if filter := decodeFilter(req); filter != "" {
		args = append(args, "-af", filter)
	}
	args = append(args,
		"-ac", strconv.Itoa(max(1, req.Channels)),
		"-ar", strconv.Itoa(req.SampleRate),
		"-f", "f32le",
		"pipe:1",
	)
	out, _, err := r.run(ctx, r.cfg.FFmpegPath, args...)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	samples := decodeF32LE(out)
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s decoded to no audio", failure.ErrDecodeFailure, path)
	}
	return samples, nil
}

func decodeFilter(req fingerprint.DecodeRequest) string {
	var parts []string
	if req.TrimBelowDB < 0 {
		parts = append(parts, "silenceremove=start_periods=1:start_threshold="+strconv.FormatFloat(req.TrimBelowDB, 'f', -1, 64)+"dB")
	}
	if req.LowHz > 0 {
		parts = append(parts, "highpass=f="+strconv.FormatFloat(req.LowHz, 'f', -1, 64))
	}
	if req.HighHz > 0 {
		parts = append(parts, "lowpass=f="+strconv.FormatFloat(req.HighHz, 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}

// decodeF32LE converts little-endian float32 bytes to samples. A trailing
// partial sample is dropped.
func decodeF32LE(raw []byte) []float32 {
	n := len(raw) / 4
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples
}

// run executes bin and classifies its failure.
func (r *Runner) run(ctx context.Context, bin string, args ...string) ([]byte, []byte, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, nil, classify(ctx, bin, err, nil)
		}
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil {
		return nil, stderr.Bytes(), classify(ctx, bin, err, stderr.Bytes())
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

func classify(ctx context.Context, bin string, err error, stderr []byte) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s did not finish in time", failure.ErrExternalToolTimeout, bin)
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", bin, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %s exited with %d: %s", failure.ErrDecodeFailure, bin, exitErr.ExitCode(), lastLine(stderr))
	}
	return fmt.Errorf("%w: %s: %v", failure.ErrDecodeFailure, bin, err)
}

func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
