// file: internal/analyzer/options.go
// version: 1.1.0
// guid: 1c7e4a92-5d3b-4f60-8e2a-9b6d0f3c7a15

package analyzer

import (
	"fmt"
	"runtime"
	"time"

	"github.com/jdfalk/beat-organizer/internal/cluster"
	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/fingerprint"
	"github.com/jdfalk/beat-organizer/internal/sysinfo"
)

// ProgressFunc is told about each finished file. Calls are serialized and
// never overlap.
type ProgressFunc func(completed, total int, currentFile string)

// Timeouts bound every call that can block on something outside the
// process.
type Timeouts struct {
	Extract  time.Duration `mapstructure:"extract"`
	Loudness time.Duration `mapstructure:"loudness"`
	Probe    time.Duration `mapstructure:"probe"`
	Cache    time.Duration `mapstructure:"cache"`
}

// Options is the immutable request of one batch.
type Options struct {
	Threshold      float64
	MaxConcurrency int
	// MaxExtractions caps concurrently running decoder subprocesses.
	MaxExtractions int
	Timeouts       Timeouts
	Params         fingerprint.Params
	// SkipQuality disables loudness measurement; every file is unscored.
	SkipQuality bool
	// EnvelopeWidth is the number of points in each group member's
	// comparison waveform. Zero disables it.
	EnvelopeWidth int
	Progress      ProgressFunc
}

// DefaultTimeouts returns the standard call timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Extract:  60 * time.Second,
		Loudness: 120 * time.Second,
		Probe:    30 * time.Second,
		Cache:    5 * time.Second,
	}
}

// DefaultOptions sizes the pool to the machine.
func DefaultOptions() Options {
	return Options{
		Threshold:      cluster.DefaultThreshold,
		MaxConcurrency: runtime.NumCPU(),
		MaxExtractions: sysinfo.ExtractionSlots(runtime.NumCPU()),
		Timeouts:       DefaultTimeouts(),
		Params:         fingerprint.DefaultParams(),
		EnvelopeWidth:  fingerprint.DefaultEnvelopeWidth,
	}
}

// Validate rejects options no batch can run with.
func (o Options) Validate() error {
	if err := (cluster.Options{Threshold: o.Threshold}).Validate(); err != nil {
		return err
	}
	if o.MaxConcurrency < 1 {
		return fmt.Errorf("%w: max concurrency must be at least 1, got %d", failure.ErrInvalidConfig, o.MaxConcurrency)
	}
	if o.MaxExtractions < 1 {
		return fmt.Errorf("%w: max extractions must be at least 1, got %d", failure.ErrInvalidConfig, o.MaxExtractions)
	}
	t := o.Timeouts
	if t.Extract <= 0 || t.Loudness <= 0 || t.Probe <= 0 || t.Cache <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", failure.ErrInvalidConfig)
	}
	if err := o.Params.Validate(); err != nil {
		return err
	}
	return o.Params.ValidateEnvelopeWidth(o.EnvelopeWidth)
}
