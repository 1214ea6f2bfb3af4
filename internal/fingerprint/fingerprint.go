// file: internal/fingerprint/fingerprint.go
// version: 1.1.0
// guid: a6edf7d1-66b7-4597-94d9-cb792cae2617

// Package fingerprint turns the leading window of a decoded track into a
// fixed-length perceptual bitstring and compares bitstrings by Hamming
// distance.
package fingerprint

import (
	"fmt"
	"math"
	"math/bits"
	"strings"

	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/models"
)

// Fingerprint is an immutable perceptual summary of a file's opening audio.
type Fingerprint struct {
	Identity models.FileIdentity `json:"identity"`
	Params   Params              `json:"params"`
	// WindowSeconds is the analysed length. It is shorter than
	// Params.WindowSeconds for short files.
	WindowSeconds int      `json:"window_seconds"`
	BitLen        int      `json:"bit_len"`
	Bits          []uint64 `json:"bits"`
}

// Compat is the comparability key of a fingerprint. Fingerprints with
// different keys must never be compared.
type Compat struct {
	Params        Params
	WindowSeconds int
	BitLen        int
}

// Compat returns the fingerprint's comparability key.
func (f Fingerprint) Compat() Compat {
	return Compat{Params: f.Params, WindowSeconds: f.WindowSeconds, BitLen: f.BitLen}
}

// Short reports whether the file was shorter than the analysis window.
func (f Fingerprint) Short() bool {
	return f.WindowSeconds < f.Params.WindowSeconds
}

// Bit returns bit i.
func (f Fingerprint) Bit(i int) bool {
	return f.Bits[i/64]&(1<<(uint(i)%64)) != 0
}

// Validate checks the internal consistency of a fingerprint, for example one
// loaded from a cache.
func (f Fingerprint) Validate() error {
	if f.BitLen <= 0 || f.BitLen != f.Params.BitLen() {
		return fmt.Errorf("%w: %s has %d bits, params give %d", failure.ErrIncompatibleParameters, f.Identity.Path, f.BitLen, f.Params.BitLen())
	}
	if len(f.Bits) != wordsFor(f.BitLen) {
		return fmt.Errorf("%w: %s has %d words for %d bits", failure.ErrIncompatibleParameters, f.Identity.Path, len(f.Bits), f.BitLen)
	}
	if f.WindowSeconds <= 0 || f.WindowSeconds > f.Params.WindowSeconds {
		return fmt.Errorf("%w: %s window %ds outside 1..%d", failure.ErrIncompatibleParameters, f.Identity.Path, f.WindowSeconds, f.Params.WindowSeconds)
	}
	return nil
}

// String renders the bitstring as hex, most significant word first.
func (f Fingerprint) String() string {
	var sb strings.Builder
	for i := len(f.Bits) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "%016x", f.Bits[i])
	}
	return sb.String()
}

// Distance returns the Hamming distance between a and b. Fingerprints with
// different parameters, windows or lengths, and malformed ones, are rejected
// with ErrIncompatibleParameters.
func Distance(a, b Fingerprint) (int, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	if a.Compat() != b.Compat() || len(a.Bits) != len(b.Bits) {
		return 0, fmt.Errorf("%w: %s (%ds) vs %s (%ds)", failure.ErrIncompatibleParameters,
			a.Identity.Path, a.WindowSeconds, b.Identity.Path, b.WindowSeconds)
	}
	d := 0
	for i := range a.Bits {
		d += bits.OnesCount64(a.Bits[i] ^ b.Bits[i])
	}
	return d, nil
}

// Compare returns the similarity of a and b on a 0-100 scale.
func Compare(a, b Fingerprint) (float64, error) {
	d, err := Distance(a, b)
	if err != nil {
		return 0, err
	}
	return Similarity(d, a.BitLen), nil
}

// Similarity converts a Hamming distance into a 0-100 score.
func Similarity(distance, bitLen int) float64 {
	return 100 * (1 - float64(distance)/float64(bitLen))
}

// MaxDistance returns the largest Hamming distance whose similarity is still
// at or above threshold, or -1 when no distance qualifies.
func MaxDistance(threshold float64, bitLen int) int {
	d := int(math.Floor((100 - threshold) * float64(bitLen) / 100))
	d = max(-1, min(d, bitLen))
	for d+1 <= bitLen && Similarity(d+1, bitLen) >= threshold {
		d++
	}
	for d >= 0 && Similarity(d, bitLen) < threshold {
		d--
	}
	return d
}

func wordsFor(bitLen int) int {
	return (bitLen + 63) / 64
}
