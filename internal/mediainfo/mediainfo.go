// file: internal/mediainfo/mediainfo.go
// version: 2.0.0
// guid: f1e2d3c4-b5a6-7c8d-9e0f-1a2b3c4d5e6f

package mediainfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// MediaInfo holds technical audio stream information. Fields a reader could
// not determine are left zero; nothing is guessed from the extension.
type MediaInfo struct {
	Format          string  `json:"format" yaml:"format"`
	Codec           string  `json:"codec" yaml:"codec"`
	Lossless        bool    `json:"lossless" yaml:"lossless"`
	Bitrate         int     `json:"bitrate,omitempty" yaml:"bitrate,omitempty"` // kbps
	SampleRate      int     `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	Channels        int     `json:"channels,omitempty" yaml:"channels,omitempty"`
	BitDepth        int     `json:"bit_depth,omitempty" yaml:"bit_depth,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
	Quality         string  `json:"quality,omitempty" yaml:"quality,omitempty"`
}

// Complete reports whether the stream parameters the engine relies on are
// known.
func (m *MediaInfo) Complete() bool {
	return m.Codec != "" && m.SampleRate > 0 && m.DurationSeconds > 0 && (m.Lossless || m.Bitrate > 0)
}

// Merge fills fields that are still zero from other.
func (m *MediaInfo) Merge(other *MediaInfo) {
	if other == nil {
		return
	}
	if m.Format == "" {
		m.Format = other.Format
	}
	if m.Codec == "" {
		m.Codec = other.Codec
		m.Lossless = other.Lossless
	}
	if m.Bitrate == 0 {
		m.Bitrate = other.Bitrate
	}
	if m.SampleRate == 0 {
		m.SampleRate = other.SampleRate
	}
	if m.Channels == 0 {
		m.Channels = other.Channels
	}
	if m.BitDepth == 0 {
		m.BitDepth = other.BitDepth
	}
	if m.DurationSeconds == 0 {
		m.DurationSeconds = other.DurationSeconds
	}
	m.Quality = generateQualityString(m)
}

// Extract reads stream information from an audio file using the native
// container readers. WAV, FLAC and MP3 are read fully; other containers are
// only identified and need a probe to complete.
func Extract(filePath string) (*MediaInfo, error) {
	info := &MediaInfo{Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")}

	var err error
	switch info.Format {
	case "wav", "wave":
		err = extractWAVInfo(filePath, info)
	case "flac":
		err = extractFLACInfo(filePath, info)
	case "mp3":
		err = extractMP3Info(filePath, info)
	default:
		err = identify(filePath, info)
	}
	if err != nil {
		return nil, err
	}

	info.Quality = generateQualityString(info)
	return info, nil
}

func extractWAVInfo(filePath string, info *MediaInfo) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return fmt.Errorf("%s: not a valid WAV file", filePath)
	}
	info.Codec = "PCM"
	if d.WavAudioFormat == 3 {
		info.Codec = "PCM float"
	}
	info.Lossless = true
	info.SampleRate = int(d.SampleRate)
	info.Channels = int(d.NumChans)
	info.BitDepth = int(d.BitDepth)
	info.Bitrate = info.SampleRate * info.BitDepth * info.Channels / 1000

	if err := d.FwdToPCM(); err != nil {
		return fmt.Errorf("%s: no PCM data: %w", filePath, err)
	}
	if frameBytes := info.Channels * info.BitDepth / 8; frameBytes > 0 && info.SampleRate > 0 {
		info.DurationSeconds = float64(d.PCMLen()) / float64(frameBytes) / float64(info.SampleRate)
	}
	return nil
}

func extractFLACInfo(filePath string, info *MediaInfo) error {
	stream, err := flac.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to read FLAC stream info: %w", err)
	}
	defer stream.Close()

	si := stream.Info
	info.Codec = "FLAC"
	info.Lossless = true
	info.SampleRate = int(si.SampleRate)
	info.Channels = int(si.NChannels)
	info.BitDepth = int(si.BitsPerSample)
	if si.SampleRate > 0 {
		info.DurationSeconds = float64(si.NSamples) / float64(si.SampleRate)
	}
	if st, err := os.Stat(filePath); err == nil && info.DurationSeconds > 0 {
		info.Bitrate = int(float64(st.Size()) * 8 / info.DurationSeconds / 1000)
	}
	return nil
}

func extractMP3Info(filePath string, info *MediaInfo) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	d, err := mp3.NewDecoder(f)
	if err != nil {
		return fmt.Errorf("failed to decode MP3 header: %w", err)
	}
	info.Codec = "MP3"
	info.SampleRate = d.SampleRate()
	// go-mp3 always decodes to 16-bit stereo, 4 bytes per frame
	if n := d.Length(); n > 0 && info.SampleRate > 0 {
		info.DurationSeconds = float64(n/4) / float64(info.SampleRate)
	}
	if st, err := f.Stat(); err == nil && info.DurationSeconds > 0 {
		info.Bitrate = int(float64(st.Size()) * 8 / info.DurationSeconds / 1000)
	}
	return nil
}

// identify detects the container of formats without a native reader.
func identify(filePath string, info *MediaInfo) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	// unidentified containers (AIFF, raw ADTS, ...) are left to the probe
	_, fileType, err := tag.Identify(f)
	if err != nil {
		return nil
	}
	switch fileType {
	case tag.OGG:
		if info.Format != "opus" {
			info.Codec = "Vorbis"
		}
	case tag.FLAC:
		info.Codec, info.Lossless = "FLAC", true
	case tag.ALAC:
		info.Codec, info.Lossless = "ALAC", true
	case tag.MP3:
		info.Codec = "MP3"
	}
	return nil
}

// NormalizeCodec maps a probe codec name to the display name used here and
// reports whether it is lossless.
func NormalizeCodec(name string) (string, bool) {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "pcm_f"):
		return "PCM float", true
	case strings.HasPrefix(name, "pcm_"):
		return "PCM", true
	}
	switch name {
	case "flac":
		return "FLAC", true
	case "alac":
		return "ALAC", true
	case "wavpack":
		return "WavPack", true
	case "mp3", "mp3float":
		return "MP3", false
	case "aac":
		return "AAC", false
	case "vorbis":
		return "Vorbis", false
	case "opus":
		return "Opus", false
	default:
		return strings.ToUpper(name), false
	}
}

func generateQualityString(info *MediaInfo) string {
	switch {
	case info.Lossless && info.BitDepth > 0:
		sampleRateKHz := float64(info.SampleRate) / 1000.0
		return fmt.Sprintf("%s Lossless (%d-bit/%.1fkHz)", info.Codec, info.BitDepth, sampleRateKHz)
	case info.Lossless:
		return info.Codec + " Lossless"
	case info.Bitrate > 0:
		return fmt.Sprintf("%dkbps %s", info.Bitrate, info.Codec)
	default:
		return info.Codec
	}
}
