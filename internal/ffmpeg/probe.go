// file: internal/ffmpeg/probe.go
// version: 1.0.0
// guid: c5b0e0a3-7e0e-4d7b-a5d6-2a1f9e4f8c12

package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/mediainfo"
)

type probeOutput struct {
	Streams []struct {
		CodecName        string `json:"codec_name"`
		SampleRate       string `json:"sample_rate"`
		Channels         int    `json:"channels"`
		BitsPerRawSample string `json:"bits_per_raw_sample"`
		BitsPerSample    int    `json:"bits_per_sample"`
		BitRate          string `json:"bit_rate"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// Probe reads stream parameters of the first audio stream with ffprobe.
func (r *Runner) Probe(ctx context.Context, path string) (mediainfo.MediaInfo, error) {
	out, _, err := r.run(ctx, r.cfg.FFprobePath,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name,sample_rate,channels,bits_per_raw_sample,bits_per_sample,bit_rate:format=duration,bit_rate,format_name",
		"-of", "json",
		path,
	)
	if err != nil {
		return mediainfo.MediaInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}
	info, err := parseProbe(out)
	if err != nil {
		return mediainfo.MediaInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}
	return info, nil
}

func parseProbe(raw []byte) (mediainfo.MediaInfo, error) {
	var p probeOutput
	if err := json.Unmarshal(raw, &p); err != nil {
		return mediainfo.MediaInfo{}, fmt.Errorf("%w: unreadable ffprobe output: %v", failure.ErrDecodeFailure, err)
	}
	if len(p.Streams) == 0 {
		return mediainfo.MediaInfo{}, fmt.Errorf("%w: no audio stream", failure.ErrDecodeFailure)
	}
	s := p.Streams[0]

	var info mediainfo.MediaInfo
	info.Codec, info.Lossless = mediainfo.NormalizeCodec(s.CodecName)
	if name, _, _ := strings.Cut(p.Format.FormatName, ","); name != "" {
		info.Format = name
	}
	info.SampleRate = atoi(s.SampleRate)
	info.Channels = s.Channels
	info.BitDepth = atoi(s.BitsPerRawSample)
	if info.BitDepth == 0 {
		info.BitDepth = s.BitsPerSample
	}
	bitRate := atoi(s.BitRate)
	if bitRate == 0 {
		bitRate = atoi(p.Format.BitRate)
	}
	info.Bitrate = bitRate / 1000
	if d, err := strconv.ParseFloat(p.Format.Duration, 64); err == nil {
		info.DurationSeconds = d
	}
	return info, nil
}

// atoi parses ffprobe numeric strings, treating "N/A" and blanks as zero.
func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
