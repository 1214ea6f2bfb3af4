// file: internal/mediainfo/tier.go
// version: 1.0.0
// guid: 31709a0c-b4bc-4a66-93ae-94114f07e5a9

package mediainfo

// Tier classes, ordered from most to least preferred.
const (
	ClassLossless       = "lossless"
	ClassHighBitrate    = "high-bitrate lossy"
	ClassLowBitrate     = "low-bitrate lossy"
	ClassUnknown        = "unknown"
	highBitrateMinKbps  = 256
	losslessTierMinimum = 90
)

// GetQualityTier returns a numeric quality tier for comparison. Higher is
// better; 0 means the format could not be determined.
func GetQualityTier(info *MediaInfo) int {
	if info == nil || info.Codec == "" {
		return 0
	}
	if info.Lossless {
		if info.BitDepth >= 24 {
			return 100
		}
		return losslessTierMinimum
	}

	switch {
	case info.Bitrate >= 320:
		return 80
	case info.Bitrate >= highBitrateMinKbps:
		return 70
	case info.Bitrate >= 192:
		return 60
	case info.Bitrate >= 128:
		return 50
	case info.Bitrate > 0:
		return 30
	default:
		return 10
	}
}

// TierClass names the preference class of a tier.
func TierClass(tier int) string {
	switch {
	case tier >= losslessTierMinimum:
		return ClassLossless
	case tier >= 70:
		return ClassHighBitrate
	case tier > 0:
		return ClassLowBitrate
	default:
		return ClassUnknown
	}
}
