// file: internal/failure/failure_test.go
// version: 1.0.0
// guid: af192c57-920e-4ef9-ad06-c5fe410558aa

package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"decode", fmt.Errorf("open x.mp3: %w", ErrDecodeFailure), KindDecodeFailure},
		{"short", fmt.Errorf("3s of audio: %w", ErrInsufficientSamples), KindInsufficientSamples},
		{"timeout inside decode", fmt.Errorf("%w: %w", ErrDecodeFailure, ErrExternalToolTimeout), KindExternalToolTimeout},
		{"params", ErrIncompatibleParameters, KindIncompatibleParameters},
		{"cache", fmt.Errorf("pebble: %w", ErrCacheUnavailable), KindCacheUnavailable},
		{"config", fmt.Errorf("threshold 120: %w", ErrInvalidConfig), KindInvalidConfig},
		{"canceled", fmt.Errorf("batch: %w", context.Canceled), KindCanceled},
		{"other", errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestExcludesFromClustering(t *testing.T) {
	assert.False(t, ExcludesFromClustering(nil))
	assert.False(t, ExcludesFromClustering(ErrCacheUnavailable))
	assert.True(t, ExcludesFromClustering(ErrDecodeFailure))
	assert.True(t, ExcludesFromClustering(ErrInsufficientSamples))
	assert.True(t, ExcludesFromClustering(ErrExternalToolTimeout))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("ffmpeg: %w", ErrExternalToolTimeout)))
	assert.False(t, Retryable(ErrDecodeFailure))
	assert.False(t, Retryable(nil))
}
