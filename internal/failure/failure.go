// file: internal/failure/failure.go
// version: 1.0.0
// guid: f6d7cb1b-aa55-481e-8fe6-c2b112926303

// Package failure defines the error taxonomy shared by the analysis engine.
// Components wrap one of the sentinel errors with %w so callers can classify
// a failure with errors.Is or KindOf.
package failure

import (
	"context"
	"errors"
)

// Kind names a class of failure. It is the value stored in a batch's
// failures map.
type Kind string

const (
	KindDecodeFailure          Kind = "DecodeFailure"
	KindInsufficientSamples    Kind = "InsufficientSamples"
	KindIncompatibleParameters Kind = "IncompatibleParameters"
	KindExternalToolTimeout    Kind = "ExternalToolTimeout"
	KindCacheUnavailable       Kind = "CacheUnavailable"
	KindInvalidConfig          Kind = "InvalidConfig"
	KindCanceled               Kind = "Canceled"
	KindUnknown                Kind = "Unknown"
)

var (
	ErrDecodeFailure          = errors.New("decode failure")
	ErrInsufficientSamples    = errors.New("insufficient samples")
	ErrIncompatibleParameters = errors.New("incompatible fingerprint parameters")
	ErrExternalToolTimeout    = errors.New("external tool timeout")
	ErrCacheUnavailable       = errors.New("cache unavailable")
	ErrInvalidConfig          = errors.New("invalid configuration")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	// Order matters: a timeout wrapped inside a decode error is still a timeout.
	{ErrExternalToolTimeout, KindExternalToolTimeout},
	{ErrInsufficientSamples, KindInsufficientSamples},
	{ErrIncompatibleParameters, KindIncompatibleParameters},
	{ErrCacheUnavailable, KindCacheUnavailable},
	{ErrInvalidConfig, KindInvalidConfig},
	{ErrDecodeFailure, KindDecodeFailure},
	{context.Canceled, KindCanceled},
}

// KindOf classifies err. A nil error has no kind and returns "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// ExcludesFromClustering reports whether a file failing with err must be left
// out of clustering. Every per-file failure does, including timeouts and
// short input, which are reported distinctly but treated like decode errors.
func ExcludesFromClustering(err error) bool {
	switch KindOf(err) {
	case "", KindCacheUnavailable:
		return false
	default:
		return true
	}
}

// Retryable reports whether an operation failing with err may be attempted
// once more.
func Retryable(err error) bool {
	return errors.Is(err, ErrExternalToolTimeout)
}
