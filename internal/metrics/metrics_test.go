// file: internal/metrics/metrics_test.go
// version: 2.0.0
// guid: 7a8b9c0d-1e2f-3a4b-5c6d-7e8f9a0b1c2d

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationLifecycle(t *testing.T) {
	opType := "test_lifecycle"
	before := testutil.ToFloat64(operationCompleted.WithLabelValues(opType))

	IncOperationStarted(opType)
	ObserveOperationDuration(opType, 10*time.Millisecond)
	IncOperationCompleted(opType)

	assert.Equal(t, before+1, testutil.ToFloat64(operationCompleted.WithLabelValues(opType)))
	assert.Positive(t, testutil.CollectAndCount(operationDuration, namespace+"_operation_duration_seconds"))
}

func TestAnalysisCounters(t *testing.T) {
	hits := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	decode := testutil.ToFloat64(fileFailures.WithLabelValues("DecodeFailure"))
	cmp := testutil.ToFloat64(comparisons)

	IncCacheLookup("hit")
	IncCacheLookup("hit")
	IncFailure("DecodeFailure")
	AddComparisons(12)
	IncFileOutcome("fingerprinted")
	ObserveTool("ffmpeg", 250*time.Millisecond)

	assert.Equal(t, hits+2, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, decode+1, testutil.ToFloat64(fileFailures.WithLabelValues("DecodeFailure")))
	assert.Equal(t, cmp+12, testutil.ToFloat64(comparisons))
}

func TestGauges(t *testing.T) {
	SetDuplicateGroups(4)
	SetWastedBytes(1 << 30)
	assert.Equal(t, 4.0, testutil.ToFloat64(groupsGauge))
	assert.Equal(t, float64(1<<30), testutil.ToFloat64(wastedBytesGauge))
}

func TestWriteTextfile(t *testing.T) {
	SetDuplicateGroups(7)
	path := filepath.Join(t.TempDir(), "beat_organizer.prom")
	require.NoError(t, WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "beat_organizer_duplicate_groups 7")

	// Register is idempotent.
	assert.NotPanics(t, Register)
}
