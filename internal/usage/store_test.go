package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lexiroute/lexiroute/internal/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func record(endpointID string, success bool, latencyMs float64, at time.Time) dispatch.Record {
	return dispatch.Record{
		RequestID:  "req-1",
		EndpointID: endpointID,
		Attempt:    1,
		Success:    success,
		LatencyMs:  latencyMs,
		Timestamp:  at,
	}
}

func TestStoreSummary(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	store.RecordDispatch(ctx, record("a", true, 100, now))
	store.RecordDispatch(ctx, record("a", true, 300, now))
	store.RecordDispatch(ctx, record("a", false, 0, now))
	store.RecordDispatch(ctx, record("b", true, 50, now))

	summary, err := store.Summary(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, summary, 2)

	a := summary[0]
	assert.Equal(t, "a", a.EndpointID)
	assert.Equal(t, int64(3), a.Total)
	assert.Equal(t, int64(2), a.Success)
	assert.Equal(t, int64(1), a.Failure)
	assert.InDelta(t, 200.0, a.AvgLatencyMs, 1e-6, "failures are excluded from the latency average")

	b := summary[1]
	assert.Equal(t, "b", b.EndpointID)
	assert.Equal(t, int64(1), b.Total)
}

func TestStoreSummarySince(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	store.RecordDispatch(ctx, record("a", true, 100, old))
	store.RecordDispatch(ctx, record("a", true, 100, recent))

	summary, err := store.Summary(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, int64(1), summary[0].Total)
}

func TestStoreRecordSurvivesCancelledContext(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Recording is detached from the caller's lifetime: a dispatch that was
	// cancelled still leaves its audit row.
	store.RecordDispatch(ctx, record("a", false, 10, time.Now()))

	summary, err := store.Summary(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, int64(1), summary[0].Failure)
}

func TestNilStoreIsSafe(t *testing.T) {
	var nilStore *Store
	assert.NoError(t, nilStore.Close())
	nilStore.RecordDispatch(context.Background(), dispatch.Record{})
}
