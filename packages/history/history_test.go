package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdspec/cmdspec/packages/metrics"
)

func TestStoreAppendAndRecent(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := t.Context()
	first := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	id1, err := store.Append(ctx, first, metrics.Summary{
		Passed: 3, Failed: 1, Duration: 2 * time.Second, P50: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, err := store.Append(ctx, second, metrics.Summary{Passed: 4, Skipped: 2})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	records, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, id2, records[0].ID, "newest first")
	assert.Equal(t, 4, records[0].Passed)
	assert.Equal(t, 2, records[0].Skipped)

	assert.Equal(t, id1, records[1].ID)
	assert.Equal(t, 1, records[1].Failed)
	assert.Equal(t, 2*time.Second, records[1].Duration)
	assert.Equal(t, 10*time.Millisecond, records[1].P50)
}

func TestRecentLimit(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := t.Context()
	base := time.Now()
	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, base.Add(time.Duration(i)*time.Minute), metrics.Summary{Passed: i})
		require.NoError(t, err)
	}

	records, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}
