//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/lensgate/lensgate/internal/config"
	"github.com/stretchr/testify/require"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenMemoryStore(t *testing.T) {
	store := openMemoryStore(t)
	require.Equal(t, "libsql", store.Driver())
}

func TestRecordAndListOutcomes(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	first := &OutcomeRecord{
		RequestID: "req-1",
		ServedBy:  "real",
		Source:    "openai",
		Model:     "gpt-4o-mini",
		Attempts:  2,
		Rotations: 1,
		Duration:  1200 * time.Millisecond,
		CreatedAt: time.Unix(1_700_000_000, 0),
	}
	require.NoError(t, store.RecordOutcome(ctx, first))

	second := &OutcomeRecord{
		RequestID: "req-2",
		ServedBy:  "degraded",
		Source:    "demo",
		Model:     "demo",
		Attempts:  3,
		Rotations: 2,
		Duration:  40 * time.Millisecond,
		ErrorKind: "ring_exhausted",
		CreatedAt: time.Unix(1_700_000_100, 0),
	}
	require.NoError(t, store.RecordOutcome(ctx, second))

	records, err := store.ListOutcomes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first
	require.Equal(t, "req-2", records[0].RequestID)
	require.Equal(t, "degraded", records[0].ServedBy)
	require.Equal(t, "ring_exhausted", records[0].ErrorKind)
	require.Equal(t, 40*time.Millisecond, records[0].Duration)

	require.Equal(t, "req-1", records[1].RequestID)
	require.Equal(t, "", records[1].ErrorKind)
	require.Equal(t, 2, records[1].Attempts)
	require.Equal(t, 1, records[1].Rotations)
}

func TestListOutcomesLimit(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordOutcome(ctx, &OutcomeRecord{
			RequestID: "req",
			ServedBy:  "real",
			Source:    "openai",
			Model:     "gpt-4o-mini",
			Attempts:  1,
			CreatedAt: time.Unix(int64(1_700_000_000+i), 0),
		}))
	}

	records, err := store.ListOutcomes(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
}

func TestRecordOutcomeValidation(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	require.Error(t, store.RecordOutcome(ctx, nil))
	require.Error(t, store.RecordOutcome(ctx, &OutcomeRecord{}))
}

func TestRecordAndListExhaustions(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	require.NoError(t, store.RecordExhaustion(ctx, 0, time.Unix(1_700_000_000, 0)))
	require.NoError(t, store.RecordExhaustion(ctx, 1, time.Unix(1_700_000_200, 0)))

	records, err := store.ListExhaustions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, 1, records[0].CredentialIndex)
	require.Equal(t, 0, records[1].CredentialIndex)
}
