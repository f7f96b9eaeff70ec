package cache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func foundEntry(fp, website string) model.CacheEntry {
	return model.CacheEntry{
		Fingerprint: fp,
		Outcome:     model.OutcomeFound,
		Website:     website,
		PlaceID:     "place-1",
		MapsURL:     "https://maps.example/place-1",
		Rating:      4.2,
		Reviews:     87,
		Source:      model.SourcePlaces,
		Confidence:  0.91,
		MatchMethod: model.MethodNameAddress,
		UpdatedAt:   time.Now().UTC(),
	}
}

func TestSQLite_PutAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, foundEntry("fp1", "https://desertrose.example")))

	got, err := st.Get(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "https://desertrose.example", got.Website)
	assert.Equal(t, model.OutcomeFound, got.Outcome)
	assert.Equal(t, model.SourcePlaces, got.Source)
	assert.Equal(t, 4.2, got.Rating)
	assert.Equal(t, 87, got.Reviews)
	assert.InDelta(t, 0.91, got.Confidence, 1e-9)
}

func TestSQLite_Get_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Put_FirstFoundWins(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, foundEntry("fp1", "https://first.example")))

	// A later write for the same fingerprint must not clobber a Found entry.
	second := foundEntry("fp1", "https://second.example")
	require.NoError(t, st.Put(ctx, second))

	got, err := st.Get(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "https://first.example", got.Website)
}

func TestSQLite_Put_ErrorIsReplaceable(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, model.CacheEntry{
		Fingerprint:  "fp1",
		Outcome:      model.OutcomeError,
		Source:       model.SourceNone,
		ErrorMessage: "places_api: timeout",
	}))

	require.NoError(t, st.Put(ctx, foundEntry("fp1", "https://retry.example")))

	got, err := st.Get(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.OutcomeFound, got.Outcome)
	assert.Equal(t, "https://retry.example", got.Website)
	assert.Empty(t, got.ErrorMessage)
}

func TestSQLite_Put_NotFoundNotReplaced(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, model.CacheEntry{
		Fingerprint: "fp1",
		Outcome:     model.OutcomeNotFound,
		Source:      model.SourceWebSearch,
	}))

	require.NoError(t, st.Put(ctx, foundEntry("fp1", "https://late.example")))

	got, err := st.Get(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.OutcomeNotFound, got.Outcome)
	assert.Empty(t, got.Website)
}

func TestSQLite_Exists(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ok, err := st.Exists(ctx, "fp1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Put(ctx, foundEntry("fp1", "https://x.example")))

	ok, err = st.Exists(ctx, "fp1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLite_Fingerprints_ExcludesErrors(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, foundEntry("fp-found", "https://x.example")))
	require.NoError(t, st.Put(ctx, model.CacheEntry{
		Fingerprint: "fp-notfound", Outcome: model.OutcomeNotFound, Source: model.SourceNone,
	}))
	require.NoError(t, st.Put(ctx, model.CacheEntry{
		Fingerprint: "fp-error", Outcome: model.OutcomeError, Source: model.SourceNone,
	}))

	set, err := st.Fingerprints(ctx)
	require.NoError(t, err)
	assert.True(t, set["fp-found"])
	assert.True(t, set["fp-notfound"])
	assert.False(t, set["fp-error"])
}

func TestSQLite_Invalidate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, foundEntry("fp1", "https://x.example")))
	require.NoError(t, st.Invalidate(ctx, "fp1"))

	got, err := st.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ResetAndStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, foundEntry("fp1", "https://x.example")))
	require.NoError(t, st.Put(ctx, model.CacheEntry{
		Fingerprint: "fp2", Outcome: model.OutcomeNotFound, Source: model.SourceNone,
	}))
	require.NoError(t, st.Put(ctx, model.CacheEntry{
		Fingerprint: "fp3", Outcome: model.OutcomeError, Source: model.SourceNone,
	}))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Found)
	assert.Equal(t, 1, stats.NotFound)
	assert.Equal(t, 1, stats.Errors)

	require.NoError(t, st.Reset(ctx))

	stats, err = st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestSQLite_RecordRun(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.RecordRun(context.Background(), model.RunSummary{
		ID:          "run-1",
		InputPath:   "permits.csv",
		Total:       10,
		Resolved:    7,
		CacheHits:   3,
		Errors:      1,
		StartedAt:   time.Now().Add(-time.Minute),
		CompletedAt: time.Now(),
	})
	require.NoError(t, err)
}

func TestKeyed_ConcurrentPutsSameFingerprint(t *testing.T) {
	st := NewKeyed(newTestSQLiteStore(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.Put(ctx, foundEntry("fp-shared", "https://x.example"))
		}()
	}
	wg.Wait()

	got, err := st.Get(ctx, "fp-shared")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.OutcomeFound, got.Outcome)
}
