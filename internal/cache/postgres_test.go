package cache

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgres_Get_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM resolutions WHERE fingerprint = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Put_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("fp1", "found", "https://x.example", "place-1", "https://maps.example",
			4.5, 12, "places_api", 0.9, "name_address", "", pgxmock.AnyArg(), "error").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Put(context.Background(), model.CacheEntry{
		Fingerprint: "fp1",
		Outcome:     model.OutcomeFound,
		Website:     "https://x.example",
		PlaceID:     "place-1",
		MapsURL:     "https://maps.example",
		Rating:      4.5,
		Reviews:     12,
		Source:      model.SourcePlaces,
		Confidence:  0.9,
		MatchMethod: model.MethodNameAddress,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Exists(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("fp1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.Exists(context.Background(), "fp1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Fingerprints(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT fingerprint FROM resolutions WHERE outcome != \$1`).
		WithArgs("error").
		WillReturnRows(pgxmock.NewRows([]string{"fingerprint"}).AddRow("fp1").AddRow("fp2"))

	set, err := s.Fingerprints(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"fp1": true, "fp2": true}, set)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Invalidate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM resolutions WHERE fingerprint = \$1`).
		WithArgs("fp1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.Invalidate(context.Background(), "fp1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Stats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT outcome, COUNT\(\*\) FROM resolutions GROUP BY outcome`).
		WillReturnRows(pgxmock.NewRows([]string{"outcome", "count"}).
			AddRow("found", 5).
			AddRow("not_found", 2).
			AddRow("error", 1))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, stats.Total)
	assert.Equal(t, 5, stats.Found)
	assert.Equal(t, 2, stats.NotFound)
	assert.Equal(t, 1, stats.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", "permits.csv", 10, 7, 3, 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordRun(context.Background(), model.RunSummary{
		ID: "run-1", InputPath: "permits.csv", Total: 10, Resolved: 7, CacheHits: 3, Errors: 1,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
