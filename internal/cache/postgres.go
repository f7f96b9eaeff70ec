package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool, for teams sharing one cache
// across machines.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool and verifies
// connectivity. An unreachable store fails fast at startup.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse postgres config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "cache: create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "cache: ping postgres")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS resolutions (
	fingerprint   TEXT PRIMARY KEY,
	outcome       TEXT NOT NULL,
	website       TEXT NOT NULL DEFAULT '',
	place_id      TEXT NOT NULL DEFAULT '',
	maps_url      TEXT NOT NULL DEFAULT '',
	rating        DOUBLE PRECISION NOT NULL DEFAULT 0,
	reviews       INTEGER NOT NULL DEFAULT 0,
	source        TEXT NOT NULL DEFAULT 'none',
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	match_method  TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	input_path   TEXT NOT NULL,
	total        INTEGER NOT NULL,
	resolved     INTEGER NOT NULL,
	cache_hits   INTEGER NOT NULL,
	errors       INTEGER NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolutions_outcome ON resolutions(outcome);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "cache: migrate postgres")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT fingerprint, outcome, website, place_id, maps_url, rating, reviews, source, confidence, match_method, error_message, updated_at
		 FROM resolutions WHERE fingerprint = $1`,
		fingerprint,
	)

	var e model.CacheEntry
	err := row.Scan(&e.Fingerprint, &e.Outcome, &e.Website, &e.PlaceID, &e.MapsURL,
		&e.Rating, &e.Reviews, &e.Source, &e.Confidence, &e.MatchMethod, &e.ErrorMessage, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: get")
	}
	return &e, nil
}

func (s *PostgresStore) Put(ctx context.Context, entry model.CacheEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO resolutions (fingerprint, outcome, website, place_id, maps_url, rating, reviews, source, confidence, match_method, error_message, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (fingerprint) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			website = EXCLUDED.website,
			place_id = EXCLUDED.place_id,
			maps_url = EXCLUDED.maps_url,
			rating = EXCLUDED.rating,
			reviews = EXCLUDED.reviews,
			source = EXCLUDED.source,
			confidence = EXCLUDED.confidence,
			match_method = EXCLUDED.match_method,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
		 WHERE resolutions.outcome = $13`,
		entry.Fingerprint, string(entry.Outcome), entry.Website, entry.PlaceID, entry.MapsURL,
		entry.Rating, entry.Reviews,
		string(entry.Source), entry.Confidence, string(entry.MatchMethod), entry.ErrorMessage,
		touchTime(entry.UpdatedAt), string(model.OutcomeError),
	)
	return eris.Wrap(err, "cache: put")
}

func (s *PostgresStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM resolutions WHERE fingerprint = $1)`, fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "cache: exists")
	}
	return exists, nil
}

func (s *PostgresStore) Fingerprints(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT fingerprint FROM resolutions WHERE outcome != $1`, string(model.OutcomeError),
	)
	if err != nil {
		return nil, eris.Wrap(err, "cache: list fingerprints")
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, eris.Wrap(err, "cache: scan fingerprint")
		}
		set[fp] = true
	}
	return set, eris.Wrap(rows.Err(), "cache: iterate fingerprints")
}

func (s *PostgresStore) Invalidate(ctx context.Context, fingerprint string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM resolutions WHERE fingerprint = $1`, fingerprint,
	)
	return eris.Wrap(err, "cache: invalidate")
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE resolutions, runs`); err != nil {
		return eris.Wrap(err, "cache: reset")
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT outcome, COUNT(*) FROM resolutions GROUP BY outcome`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "cache: stats")
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, eris.Wrap(err, "cache: scan stats")
		}
		stats.Total += n
		switch model.Outcome(outcome) {
		case model.OutcomeFound:
			stats.Found = n
		case model.OutcomeNotFound:
			stats.NotFound = n
		case model.OutcomeError:
			stats.Errors = n
		}
	}
	return stats, eris.Wrap(rows.Err(), "cache: iterate stats")
}

func (s *PostgresStore) RecordRun(ctx context.Context, run model.RunSummary) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, input_path, total, resolved, cache_hits, errors, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.InputPath, run.Total, run.Resolved, run.CacheHits, run.Errors,
		run.StartedAt.UTC(), run.CompletedAt.UTC(),
	)
	return eris.Wrap(err, "cache: record run")
}

var _ Store = (*PostgresStore)(nil)
