package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. This is the default
// backend: a single portable file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the cache database at the given path, configures WAL mode,
// and verifies integrity. A corrupt or unreadable store is returned as an
// error so the run fails fast instead of silently starting cold.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: integrity check")
	}
	if check != "ok" {
		db.Close()
		return nil, eris.Errorf("cache: store is corrupt (%s); rerun with an explicit cache reset to rebuild", check)
	}

	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS resolutions (
	fingerprint   TEXT PRIMARY KEY,
	outcome       TEXT NOT NULL,
	website       TEXT NOT NULL DEFAULT '',
	place_id      TEXT NOT NULL DEFAULT '',
	maps_url      TEXT NOT NULL DEFAULT '',
	rating        REAL NOT NULL DEFAULT 0,
	reviews       INTEGER NOT NULL DEFAULT 0,
	source        TEXT NOT NULL DEFAULT 'none',
	confidence    REAL NOT NULL DEFAULT 0,
	match_method  TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	input_path   TEXT NOT NULL,
	total        INTEGER NOT NULL,
	resolved     INTEGER NOT NULL,
	cache_hits   INTEGER NOT NULL,
	errors       INTEGER NOT NULL,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolutions_outcome ON resolutions(outcome);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "cache: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, outcome, website, place_id, maps_url, rating, reviews, source, confidence, match_method, error_message, updated_at
		 FROM resolutions WHERE fingerprint = ?`,
		fingerprint,
	)

	var e model.CacheEntry
	err := row.Scan(&e.Fingerprint, &e.Outcome, &e.Website, &e.PlaceID, &e.MapsURL,
		&e.Rating, &e.Reviews, &e.Source, &e.Confidence, &e.MatchMethod, &e.ErrorMessage, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: get")
	}
	return &e, nil
}

// Put inserts the entry, or replaces an existing one only when its outcome
// is Error. A Found or NotFound entry is never overwritten.
func (s *SQLiteStore) Put(ctx context.Context, entry model.CacheEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolutions (fingerprint, outcome, website, place_id, maps_url, rating, reviews, source, confidence, match_method, error_message, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
			outcome = excluded.outcome,
			website = excluded.website,
			place_id = excluded.place_id,
			maps_url = excluded.maps_url,
			rating = excluded.rating,
			reviews = excluded.reviews,
			source = excluded.source,
			confidence = excluded.confidence,
			match_method = excluded.match_method,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
		 WHERE resolutions.outcome = ?`,
		entry.Fingerprint, string(entry.Outcome), entry.Website, entry.PlaceID, entry.MapsURL,
		entry.Rating, entry.Reviews,
		string(entry.Source), entry.Confidence, string(entry.MatchMethod), entry.ErrorMessage,
		touchTime(entry.UpdatedAt), string(model.OutcomeError),
	)
	return eris.Wrap(err, "cache: put")
}

func (s *SQLiteStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM resolutions WHERE fingerprint = ?`, fingerprint,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "cache: exists")
	}
	return true, nil
}

func (s *SQLiteStore) Fingerprints(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint FROM resolutions WHERE outcome != ?`, string(model.OutcomeError),
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

func (s *SQLiteStore) Invalidate(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM resolutions WHERE fingerprint = ?`, fingerprint,
	)
	return eris.Wrap(err, "cache: invalidate")
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	for _, stmt := range []string{`DELETE FROM resolutions`, `DELETE FROM runs`} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "cache: reset")
		}
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx,
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

func (s *SQLiteStore) RecordRun(ctx context.Context, run model.RunSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_path, total, resolved, cache_hits, errors, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputPath, run.Total, run.Resolved, run.CacheHits, run.Errors,
		run.StartedAt.UTC(), run.CompletedAt.UTC(),
	)
	return eris.Wrap(err, "cache: record run")
}

var _ Store = (*SQLiteStore)(nil)

// touchTime normalizes zero timestamps so DATETIME columns never hold the
// zero value.
func touchTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
