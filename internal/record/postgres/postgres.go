// Package postgres provides a PostgreSQL-backed implementation of
// [record.Store]. Finished sessions land in a drill_sessions table with the
// per-turn results as JSONB; quiz bests live in a quiz_bests table whose
// upsert keeps every column monotonic non-decreasing.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coldsoak/readback/internal/record"
)

// Compile-time interface check.
var _ record.Store = (*Store)(nil)

const ddl = `
CREATE TABLE IF NOT EXISTS drill_sessions (
    id               BIGSERIAL    PRIMARY KEY,
    scenario_id      TEXT         NOT NULL,
    scenario_label   TEXT         NOT NULL DEFAULT '',
    employee_id      TEXT         NOT NULL DEFAULT '',
    outcome          TEXT         NOT NULL,
    score_pct        DOUBLE PRECISION NOT NULL,
    duration_seconds DOUBLE PRECISION NOT NULL,
    turns            JSONB        NOT NULL DEFAULT '[]',
    recorded_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_drill_sessions_scenario_id
    ON drill_sessions (scenario_id);

CREATE INDEX IF NOT EXISTS idx_drill_sessions_recorded_at
    ON drill_sessions (recorded_at);

CREATE TABLE IF NOT EXISTS quiz_bests (
    mode       TEXT             PRIMARY KEY,
    accuracy   DOUBLE PRECISION NOT NULL DEFAULT 0,
    wpm        DOUBLE PRECISION NOT NULL DEFAULT 0,
    streak     INTEGER          NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ      NOT NULL DEFAULT now()
);
`

// Store is the PostgreSQL record store. All operations are safe for
// concurrent use; the store owns a single [pgxpool.Pool].
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection, and
// ensures the required tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("record postgres: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("record postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("record postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("record postgres: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveSession implements [record.Store].
func (s *Store) SaveSession(ctx context.Context, rec record.SessionRecord) error {
	turns, err := json.Marshal(rec.Turns)
	if err != nil {
		return fmt.Errorf("record postgres: marshal turns: %w", err)
	}

	const q = `
		INSERT INTO drill_sessions
		    (scenario_id, scenario_label, employee_id, outcome, score_pct, duration_seconds, turns, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, q,
		rec.ScenarioID,
		rec.ScenarioLabel,
		rec.EmployeeID,
		string(rec.Outcome),
		rec.ScorePct,
		rec.DurationSeconds,
		turns,
		rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("record postgres: save session: %w", err)
	}
	return nil
}

// SaveQuizBest implements [record.Store]. The upsert performs the monotonic
// merge in SQL: each column only ever moves upward, and updated_at changes
// only when something improved.
func (s *Store) SaveQuizBest(ctx context.Context, candidate record.QuizBest) error {
	const q = `
		INSERT INTO quiz_bests (mode, accuracy, wpm, streak, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mode) DO UPDATE SET
		    accuracy   = GREATEST(quiz_bests.accuracy, EXCLUDED.accuracy),
		    wpm        = GREATEST(quiz_bests.wpm,      EXCLUDED.wpm),
		    streak     = GREATEST(quiz_bests.streak,   EXCLUDED.streak),
		    updated_at = CASE
		        WHEN EXCLUDED.accuracy > quiz_bests.accuracy
		          OR EXCLUDED.wpm      > quiz_bests.wpm
		          OR EXCLUDED.streak   > quiz_bests.streak
		        THEN EXCLUDED.updated_at
		        ELSE quiz_bests.updated_at
		    END`

	_, err := s.pool.Exec(ctx, q,
		candidate.Mode,
		candidate.Accuracy,
		candidate.WPM,
		candidate.Streak,
		candidate.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("record postgres: save quiz best: %w", err)
	}
	return nil
}

// QuizBest implements [record.Store].
func (s *Store) QuizBest(ctx context.Context, mode string) (record.QuizBest, bool, error) {
	const q = `
		SELECT mode, accuracy, wpm, streak, updated_at
		FROM   quiz_bests
		WHERE  mode = $1`

	var b record.QuizBest
	err := s.pool.QueryRow(ctx, q, mode).Scan(&b.Mode, &b.Accuracy, &b.WPM, &b.Streak, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return record.QuizBest{}, false, nil
	}
	if err != nil {
		return record.QuizBest{}, false, fmt.Errorf("record postgres: quiz best: %w", err)
	}
	return b, true, nil
}

// RecentSessions returns up to limit finished sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]record.SessionRecord, error) {
	const q = `
		SELECT scenario_id, scenario_label, employee_id, outcome, score_pct, duration_seconds, turns, recorded_at
		FROM   drill_sessions
		ORDER  BY recorded_at DESC
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("record postgres: recent sessions: %w", err)
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (record.SessionRecord, error) {
		var rec record.SessionRecord
		var outcome string
		var turns []byte
		if err := row.Scan(
			&rec.ScenarioID, &rec.ScenarioLabel, &rec.EmployeeID, &outcome,
			&rec.ScorePct, &rec.DurationSeconds, &turns, &rec.RecordedAt,
		); err != nil {
			return record.SessionRecord{}, err
		}
		rec.Outcome = record.Outcome(outcome)
		if len(turns) > 0 {
			if err := json.Unmarshal(turns, &rec.Turns); err != nil {
				return record.SessionRecord{}, fmt.Errorf("decode turns: %w", err)
			}
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("record postgres: collect sessions: %w", err)
	}
	return recs, nil
}
