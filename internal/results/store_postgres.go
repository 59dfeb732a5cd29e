package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/statquiz/internal/session"
)

const dbTimeout = 5 * time.Second

const schema = `CREATE TABLE IF NOT EXISTS quiz_results (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL,
	topic       TEXT NOT NULL,
	title       TEXT NOT NULL,
	source      TEXT NOT NULL,
	provider    TEXT,
	reason      TEXT NOT NULL,
	score       INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	time_limit  INTEGER NOT NULL,
	remaining   INTEGER NOT NULL,
	missed      JSONB NOT NULL DEFAULT '[]'::jsonb,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS quiz_results_ended_at_idx ON quiz_results (ended_at DESC);`

const selectColumns = `SELECT id::text, session_id, topic, title, source, provider, reason,
	score, total, time_limit, remaining, missed, started_at, ended_at
 FROM quiz_results`

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed result store and makes sure
// its table exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	s := &PostgresStore{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the results table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create results schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, r Record) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.EndedAt.IsZero() {
		r.EndedAt = time.Now()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = r.EndedAt
	}
	missed := r.Missed
	if missed == nil {
		missed = []string{}
	}
	missedJSON, err := json.Marshal(missed)
	if err != nil {
		return "", fmt.Errorf("marshal missed answers: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO quiz_results (id, session_id, topic, title, source, provider, reason,
		   score, total, time_limit, remaining, missed, started_at, ended_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14)
		 RETURNING id::text`,
		r.ID,
		r.SessionID,
		r.Topic,
		r.Title,
		r.Source,
		nullIfEmpty(r.Provider),
		string(r.Reason),
		r.Score,
		r.Total,
		r.TimeLimit,
		r.Remaining,
		string(missedJSON),
		r.StartedAt,
		r.EndedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert result: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := uuid.Validate(id); err != nil {
		return nil, ErrNotFound
	}
	r, err := scanRecord(s.pool.QueryRow(ctx, selectColumns+` WHERE id = $1::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, selectColumns+` ORDER BY ended_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		r          Record
		provider   *string
		reason     string
		missedJSON []byte
	)
	if err := row.Scan(
		&r.ID,
		&r.SessionID,
		&r.Topic,
		&r.Title,
		&r.Source,
		&provider,
		&reason,
		&r.Score,
		&r.Total,
		&r.TimeLimit,
		&r.Remaining,
		&missedJSON,
		&r.StartedAt,
		&r.EndedAt,
	); err != nil {
		return Record{}, err
	}
	if provider != nil {
		r.Provider = *provider
	}
	r.Reason = session.EndReason(reason)
	r.Missed = []string{}
	if len(missedJSON) > 0 {
		if err := json.Unmarshal(missedJSON, &r.Missed); err != nil {
			return Record{}, fmt.Errorf("decode missed answers: %w", err)
		}
	}
	return r, nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
