// Package postgres stores snapshots, facts, alerts and council logs in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"arc-backend/internal/logger"
	"arc-backend/internal/models"
	"arc-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Compile-time check to ensure PostgresStore implements the store contracts
var (
	_ store.BlobStore  = (*PostgresStore)(nil)
	_ store.FactStore  = (*PostgresStore)(nil)
	_ store.AlertStore = (*PostgresStore)(nil)

	_ store.CouncilLogStore = (*PostgresStore)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    key        TEXT PRIMARY KEY,
    data       BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS facts (
    id         UUID PRIMARY KEY,
    content    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS alerts (
    id         UUID PRIMARY KEY,
    content    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS council_logs (
    id         UUID PRIMARY KEY,
    session_id TEXT NOT NULL,
    events     JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS facts_created_at_idx ON facts (created_at);
CREATE INDEX IF NOT EXISTS alerts_created_at_idx ON alerts (created_at);
CREATE INDEX IF NOT EXISTS council_logs_session_idx ON council_logs (session_id, created_at);
`

type PostgresStore struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, log: logger.Component("PostgresStore")}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		s.logPgError("Migrate", err)
		return fmt.Errorf("database error applying schema: %w", err)
	}
	return nil
}

// Get returns the snapshot bytes for key, or store.ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM snapshots WHERE key = $1`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		s.log.Error().Err(err).Str("key", key).Msg("Get: failed to query snapshot")
		return nil, fmt.Errorf("database error fetching snapshot: %w", err)
	}
	return data, nil
}

// Put upserts the snapshot bytes for key.
func (s *PostgresStore) Put(ctx context.Context, key string, data []byte) error {
	query := `
		INSERT INTO snapshots (key, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`

	if _, err := s.db.Exec(ctx, query, key, data); err != nil {
		s.logPgError("Put", err)
		return fmt.Errorf("database error saving snapshot: %w", err)
	}
	s.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("Put: snapshot saved")
	return nil
}

func (s *PostgresStore) AddFact(ctx context.Context, content string) (*models.Fact, error) {
	f := &models.Fact{ID: uuid.New(), Content: content}
	err := s.db.QueryRow(ctx,
		`INSERT INTO facts (id, content) VALUES ($1, $2) RETURNING created_at`,
		f.ID, f.Content,
	).Scan(&f.CreatedAt)
	if err != nil {
		s.logPgError("AddFact", err)
		return nil, fmt.Errorf("database error creating fact: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) ListFacts(ctx context.Context, limit int) ([]models.Fact, error) {
	query := `
		SELECT id, content, created_at FROM (
			SELECT id, content, created_at FROM facts
			ORDER BY created_at DESC
			LIMIT $1
		) recent
		ORDER BY created_at ASC`

	// LIMIT NULL means no limit
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.db.Query(ctx, query, lim)
	if err != nil {
		s.logPgError("ListFacts", err)
		return nil, fmt.Errorf("database error listing facts: %w", err)
	}
	facts, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Fact])
	if err != nil {
		return nil, fmt.Errorf("database error scanning facts: %w", err)
	}
	return facts, nil
}

func (s *PostgresStore) LogAlert(ctx context.Context, content string) (*models.Alert, error) {
	a := &models.Alert{ID: uuid.New(), Content: content}
	err := s.db.QueryRow(ctx,
		`INSERT INTO alerts (id, content) VALUES ($1, $2) RETURNING created_at`,
		a.ID, a.Content,
	).Scan(&a.CreatedAt)
	if err != nil {
		s.logPgError("LogAlert", err)
		return nil, fmt.Errorf("database error logging alert: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) LastAlert(ctx context.Context) (*models.Alert, error) {
	a := &models.Alert{}
	err := s.db.QueryRow(ctx,
		`SELECT id, content, created_at FROM alerts ORDER BY created_at DESC LIMIT 1`,
	).Scan(&a.ID, &a.Content, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		s.log.Error().Err(err).Msg("LastAlert: failed to query alert")
		return nil, fmt.Errorf("database error fetching last alert: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) SaveCouncilLog(ctx context.Context, sessionID string, events []models.CouncilEvent) (*models.CouncilLog, error) {
	if events == nil {
		events = []models.CouncilEvent{}
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("failed to encode council events: %w", err)
	}

	l := &models.CouncilLog{ID: uuid.New(), SessionID: sessionID, Events: events}
	err = s.db.QueryRow(ctx,
		`INSERT INTO council_logs (id, session_id, events) VALUES ($1, $2, $3) RETURNING created_at`,
		l.ID, l.SessionID, string(raw),
	).Scan(&l.CreatedAt)
	if err != nil {
		s.logPgError("SaveCouncilLog", err)
		return nil, fmt.Errorf("database error saving council log: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) LastCouncilLog(ctx context.Context) (*models.CouncilLog, error) {
	return s.queryCouncilLog(ctx, "LastCouncilLog",
		`SELECT id, session_id, events, created_at FROM council_logs
		 ORDER BY created_at DESC LIMIT 1`)
}

func (s *PostgresStore) CouncilLog(ctx context.Context, sessionID string) (*models.CouncilLog, error) {
	return s.queryCouncilLog(ctx, "CouncilLog",
		`SELECT id, session_id, events, created_at FROM council_logs
		 WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1`, sessionID)
}

func (s *PostgresStore) queryCouncilLog(ctx context.Context, op, query string, args ...any) (*models.CouncilLog, error) {
	l := &models.CouncilLog{}
	var raw []byte
	err := s.db.QueryRow(ctx, query, args...).Scan(&l.ID, &l.SessionID, &raw, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		s.log.Error().Err(err).Str("op", op).Msg("failed to query council log")
		return nil, fmt.Errorf("database error fetching council log: %w", err)
	}
	if err := json.Unmarshal(raw, &l.Events); err != nil {
		return nil, fmt.Errorf("failed to decode council events: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) logPgError(op string, err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		s.log.Error().Str("op", op).Str("code", pgErr.Code).Str("detail", pgErr.Detail).
			Msg(pgErr.Message)
		return
	}
	s.log.Error().Str("op", op).Err(err).Msg("database error")
}
