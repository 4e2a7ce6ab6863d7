// File: internal/scripts/postgres.go
package scripts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scriptfill/api/schemas"
)

// DBPool abstracts pgxpool.Pool so the store can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	sqlCreateTable = `
        CREATE TABLE IF NOT EXISTS scripts (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            content TEXT NOT NULL,
            note TEXT NOT NULL DEFAULT '',
            grp TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        );
    `
	sqlSelectScripts = `
        SELECT id, title, content, note, grp, created_at, updated_at
        FROM scripts
    `
	sqlUpsertScript = `
        INSERT INTO scripts (id, title, content, note, grp, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET
            title = EXCLUDED.title,
            content = EXCLUDED.content,
            note = EXCLUDED.note,
            grp = EXCLUDED.grp,
            updated_at = EXCLUDED.updated_at
        RETURNING created_at;
    `
	sqlDeleteScript = `DELETE FROM scripts WHERE id = $1;`
)

// PostgresStore keeps scripts in a PostgreSQL table.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

var _ Repository = (*PostgresStore)(nil)

// NewPostgresStore verifies the connection and creates the table if needed.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, sqlCreateTable); err != nil {
		return nil, fmt.Errorf("failed to create scripts table: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger.Named("store"), now: time.Now}, nil
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...interface{}) ([]schemas.Script, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scripts: %w", err)
	}
	defer rows.Close()

	var out []schemas.Script
	for rows.Next() {
		var sc schemas.Script
		if err := rows.Scan(&sc.ID, &sc.Title, &sc.Content, &sc.Note, &sc.Group, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan script row: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]schemas.Script, error) {
	return s.query(ctx, sqlSelectScripts+" ORDER BY grp, title, id;")
}

func (s *PostgresStore) Get(ctx context.Context, id string) (schemas.Script, error) {
	list, err := s.query(ctx, sqlSelectScripts+" WHERE id = $1;", id)
	if err != nil {
		return schemas.Script{}, err
	}
	if len(list) == 0 {
		return schemas.Script{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return list[0], nil
}

// Search filters in Go because the diacritic folding has no portable SQL
// equivalent.
func (s *PostgresStore) Search(ctx context.Context, query string) ([]schemas.Script, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(list, query), nil
}

type execQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (s *PostgresStore) upsert(ctx context.Context, q execQuerier, sc schemas.Script, now time.Time) (schemas.Script, error) {
	prepared, err := Prepare(sc, now)
	if err != nil {
		return sc, err
	}
	rows, err := q.Query(ctx, sqlUpsertScript,
		prepared.ID, prepared.Title, prepared.Content, prepared.Note, prepared.Group,
		prepared.CreatedAt, prepared.UpdatedAt)
	if err != nil {
		return sc, fmt.Errorf("failed to upsert script %s: %w", prepared.ID, err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&prepared.CreatedAt); err != nil {
			return sc, fmt.Errorf("failed to read stored script %s: %w", prepared.ID, err)
		}
	}
	if err := rows.Err(); err != nil {
		return sc, fmt.Errorf("failed to upsert script %s: %w", prepared.ID, err)
	}
	return prepared, nil
}

func (s *PostgresStore) Put(ctx context.Context, sc schemas.Script) (schemas.Script, error) {
	return s.upsert(ctx, s.pool, sc, s.now())
}

// Import writes the batch in one transaction; nothing is stored if any
// script fails.
func (s *PostgresStore) Import(ctx context.Context, batch []schemas.Script) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	now := s.now()
	for i, sc := range batch {
		if _, err := s.upsert(ctx, tx, sc, now); err != nil {
			s.rollback(ctx, tx)
			return 0, fmt.Errorf("script %d: %w", i, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		s.rollback(ctx, tx)
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(batch), nil
}

func (s *PostgresStore) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.log.Error("Failed to rollback transaction", zap.Error(err))
	}
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, sqlDeleteScript, id)
	if err != nil {
		return fmt.Errorf("failed to delete script %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
