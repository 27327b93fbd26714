// internal/store/postgres.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Conn is the subset of *pgxpool.Pool the Postgres store needs.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres keeps rooms in the rooms table and guards writes with the row's
// version column.
type Postgres struct {
	db Conn
}

func NewPostgres(db Conn) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, code string, data []byte) error {
	q := `
		INSERT INTO rooms (code, doc, version, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (code) DO NOTHING
	`
	tag, err := s.db.Exec(ctx, q, code, string(data))
	if err != nil {
		return fmt.Errorf("create room %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}

func (s *Postgres) Load(ctx context.Context, code string) (Versioned, error) {
	var v Versioned
	err := s.db.QueryRow(ctx, `SELECT doc, version FROM rooms WHERE code = $1`, code).Scan(&v.Data, &v.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return Versioned{}, ErrNotFound
	}
	if err != nil {
		return Versioned{}, fmt.Errorf("load room %s: %w", code, err)
	}
	return v, nil
}

func (s *Postgres) CompareAndSwap(ctx context.Context, code string, version int64, data []byte) (int64, error) {
	q := `
		UPDATE rooms
		SET doc = $1, version = version + 1, updated_at = NOW()
		WHERE code = $2 AND version = $3
	`
	tag, err := s.db.Exec(ctx, q, string(data), code, version)
	if err != nil {
		return 0, fmt.Errorf("write room %s: %w", code, err)
	}
	if tag.RowsAffected() == 1 {
		return version + 1, nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)`, code).Scan(&exists); err != nil {
		return 0, fmt.Errorf("write room %s: %w", code, err)
	}
	if !exists {
		return 0, ErrNotFound
	}
	return 0, ErrConflict
}

func (s *Postgres) Delete(ctx context.Context, code string, version int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM rooms WHERE code = $1 AND version = $2`, code, version)
	if err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)`, code).Scan(&exists); err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	if exists {
		return ErrConflict
	}
	return nil
}

func (s *Postgres) Codes(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT code FROM rooms ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return codes, nil
}
