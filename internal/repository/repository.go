package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicatePhone is returned by Create when the phone is already registered
	ErrDuplicatePhone = errors.New("phone already registered")
	// ErrVersionConflict is returned when a versioned write finds the parent
	// document changed (or gone) since it was read
	ErrVersionConflict = errors.New("document was modified concurrently")
)

// PgxIface is the subset of *pgxpool.Pool used by the postgres repositories,
// satisfied by pgxmock in tests
type PgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
