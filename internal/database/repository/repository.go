// Package repository holds one repository per entity. Repositories trust
// their input types; enum violations surface as SQLite CHECK errors.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jask/arkark/internal/database"
)

var (
	// ErrNotFound is returned when an operation needs a row that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransaction is returned for a negative amount or a transfer
	// destination that does not match the transaction type.
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Page limits list queries.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Nullable is a patch field for a column that may be set to NULL. The zero
// value means "leave unchanged".
type Nullable[T any] struct {
	set bool
	val *T
}

// Value sets the column to v.
func Value[T any](v T) Nullable[T] { return Nullable[T]{set: true, val: &v} }

// Clear sets the column to NULL.
func Clear[T any]() Nullable[T] { return Nullable[T]{set: true} }

func (n Nullable[T]) arg() any {
	if n.val == nil {
		return nil
	}
	return *n.val
}

type assignment struct {
	column string
	value  any
}

// assignments is the SET list of an update; columns come only from the
// enumerated patch mappings in this package.
type assignments []assignment

func (as assignments) add(column string, value any) assignments {
	return append(as, assignment{column: column, value: value})
}

// update applies as to table row id. With touch the updated_at column is
// refreshed. It reports ErrNotFound when no row matched.
func update(ctx context.Context, db DBTX, table, id string, as assignments, touch bool) error {
	if len(as) == 0 {
		return nil
	}
	if touch {
		as = as.add("updated_at", database.Timestamp())
	}
	sets := make([]string, len(as))
	args := make([]any, 0, len(as)+1)
	for i, a := range as {
		sets[i] = a.column + " = ?"
		args = append(args, a.value)
	}
	args = append(args, id)
	res, err := db.ExecContext(ctx, "UPDATE "+table+" SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update %s %s: %w", table, id, ErrNotFound)
	}
	return nil
}

// scanner handles both Row and Rows.
type scanner interface {
	Scan(dest ...any) error
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullable converts an optional value to a driver argument.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// mustGet turns a missing read-after-write row into ErrNotFound.
func mustGet[T any](v *T, err error, what, id string) (*T, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return v, nil
}
