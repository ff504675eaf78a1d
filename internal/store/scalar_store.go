package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrNoResult means the query executed fine but produced no value: either
// zero rows, or a single NULL cell (e.g. SUM over an empty range). Distinct
// from a numeric zero and from an execution error.
var ErrNoResult = errors.New("query returned no result")

// ShapeError means the query violated the single-scalar contract.
type ShapeError struct {
	Rows    int
	Columns int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("query must return exactly one row and one column, got %d row(s) and %d column(s)", e.Rows, e.Columns)
}

type PostgresScalarStore struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresScalarStore(db *sql.DB, timeout time.Duration) *PostgresScalarStore {
	if db == nil {
		panic("db cannot be nil for PostgresScalarStore")
	}
	return &PostgresScalarStore{db: db, timeout: timeout}
}

// QueryScalar runs an already-validated read-only query on a dedicated
// connection scope and extracts the single scalar value. The connection is
// released on every exit path; the statement is bounded by the store's
// timeout and cancelled when the caller's context is.
func (pg *PostgresScalarStore) QueryScalar(ctx context.Context, query string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, pg.timeout)
	defer cancel()

	conn, err := pg.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("failed to read result columns: %w", err)
	}

	// A wrong column count breaks the contract even with zero rows.
	if len(cols) != 1 {
		rowCount := 0
		if rows.Next() {
			rowCount = 1
		}
		return 0, &ShapeError{Rows: rowCount, Columns: len(cols)}
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("failed to read result rows: %w", err)
		}
		return 0, ErrNoResult
	}

	var raw any
	if err := rows.Scan(&raw); err != nil {
		return 0, fmt.Errorf("failed to scan scalar value: %w", err)
	}

	if rows.Next() {
		return 0, &ShapeError{Rows: 2, Columns: len(cols)}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read result rows: %w", err)
	}

	return scalarToFloat(raw)
}

func scalarToFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, ErrNoResult
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric scalar value %q: %w", string(v), err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric scalar value %q: %w", v, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported scalar type %T", raw)
	}
}
