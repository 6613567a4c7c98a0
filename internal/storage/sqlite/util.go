package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/skeinhq/skein/internal/storage"
	"github.com/skeinhq/skein/internal/types"
)

var errNotInitialized = storage.ErrNotInitialized

// querier is the read subset shared by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer adds writes; satisfied by the same three types.
type execer interface {
	querier
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// wrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows into the typed not-found error.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, &types.NotFoundError{Kind: "row", ID: op})
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isBusy reports whether err is a SQLITE_BUSY/locked condition worth
// retrying.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// beginImmediate starts an IMMEDIATE transaction on a dedicated
// connection, retrying with exponential backoff while the write lock is
// held elsewhere. IMMEDIATE acquires the RESERVED lock up front so the
// read-then-write sequence inside the transaction is serialized against
// all other writers.
//
// Raw Exec is used because database/sql cannot express transaction modes
// in BeginTx.
func beginImmediate(ctx context.Context, conn *sql.Conn) error {
	bo := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(10*time.Millisecond),
		backoff.WithMaxInterval(250*time.Millisecond),
		backoff.WithMaxElapsedTime(10*time.Second),
	), ctx)
	return backoff.Retry(func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if isBusy(err) {
			return err
		}
		return backoff.Permanent(err)
	}, bo)
}

// withImmediate runs fn inside a BEGIN IMMEDIATE transaction on a
// dedicated connection. The transaction is rolled back unless fn returns
// nil. ROLLBACK uses a background context so cleanup happens even when
// ctx is already canceled.
func (s *Store) withImmediate(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediate(ctx, conn); err != nil {
		return fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

func strPtr(s string) *string { return &s }
