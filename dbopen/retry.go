package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const maxAttempts = 3

// IsBusy reports whether err is an SQLite BUSY or locked condition.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func busyRetry(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.Delay(100 * time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsBusy),
		retry.LastErrorOnly(true),
	}
}

// RunTx runs fn in a transaction, retrying the whole transaction on BUSY.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return retry.Do(func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("dbopen: begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("dbopen: commit: %w", err)
		}
		return nil
	}, busyRetry(ctx)...)
}

// Exec runs a single statement, retrying on BUSY.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	return retry.DoWithData(func() (sql.Result, error) {
		return db.ExecContext(ctx, query, args...)
	}, busyRetry(ctx)...)
}
