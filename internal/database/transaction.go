package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/yukikurage/unica-api/internal/constants"
	"gorm.io/gorm"
)

var (
	// ErrRetry marks an error after which the whole transaction may be re-run.
	ErrRetry = errors.New("transaction conflict")
	// ErrTransientFailure is returned when a transaction still conflicts after
	// the last attempt.
	ErrTransientFailure = errors.New("transient failure, please retry")
)

// RetryHook observes each retried attempt.
type RetryHook func(attempt int, err error)

var (
	retryMu     sync.RWMutex
	maxAttempts = constants.MaxTransactionAttempts
	onRetry     RetryHook
	onGiveUp    func()
)

// ConfigureRetries sets the process-wide retry policy of Transact.
func ConfigureRetries(attempts int, hook RetryHook, giveUp func()) {
	retryMu.Lock()
	defer retryMu.Unlock()
	if attempts < 1 {
		attempts = 1
	}
	maxAttempts = attempts
	onRetry = hook
	onGiveUp = giveUp
}

func retryPolicy() (int, RetryHook, func()) {
	retryMu.RLock()
	defer retryMu.RUnlock()
	return maxAttempts, onRetry, onGiveUp
}

// Transact runs fn inside a transaction and re-runs it from scratch when the
// store reports a serialization failure, a deadlock or a lock timeout. fn must
// not have side effects outside tx.
func Transact(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	attempts, hook, giveUp := retryPolicy()

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if hook != nil {
			hook(attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}

	if giveUp != nil {
		giveUp()
	}
	return fmt.Errorf("%w: %w", ErrTransientFailure, err)
}

// IsRetryable reports whether err is a conflict that a fresh attempt of the
// same transaction can resolve.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRetry) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return true
		}
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1205, 1213: // lock wait timeout, deadlock
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	return false
}
