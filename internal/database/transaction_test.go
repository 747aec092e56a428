package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type counter struct {
	ID    uint64 `gorm:"primarykey"`
	Value int
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), GormConfig(logger.Silent))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&counter{}))
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func withRetryPolicy(t *testing.T, attempts int, hook RetryHook, giveUp func()) {
	t.Helper()
	ConfigureRetries(attempts, hook, giveUp)
	t.Cleanup(func() {
		ConfigureRetries(3, nil, nil)
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retry sentinel", fmt.Errorf("insert: %w", ErrRetry), true},
		{"postgres serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"postgres deadlock", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"postgres unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql lock wait timeout", &mysql.MySQLError{Number: 1205}, true},
		{"mysql duplicate entry", &mysql.MySQLError{Number: 1062}, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"duplicated key", gorm.ErrDuplicatedKey, false},
		{"record not found", gorm.ErrRecordNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestTransact_RetriesUntilSuccess(t *testing.T) {
	db := openTestDB(t)
	var retried []int
	withRetryPolicy(t, 3, func(attempt int, err error) {
		retried = append(retried, attempt)
	}, nil)

	calls := 0
	err := Transact(context.Background(), db, func(tx *gorm.DB) error {
		calls++
		if err := tx.Create(&counter{Value: calls}).Error; err != nil {
			return err
		}
		if calls < 3 {
			return fmt.Errorf("conflict on attempt %d: %w", calls, ErrRetry)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)

	// Rows written by failed attempts were rolled back.
	var rows []counter
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Value)
}

func TestTransact_GivesUpAfterLastAttempt(t *testing.T) {
	db := openTestDB(t)
	gaveUp := 0
	withRetryPolicy(t, 2, nil, func() { gaveUp++ })

	calls := 0
	err := Transact(context.Background(), db, func(tx *gorm.DB) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransientFailure))

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr), "cause must stay inspectable")
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, gaveUp)
}

func TestTransact_DoesNotRetryOtherErrors(t *testing.T) {
	db := openTestDB(t)
	withRetryPolicy(t, 3, nil, nil)

	boom := errors.New("boom")
	calls := 0
	err := Transact(context.Background(), db, func(tx *gorm.DB) error {
		calls++
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestTransact_StopsOnCancelledContext(t *testing.T) {
	db := openTestDB(t)
	withRetryPolicy(t, 5, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Transact(ctx, db, func(tx *gorm.DB) error {
		calls++
		cancel()
		return ErrRetry
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}
