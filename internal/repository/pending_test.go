package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func TestPendingRepository_UpsertFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPendingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `pending_syncs` .* ON DUPLICATE KEY UPDATE .*`retry_count`=retry_count \\+ 1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.UpsertFailure(context.Background(), FailureRecord{
		OrderID:      42,
		Payload:      `{"total":"10.00"}`,
		ErrorMessage: "destination unreachable",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingRepository_Remove(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPendingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `pending_syncs` WHERE order_id = \\?").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Remove(context.Background(), 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingRepository_SelectEligibleForRetry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPendingRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "order_id", "payload", "destination_id", "destination_number",
		"retry_count", "last_attempt_at", "error_message", "created_at",
	}).
		AddRow(1, 42, `{}`, "", "", 2, now.Add(-time.Hour), "boom", now.Add(-2*time.Hour)).
		AddRow(2, 43, `{}`, "dst-9", "10009", 1, now.Add(-30*time.Minute), "boom", now.Add(-time.Hour))

	mock.ExpectQuery("SELECT \\* FROM `pending_syncs` WHERE retry_count < \\? AND last_attempt_at < \\? ORDER BY last_attempt_at ASC, created_at ASC").
		WillReturnRows(rows)

	got, err := repo.SelectEligibleForRetry(context.Background(), 5, 20, 5*time.Minute)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, int64(42), got[0].OrderID)
	assert.Equal(t, 2, got[0].RetryCount)
	assert.Equal(t, "dst-9", got[1].DestinationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingRepository_SelectExhausted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPendingRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "order_id", "payload", "retry_count", "last_attempt_at", "error_message", "created_at"}).
		AddRow(9, 7, `{}`, 5, now, "destination unreachable", now)

	mock.ExpectQuery("SELECT \\* FROM `pending_syncs` WHERE retry_count >= \\?").
		WillReturnRows(rows)

	got, err := repo.SelectExhausted(context.Background(), 5, 20)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].OrderID)
	assert.Equal(t, 5, got[0].RetryCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
