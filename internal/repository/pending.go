package repository

import (
	"context"
	"time"

	"orderbridge/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FailureRecord carries everything UpsertFailure persists about one failed
// attempt. DestinationID/DestinationNumber are only set when the destination
// order exists but the link-back failed.
type FailureRecord struct {
	OrderID           int64
	Payload           string
	ErrorMessage      string
	DestinationID     string
	DestinationNumber string
}

type PendingInterface interface {
	UpsertFailure(ctx context.Context, rec FailureRecord) error
	Remove(ctx context.Context, orderID int64) error
	SelectEligibleForRetry(ctx context.Context, maxRetries, batchSize int, cooldown time.Duration) ([]model.PendingSync, error)
	SelectExhausted(ctx context.Context, maxRetries, batchSize int) ([]model.PendingSync, error)
	List(ctx context.Context, limit int) ([]model.PendingSync, error)
	WithTx(tx *gorm.DB) PendingInterface
}

type PendingRepository struct {
	db *gorm.DB
}

func NewPendingRepository(db *gorm.DB) *PendingRepository {
	return &PendingRepository{db: db}
}

// UpsertFailure records one failed attempt. The retry_count increment runs
// inside the upsert statement itself, so concurrent callers for the same
// order never lose an increment to a read-modify-write race.
func (r *PendingRepository) UpsertFailure(ctx context.Context, rec FailureRecord) error {
	now := time.Now()
	row := model.PendingSync{
		OrderID:           rec.OrderID,
		Payload:           rec.Payload,
		DestinationID:     rec.DestinationID,
		DestinationNumber: rec.DestinationNumber,
		RetryCount:        1,
		LastAttemptAt:     now,
		ErrorMessage:      rec.ErrorMessage,
		CreatedAt:         now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"payload":            rec.Payload,
			"destination_id":     rec.DestinationID,
			"destination_number": rec.DestinationNumber,
			"error_message":      rec.ErrorMessage,
			"last_attempt_at":    now,
			"retry_count":        gorm.Expr("retry_count + 1"),
		}),
	}).Create(&row).Error
}

// Remove deletes the pending row for an order. No-op if absent.
func (r *PendingRepository) Remove(ctx context.Context, orderID int64) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&model.PendingSync{}).Error
}

// SelectEligibleForRetry returns rows still inside the retry budget whose
// last attempt is older than the cool-down window, oldest attempt first so
// long-pending orders are never starved. The cool-down gives an in-flight
// first attempt time to record its outcome before a sweep re-selects the row.
func (r *PendingRepository) SelectEligibleForRetry(ctx context.Context, maxRetries, batchSize int, cooldown time.Duration) ([]model.PendingSync, error) {
	var rows []model.PendingSync
	err := r.db.WithContext(ctx).
		Where("retry_count < ? AND last_attempt_at < ?", maxRetries, time.Now().Add(-cooldown)).
		Order("last_attempt_at ASC, created_at ASC").
		Limit(batchSize).
		Find(&rows).Error
	return rows, err
}

// SelectExhausted returns rows that spent their retry budget. Unordered;
// these are terminal and only await escalation.
func (r *PendingRepository) SelectExhausted(ctx context.Context, maxRetries, batchSize int) ([]model.PendingSync, error) {
	var rows []model.PendingSync
	err := r.db.WithContext(ctx).
		Where("retry_count >= ?", maxRetries).
		Limit(batchSize).
		Find(&rows).Error
	return rows, err
}

func (r *PendingRepository) List(ctx context.Context, limit int) ([]model.PendingSync, error) {
	var rows []model.PendingSync
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *PendingRepository) WithTx(tx *gorm.DB) PendingInterface {
	return &PendingRepository{db: tx}
}
