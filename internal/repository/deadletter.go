package repository

import (
	"context"
	"time"

	"orderbridge/internal/model"

	"gorm.io/gorm"
)

type DeadLetterInterface interface {
	Escalate(ctx context.Context, row *model.PendingSync) error
	List(ctx context.Context, limit int) ([]model.DeadLetterSync, error)
	WithTx(tx *gorm.DB) DeadLetterInterface
}

type DeadLetterRepository struct {
	db *gorm.DB
}

func NewDeadLetterRepository(db *gorm.DB) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

// Escalate moves a pending row into the dead-letter table. Insert and delete
// run in one transaction: if either fails the pending row survives and the
// next sweep reconsiders it. An order is never silently dropped.
func (r *DeadLetterRepository) Escalate(ctx context.Context, row *model.PendingSync) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dl := model.DeadLetterSync{
			OriginalPendingID: row.ID,
			OrderID:           row.OrderID,
			Payload:           row.Payload,
			FinalErrorMessage: row.ErrorMessage,
			FailedAt:          time.Now(),
		}
		if err := tx.Create(&dl).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", row.ID).Delete(&model.PendingSync{}).Error
	})
}

func (r *DeadLetterRepository) List(ctx context.Context, limit int) ([]model.DeadLetterSync, error) {
	var rows []model.DeadLetterSync
	err := r.db.WithContext(ctx).
		Order("failed_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *DeadLetterRepository) WithTx(tx *gorm.DB) DeadLetterInterface {
	return &DeadLetterRepository{db: tx}
}
