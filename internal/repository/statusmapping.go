package repository

import (
	"context"

	"orderbridge/internal/model"

	"gorm.io/gorm"
)

// StatusMappingInterface reads the operator-managed mapping table. The engine
// never writes to it.
type StatusMappingInterface interface {
	GetAll(ctx context.Context) ([]model.StatusMapping, error)
}

type StatusMappingRepository struct {
	db *gorm.DB
}

func NewStatusMappingRepository(db *gorm.DB) *StatusMappingRepository {
	return &StatusMappingRepository{db: db}
}

// GetAll returns entries in id order so collision handling (last-read-wins)
// is deterministic across sweeps.
func (r *StatusMappingRepository) GetAll(ctx context.Context) ([]model.StatusMapping, error) {
	var rows []model.StatusMapping
	err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error
	return rows, err
}
