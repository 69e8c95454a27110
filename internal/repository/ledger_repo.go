package repository

import (
	"context"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository stores the per-booking side records of a completion.
type LedgerRepository interface {
	RecordConsumption(ctx context.Context, tx *gorm.DB, c *models.SessionConsumption) (bool, error)
	RecordProgress(ctx context.Context, tx *gorm.DB, e *models.ProgressEvent) error
	FindConsumptions(ctx context.Context, subjectID string) ([]models.SessionConsumption, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// RecordConsumption reports false if the booking already has a consumption entry.
func (r *ledgerRepository) RecordConsumption(ctx context.Context, tx *gorm.DB, c *models.SessionConsumption) (bool, error) {
	res := pick(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "booking_id"}}, DoNothing: true}).
		Create(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ledgerRepository) RecordProgress(ctx context.Context, tx *gorm.DB, e *models.ProgressEvent) error {
	return pick(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "booking_id"}}, DoNothing: true}).
		Create(e).Error
}

func (r *ledgerRepository) FindConsumptions(ctx context.Context, subjectID string) ([]models.SessionConsumption, error) {
	var rows []models.SessionConsumption
	if err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("consumed_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
