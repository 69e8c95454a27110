package repository

import (
	"context"
	"time"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AllocationRepository interface {
	FindBySubject(ctx context.Context, subjectID string) ([]models.Allocation, error)
	IncrementConsumed(ctx context.Context, tx *gorm.DB, subjectID string, pool models.PoolType) (bool, error)
	AddGranted(ctx context.Context, tx *gorm.DB, subjectID string, pool models.PoolType, sessions int) (*models.Allocation, error)
}

type allocationRepository struct {
	db *gorm.DB
}

func NewAllocationRepository(db *gorm.DB) AllocationRepository {
	return &allocationRepository{db: db}
}

func (r *allocationRepository) FindBySubject(ctx context.Context, subjectID string) ([]models.Allocation, error) {
	var allocs []models.Allocation
	if err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("pool_type ASC").
		Find(&allocs).Error; err != nil {
		return nil, err
	}
	return allocs, nil
}

// IncrementConsumed adds one consumed session if and only if the pool still has
// one left. The guard and the write are a single statement, so concurrent
// callers can never push consumed past granted.
func (r *allocationRepository) IncrementConsumed(ctx context.Context, tx *gorm.DB, subjectID string, pool models.PoolType) (bool, error) {
	res := pick(r.db, tx).WithContext(ctx).
		Model(&models.Allocation{}).
		Where("subject_id = ? AND pool_type = ? AND consumed < granted", subjectID, pool).
		UpdateColumns(map[string]any{
			"consumed":   gorm.Expr("consumed + ?", 1),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AddGranted provisions the allocation or raises its granted counter.
func (r *allocationRepository) AddGranted(ctx context.Context, tx *gorm.DB, subjectID string, pool models.PoolType, sessions int) (*models.Allocation, error) {
	db := pick(r.db, tx).WithContext(ctx)
	now := time.Now().UTC()
	alloc := &models.Allocation{
		SubjectID: subjectID,
		PoolType:  pool,
		Granted:   sessions,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subject_id"}, {Name: "pool_type"}},
		DoUpdates: clause.Assignments(map[string]any{
			"granted":    gorm.Expr("allocations.granted + EXCLUDED.granted"),
			"updated_at": now,
		}),
	}).Create(alloc).Error
	if err != nil {
		return nil, err
	}

	var stored models.Allocation
	if err := db.Where("subject_id = ? AND pool_type = ?", subjectID, pool).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}
