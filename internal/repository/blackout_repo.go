package repository

import (
	"context"
	"time"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BlackoutRepository interface {
	FindTimes(ctx context.Context, providerID, date string) ([]string, error)
	Contains(ctx context.Context, tx *gorm.DB, providerID, date, slot string) (bool, error)
	Add(ctx context.Context, providerID, date string, times []string, reason string) error
	Remove(ctx context.Context, providerID, date string, times []string) (int64, error)
}

type blackoutRepository struct {
	db *gorm.DB
}

func NewBlackoutRepository(db *gorm.DB) BlackoutRepository {
	return &blackoutRepository{db: db}
}

func (r *blackoutRepository) FindTimes(ctx context.Context, providerID, date string) ([]string, error) {
	var times []string
	err := r.db.WithContext(ctx).
		Model(&models.Blackout{}).
		Where("provider_id = ? AND date = ?", providerID, date).
		Order("time ASC").
		Pluck("time", &times).Error
	if err != nil {
		return nil, err
	}
	return times, nil
}

func (r *blackoutRepository) Contains(ctx context.Context, tx *gorm.DB, providerID, date, slot string) (bool, error) {
	var count int64
	err := pick(r.db, tx).WithContext(ctx).
		Model(&models.Blackout{}).
		Where("provider_id = ? AND date = ? AND time = ?", providerID, date, slot).
		Count(&count).Error
	return count > 0, err
}

// Add blocks the given times; already-blocked times are left as they are.
func (r *blackoutRepository) Add(ctx context.Context, providerID, date string, times []string, reason string) error {
	if len(times) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]models.Blackout, 0, len(times))
	for _, t := range times {
		rows = append(rows, models.Blackout{
			ProviderID: providerID,
			Date:       date,
			Time:       t,
			Reason:     reason,
			CreatedAt:  now,
		})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *blackoutRepository) Remove(ctx context.Context, providerID, date string, times []string) (int64, error) {
	q := r.db.WithContext(ctx).Where("provider_id = ? AND date = ?", providerID, date)
	if len(times) > 0 {
		q = q.Where("time IN ?", times)
	}
	res := q.Delete(&models.Blackout{})
	return res.RowsAffected, res.Error
}
