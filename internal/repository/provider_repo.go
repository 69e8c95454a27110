package repository

import (
	"context"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProviderRepository interface {
	FindByID(ctx context.Context, id string) (*models.Provider, error)
	Upsert(ctx context.Context, provider *models.Provider) error
}

type providerRepository struct {
	db *gorm.DB
}

func NewProviderRepository(db *gorm.DB) ProviderRepository {
	return &providerRepository{db: db}
}

func (r *providerRepository) FindByID(ctx context.Context, id string) (*models.Provider, error) {
	var provider models.Provider
	if err := r.db.WithContext(ctx).First(&provider, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &provider, nil
}

// Upsert inserts the provider or refreshes it when the directory already sent it.
func (r *providerRepository) Upsert(ctx context.Context, provider *models.Provider) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "pillar", "active", "updated_at"}),
	}).Create(provider).Error
}
