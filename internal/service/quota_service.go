package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/realtime"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/repository"
	"gorm.io/gorm"
)

// QuotaLedger is the only place session balances are computed or consumed.
type QuotaLedger interface {
	GetBalance(ctx context.Context, subjectID string) (models.Balance, error)
	// Consume deducts one session from pool when one is left and reports whether
	// it did. An exhausted or missing pool is not an error. Pass the caller's tx
	// to make the deduction part of a larger transaction.
	Consume(ctx context.Context, tx *gorm.DB, subjectID string, pool models.PoolType) (bool, error)
	Grant(ctx context.Context, subjectID string, pool models.PoolType, sessions int) (*models.Allocation, error)
}

type quotaLedger struct {
	allocRepo repository.AllocationRepository
	publisher realtime.Publisher
}

func NewQuotaLedger(allocRepo repository.AllocationRepository, publisher realtime.Publisher) QuotaLedger {
	return &quotaLedger{allocRepo: allocRepo, publisher: publisher}
}

func (l *quotaLedger) GetBalance(ctx context.Context, subjectID string) (models.Balance, error) {
	if strings.TrimSpace(subjectID) == "" {
		return models.Balance{}, fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}
	allocs, err := l.allocRepo.FindBySubject(ctx, subjectID)
	if err != nil {
		return models.Balance{}, fmt.Errorf("load allocations: %w", err)
	}
	return models.BalanceFrom(allocs), nil
}

func (l *quotaLedger) Consume(ctx context.Context, tx *gorm.DB, subjectID string, pool models.PoolType) (bool, error) {
	if !pool.Valid() {
		return false, fmt.Errorf("%w: pool %q", ErrInvalidInput, pool)
	}
	ok, err := l.allocRepo.IncrementConsumed(ctx, tx, subjectID, pool)
	if err != nil {
		return false, fmt.Errorf("consume %s session: %w", pool, err)
	}
	return ok, nil
}

func (l *quotaLedger) Grant(ctx context.Context, subjectID string, pool models.PoolType, sessions int) (*models.Allocation, error) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}
	if !pool.Valid() {
		return nil, fmt.Errorf("%w: pool %q", ErrInvalidInput, pool)
	}
	if sessions <= 0 {
		return nil, fmt.Errorf("%w: sessions must be positive", ErrInvalidInput)
	}

	alloc, err := l.allocRepo.AddGranted(ctx, nil, subjectID, pool, sessions)
	if err != nil {
		return nil, fmt.Errorf("grant sessions: %w", err)
	}

	realtime.Announce(ctx, l.publisher, realtime.Change{
		SubjectID: subjectID,
		Kind:      realtime.ChangeAllocation,
		At:        time.Now().UTC(),
	})
	return alloc, nil
}
