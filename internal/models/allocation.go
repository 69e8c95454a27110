package models

import "time"

type PoolType string

const (
	PoolCompany  PoolType = "company"
	PoolPersonal PoolType = "personal"
)

func (p PoolType) Valid() bool {
	return p == PoolCompany || p == PoolPersonal
}

// Allocation holds the granted/consumed counters of one subject for one pool.
type Allocation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SubjectID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_allocation_subject_pool" json:"subject_id"`
	PoolType  PoolType  `gorm:"type:varchar(16);not null;uniqueIndex:idx_allocation_subject_pool" json:"pool_type"`
	Granted   int       `gorm:"not null;default:0;check:granted >= 0" json:"granted"`
	Consumed  int       `gorm:"not null;default:0;check:consumed >= 0 AND consumed <= granted" json:"consumed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a Allocation) Remaining() int {
	if a.Consumed >= a.Granted {
		return 0
	}
	return a.Granted - a.Consumed
}

type Balance struct {
	CompanyRemaining  int `json:"company_remaining"`
	PersonalRemaining int `json:"personal_remaining"`
	CompanyUsed       int `json:"company_used"`
	PersonalUsed      int `json:"personal_used"`
}

// Remaining returns the sessions left in the given pool.
func (b Balance) Remaining(pool PoolType) int {
	switch pool {
	case PoolCompany:
		return b.CompanyRemaining
	case PoolPersonal:
		return b.PersonalRemaining
	default:
		return 0
	}
}

// BalanceFrom folds allocation rows into a Balance. Missing pools count as zero.
func BalanceFrom(allocs []Allocation) Balance {
	var b Balance
	for _, a := range allocs {
		switch a.PoolType {
		case PoolCompany:
			b.CompanyRemaining += a.Remaining()
			b.CompanyUsed += a.Consumed
		case PoolPersonal:
			b.PersonalRemaining += a.Remaining()
			b.PersonalUsed += a.Consumed
		}
	}
	return b
}
