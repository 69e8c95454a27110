package models

import "time"

type BookingStatus string

const (
	StatusPending     BookingStatus = "pending"
	StatusConfirmed   BookingStatus = "confirmed"
	StatusInProgress  BookingStatus = "in_progress"
	StatusCompleted   BookingStatus = "completed"
	StatusCancelled   BookingStatus = "cancelled"
	StatusNoShow      BookingStatus = "no_show"
	StatusRescheduled BookingStatus = "rescheduled"
)

// ActiveStatuses are the non-terminal statuses that claim a slot.
var ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed}

var transitions = map[BookingStatus]map[BookingStatus]bool{
	StatusPending: {
		StatusConfirmed:   true,
		StatusCompleted:   true,
		StatusCancelled:   true,
		StatusNoShow:      true,
		StatusRescheduled: true,
	},
	StatusConfirmed: {
		StatusCompleted:   true,
		StatusCancelled:   true,
		StatusNoShow:      true,
		StatusRescheduled: true,
	},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted,
		StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow || s == StatusRescheduled
}

// CanTransition reports whether a stored booking may move from one status to another.
// in_progress is never stored, so it is neither a source nor a target.
func CanTransition(from, to BookingStatus) bool {
	return transitions[from][to]
}

type Pillar string

const (
	PillarMentalHealth Pillar = "mental_health"
	PillarFinancial    Pillar = "financial"
	PillarLegal        Pillar = "legal"
	PillarPhysical     Pillar = "physical"
)

func (p Pillar) Valid() bool {
	switch p {
	case PillarMentalHealth, PillarFinancial, PillarLegal, PillarPhysical:
		return true
	}
	return false
}

type Booking struct {
	ID                string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	SubjectID         string        `gorm:"type:varchar(64);not null;index" json:"subject_id"`
	ProviderID        string        `gorm:"type:varchar(64);not null;index:idx_booking_provider_date" json:"provider_id"`
	Date              string        `gorm:"type:varchar(10);not null;index:idx_booking_provider_date;index" json:"date"`
	StartTime         string        `gorm:"type:varchar(5);not null" json:"start_time"`
	EndTime           string        `gorm:"type:varchar(5);not null" json:"end_time"`
	Pillar            Pillar        `gorm:"type:varchar(20);not null" json:"pillar"`
	Status            BookingStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PayerSource       PoolType      `gorm:"type:varchar(16);not null" json:"payer_source"`
	RescheduledFromID *string       `gorm:"type:varchar(36)" json:"rescheduled_from_id,omitempty"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
	CancelledAt       *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Window returns the booking's start and end instants in loc.
func (b *Booking) Window(loc *time.Location) (time.Time, time.Time, error) {
	start, err := At(b.Date, b.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := At(b.Date, b.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// DisplayStatus is the status shown to users: an active booking inside its
// time window reads as in_progress.
func (b *Booking) DisplayStatus(now time.Time, loc *time.Location) BookingStatus {
	if !b.Status.Active() {
		return b.Status
	}
	start, end, err := b.Window(loc)
	if err != nil {
		return b.Status
	}
	if !now.Before(start) && now.Before(end) {
		return StatusInProgress
	}
	return b.Status
}
