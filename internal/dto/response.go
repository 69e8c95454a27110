package dto

import (
	"time"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
)

type BookingResponse struct {
	ID                string               `json:"id"`
	SubjectID         string               `json:"subject_id"`
	ProviderID        string               `json:"provider_id"`
	Date              string               `json:"date"`
	StartTime         string               `json:"start_time"`
	EndTime           string               `json:"end_time"`
	Pillar            models.Pillar        `json:"pillar"`
	Status            models.BookingStatus `json:"status"`
	DisplayStatus     models.BookingStatus `json:"display_status"`
	PayerSource       models.PoolType      `json:"payer_source"`
	RescheduledFromID *string              `json:"rescheduled_from_id,omitempty"`
	CompletedAt       *time.Time           `json:"completed_at,omitempty"`
	CancelledAt       *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
}

type BalanceResponse struct {
	SubjectID string `json:"subject_id"`
	models.Balance
}

type ErrorResponse struct {
	Message string `json:"message"`
}

// ToBookingResponse renders b as seen at now.
func ToBookingResponse(b *models.Booking, now time.Time, loc *time.Location) BookingResponse {
	return BookingResponse{
		ID:                b.ID,
		SubjectID:         b.SubjectID,
		ProviderID:        b.ProviderID,
		Date:              b.Date,
		StartTime:         b.StartTime,
		EndTime:           b.EndTime,
		Pillar:            b.Pillar,
		Status:            b.Status,
		DisplayStatus:     b.DisplayStatus(now, loc),
		PayerSource:       b.PayerSource,
		RescheduledFromID: b.RescheduledFromID,
		CompletedAt:       b.CompletedAt,
		CancelledAt:       b.CancelledAt,
		CreatedAt:         b.CreatedAt,
	}
}
