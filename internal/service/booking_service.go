package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/clock"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/realtime"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/repository"
	"gorm.io/gorm"
)

type CreateBookingInput struct {
	ProviderID  string
	Date        string
	StartTime   string
	Pillar      models.Pillar
	PayerSource models.PoolType
}

type BookingService interface {
	CreateBooking(ctx context.Context, subjectID string, in CreateBookingInput) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, subjectID string, status *models.BookingStatus) ([]models.Booking, error)
}

type BookingDeps struct {
	Tx        repository.Transactor
	Bookings  repository.BookingRepository
	Blackouts repository.BlackoutRepository
	Providers repository.ProviderRepository
	Quota     QuotaLedger
	Grid      SlotGrid
	Clock     clock.Clock
	Location  *time.Location
	Publisher realtime.Publisher
}

type bookingService struct {
	tx          repository.Transactor
	bookingRepo repository.BookingRepository
	blackouts   repository.BlackoutRepository
	providers   repository.ProviderRepository
	quota       QuotaLedger
	grid        SlotGrid
	clock       clock.Clock
	loc         *time.Location
	publisher   realtime.Publisher
}

func NewBookingService(d BookingDeps) BookingService {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	return &bookingService{
		tx:          d.Tx,
		bookingRepo: d.Bookings,
		blackouts:   d.Blackouts,
		providers:   d.Providers,
		quota:       d.Quota,
		grid:        d.Grid,
		clock:       d.Clock,
		loc:         d.Location,
		publisher:   d.Publisher,
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, subjectID string, in CreateBookingInput) (*models.Booking, error) {
	// 1. Validate the request shape
	if strings.TrimSpace(subjectID) == "" {
		return nil, fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}
	if err := validateProviderDate(in.ProviderID, in.Date); err != nil {
		return nil, err
	}
	if !in.Pillar.Valid() {
		return nil, fmt.Errorf("%w: pillar %q", ErrInvalidInput, in.Pillar)
	}
	if !in.PayerSource.Valid() {
		return nil, fmt.Errorf("%w: payer source %q", ErrInvalidInput, in.PayerSource)
	}
	if !s.grid.Contains(in.StartTime) {
		return nil, fmt.Errorf("%w: %q is not a slot time", ErrSlotUnavailable, in.StartTime)
	}
	startMin, _ := models.ParseClock(in.StartTime)
	startTime := models.FormatClock(startMin)
	endTime, err := s.grid.EndOf(startTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// 2. Provider must exist, be active and serve the pillar
	provider, err := s.providers.FindByID(ctx, in.ProviderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if !provider.Active {
		return nil, ErrProviderNotFound
	}
	if provider.Pillar != in.Pillar {
		return nil, fmt.Errorf("%w: provider %s does not offer %s sessions", ErrInvalidInput, provider.ID, in.Pillar)
	}

	// 3. No bookings in the past
	start, err := models.At(in.Date, startTime, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !start.After(s.clock.Now()) {
		return nil, fmt.Errorf("%w: slot has already started", ErrSlotUnavailable)
	}

	// 4. The payer pool must have a session left. The real deduction only
	//    happens on completion, so this is a fast refusal, not a reservation.
	balance, err := s.quota.GetBalance(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if balance.Remaining(in.PayerSource) == 0 {
		return nil, ErrQuotaExhausted
	}

	now := s.clock.Now().UTC()
	booking := &models.Booking{
		ID:          uuid.NewString(),
		SubjectID:   subjectID,
		ProviderID:  provider.ID,
		Date:        in.Date,
		StartTime:   startTime,
		EndTime:     endTime,
		Pillar:      in.Pillar,
		Status:      models.StatusPending,
		PayerSource: in.PayerSource,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// 5. Blackout check and insert; the partial unique index decides races
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		return insertBooking(ctx, tx, s.blackouts, s.bookingRepo, booking)
	})
	if err != nil {
		return nil, err
	}

	realtime.Announce(ctx, s.publisher, realtime.Change{
		SubjectID: subjectID,
		Kind:      realtime.ChangeBooking,
		BookingID: booking.ID,
		At:        now,
	})
	return booking, nil
}

// insertBooking refuses blacked-out times and maps a slot-index clash to ErrSlotConflict.
func insertBooking(ctx context.Context, tx *gorm.DB, blackouts repository.BlackoutRepository, bookings repository.BookingRepository, booking *models.Booking) error {
	blocked, err := blackouts.Contains(ctx, tx, booking.ProviderID, booking.Date, booking.StartTime)
	if err != nil {
		return fmt.Errorf("check blackout: %w", err)
	}
	if blocked {
		return fmt.Errorf("%w: provider is unavailable at %s", ErrSlotUnavailable, booking.StartTime)
	}
	if err := bookings.Create(ctx, tx, booking); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrSlotConflict
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (s *bookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return booking, nil
}

func (s *bookingService) ListBookings(ctx context.Context, subjectID string, status *models.BookingStatus) ([]models.Booking, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, *status)
	}
	return s.bookingRepo.FindBySubject(ctx, subjectID, status)
}
