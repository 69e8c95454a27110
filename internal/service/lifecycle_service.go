package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/clock"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/notifier"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/realtime"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

const defaultScanBatch = 500

// ScanReport summarises one pass of the completion scan.
type ScanReport struct {
	Checked   int       `json:"checked"`
	Completed int       `json:"completed"`
	NotDue    int       `json:"not_due"`
	Skipped   int       `json:"skipped"`
	Exhausted int       `json:"exhausted"`
	Failed    int       `json:"failed"`
	At        time.Time `json:"at"`
}

type RescheduleInput struct {
	Date      string
	StartTime string
}

// LifecycleService owns every booking status change. Completion is the only
// transition that consumes a session, and Scan is the only caller of it.
type LifecycleService interface {
	Scan(ctx context.Context) (ScanReport, error)
	Confirm(ctx context.Context, id string) (*models.Booking, error)
	Cancel(ctx context.Context, id string) (*models.Booking, error)
	MarkNoShow(ctx context.Context, id string) (*models.Booking, error)
	Reschedule(ctx context.Context, id string, in RescheduleInput) (*models.Booking, error)
}

type LifecycleDeps struct {
	Tx        repository.Transactor
	Bookings  repository.BookingRepository
	Ledger    repository.LedgerRepository
	Blackouts repository.BlackoutRepository
	Quota     QuotaLedger
	Grid      SlotGrid
	Clock     clock.Clock
	Location  *time.Location
	Publisher realtime.Publisher
	Notifier  notifier.Notifier
	BatchSize int
}

type lifecycleService struct {
	tx          repository.Transactor
	bookingRepo repository.BookingRepository
	ledgerRepo  repository.LedgerRepository
	blackouts   repository.BlackoutRepository
	quota       QuotaLedger
	grid        SlotGrid
	clock       clock.Clock
	loc         *time.Location
	publisher   realtime.Publisher
	notifier    notifier.Notifier
	batch       int
}

func NewLifecycleService(d LifecycleDeps) LifecycleService {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.BatchSize <= 0 {
		d.BatchSize = defaultScanBatch
	}
	return &lifecycleService{
		tx:          d.Tx,
		bookingRepo: d.Bookings,
		ledgerRepo:  d.Ledger,
		blackouts:   d.Blackouts,
		quota:       d.Quota,
		grid:        d.Grid,
		clock:       d.Clock,
		loc:         d.Location,
		publisher:   d.Publisher,
		notifier:    d.Notifier,
		batch:       d.BatchSize,
	}
}

type completion int

const (
	completionDone completion = iota
	completionExhausted
	completionSkipped
)

// Scan completes every active booking whose end time has passed. Candidates are
// loaded by date only, one keyset page at a time until a short page, so each
// one's exact end is checked against now before anything is written. Running it twice, or from two places at once, is safe.
func (s *lifecycleService) Scan(ctx context.Context) (ScanReport, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.Scan")
	defer span.End()

	now := s.clock.Now()
	report := ScanReport{At: now.UTC()}
	today := now.In(s.loc).Format(models.DateLayout)

	var cursor *repository.DueCursor
	for {
		due, err := s.bookingRepo.FindDue(ctx, today, cursor, s.batch)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load due bookings")
			return report, fmt.Errorf("load due bookings: %w", err)
		}

		for i := range due {
			s.scanOne(ctx, &due[i], now, &report)
		}

		if len(due) < s.batch {
			break
		}
		cursor = repository.CursorOf(due[len(due)-1])
	}

	span.SetAttributes(
		attribute.Int("scan.checked", report.Checked),
		attribute.Int("scan.completed", report.Completed),
		attribute.Int("scan.failed", report.Failed),
	)
	return report, nil
}

// scanOne checks a single candidate and completes it when its end has passed.
// Rows that fail stay active and are retried on the next pass.
func (s *lifecycleService) scanOne(ctx context.Context, b *models.Booking, now time.Time, report *ScanReport) {
	report.Checked++

	_, end, err := b.Window(s.loc)
	if err != nil {
		log.Printf("[Lifecycle] booking %s has an unreadable time window: %v", b.ID, err)
		report.Failed++
		return
	}
	if now.Before(end) {
		report.NotDue++
		return
	}

	outcome, err := s.complete(ctx, b, now)
	if err != nil {
		log.Printf("[Lifecycle] failed to complete booking %s: %v", b.ID, err)
		report.Failed++
		return
	}
	switch outcome {
	case completionDone:
		report.Completed++
	case completionExhausted:
		report.Completed++
		report.Exhausted++
	case completionSkipped:
		report.Skipped++
	}
}

// complete moves b to completed and charges its payer pool, all or nothing.
func (s *lifecycleService) complete(ctx context.Context, b *models.Booking, now time.Time) (completion, error) {
	var deducted bool

	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		// 1. Guarded status change; losing the race means someone else completed it
		ok, err := s.bookingRepo.Transition(ctx, tx, b.ID, models.StatusCompleted, now)
		if err != nil {
			return fmt.Errorf("transition: %w", err)
		}
		if !ok {
			return errTransitionNoop
		}

		// 2. Deduct one session from the payer pool
		deducted, err = s.quota.Consume(ctx, tx, b.SubjectID, b.PayerSource)
		if err != nil {
			return err
		}

		// 3. Ledger entry, unique per booking
		recorded, err := s.ledgerRepo.RecordConsumption(ctx, tx, &models.SessionConsumption{
			BookingID:  b.ID,
			SubjectID:  b.SubjectID,
			PoolType:   b.PayerSource,
			Deducted:   deducted,
			ConsumedAt: now.UTC(),
		})
		if err != nil {
			return fmt.Errorf("record consumption: %w", err)
		}
		if !recorded {
			return errTransitionNoop
		}

		// 4. Progress event
		if err := s.ledgerRepo.RecordProgress(ctx, tx, &models.ProgressEvent{
			SubjectID: b.SubjectID,
			BookingID: b.ID,
			Pillar:    b.Pillar,
			Action:    models.ActionSessionCompleted,
			CreatedAt: now.UTC(),
		}); err != nil {
			return fmt.Errorf("record progress: %w", err)
		}
		return nil
	})
	if errors.Is(err, errTransitionNoop) {
		return completionSkipped, nil
	}
	if err != nil {
		return 0, err
	}

	completedAt := now.UTC()
	b.Status = models.StatusCompleted
	b.CompletedAt = &completedAt
	b.UpdatedAt = completedAt

	changes := []realtime.Change{{SubjectID: b.SubjectID, Kind: realtime.ChangeBooking, BookingID: b.ID, At: completedAt}}
	if deducted {
		changes = append(changes, realtime.Change{SubjectID: b.SubjectID, Kind: realtime.ChangeAllocation, BookingID: b.ID, At: completedAt})
	}
	realtime.Announce(ctx, s.publisher, changes...)

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, notifier.FeedbackRequest(b)); err != nil {
			log.Printf("[Lifecycle] feedback notification for booking %s failed: %v", b.ID, err)
		}
	}

	if !deducted {
		log.Printf("[Lifecycle] booking %s completed but subject %s has no %s sessions left", b.ID, b.SubjectID, b.PayerSource)
		return completionExhausted, nil
	}
	return completionDone, nil
}

func (s *lifecycleService) Confirm(ctx context.Context, id string) (*models.Booking, error) {
	return s.move(ctx, id, models.StatusConfirmed)
}

func (s *lifecycleService) Cancel(ctx context.Context, id string) (*models.Booking, error) {
	return s.move(ctx, id, models.StatusCancelled)
}

func (s *lifecycleService) MarkNoShow(ctx context.Context, id string) (*models.Booking, error) {
	return s.move(ctx, id, models.StatusNoShow)
}

// move applies a user or admin transition. None of these touch the ledger.
func (s *lifecycleService) move(ctx context.Context, id string, to models.BookingStatus) (*models.Booking, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(b.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, b.Status, to)
	}

	now := s.clock.Now().UTC()
	ok, err := s.bookingRepo.Transition(ctx, nil, id, to, now)
	if err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: booking changed concurrently", ErrInvalidTransition)
	}

	b.Status = to
	b.UpdatedAt = now
	if to == models.StatusCancelled {
		b.CancelledAt = &now
	}

	realtime.Announce(ctx, s.publisher, realtime.Change{SubjectID: b.SubjectID, Kind: realtime.ChangeBooking, BookingID: b.ID, At: now})
	return b, nil
}

// Reschedule terminates the booking and opens a pending one at the new slot.
// Both happen in one transaction, so a conflict on the new slot leaves the
// original booking untouched.
func (s *lifecycleService) Reschedule(ctx context.Context, id string, in RescheduleInput) (*models.Booking, error) {
	old, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(old.Status, models.StatusRescheduled) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, old.Status, models.StatusRescheduled)
	}
	if err := validateProviderDate(old.ProviderID, in.Date); err != nil {
		return nil, err
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
	start, err := models.At(in.Date, startTime, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.clock.Now()
	if !start.After(now) {
		return nil, fmt.Errorf("%w: slot has already started", ErrSlotUnavailable)
	}
	now = now.UTC()

	oldID := old.ID
	next := &models.Booking{
		ID:                uuid.NewString(),
		SubjectID:         old.SubjectID,
		ProviderID:        old.ProviderID,
		Date:              in.Date,
		StartTime:         startTime,
		EndTime:           endTime,
		Pillar:            old.Pillar,
		Status:            models.StatusPending,
		PayerSource:       old.PayerSource,
		RescheduledFromID: &oldID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		ok, err := s.bookingRepo.Transition(ctx, tx, old.ID, models.StatusRescheduled, now)
		if err != nil {
			return fmt.Errorf("transition: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: booking changed concurrently", ErrInvalidTransition)
		}
		return insertBooking(ctx, tx, s.blackouts, s.bookingRepo, next)
	})
	if err != nil {
		return nil, err
	}

	realtime.Announce(ctx, s.publisher, realtime.Change{SubjectID: next.SubjectID, Kind: realtime.ChangeBooking, BookingID: next.ID, At: now})
	return next, nil
}

func (s *lifecycleService) load(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}
	return b, nil
}
