package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Availability is an advisory view of a provider's day. Stale means an
// upstream read failed and every grid slot is reported as available; the
// insert-time conflict guard still decides.
type Availability struct {
	ProviderID string        `json:"provider_id"`
	Date       string        `json:"date"`
	Slots      []models.Slot `json:"slots"`
	Stale      bool          `json:"stale"`
}

type AvailabilityService interface {
	GetSlots(ctx context.Context, providerID, date string) (*Availability, error)
	GetBlackout(ctx context.Context, providerID, date string) (*models.BlackoutWindow, error)
	BlockTimes(ctx context.Context, providerID, date string, times []string, reason string) (*models.BlackoutWindow, error)
	UnblockTimes(ctx context.Context, providerID, date string, times []string) (*models.BlackoutWindow, error)
}

type availabilityService struct {
	bookingRepo  repository.BookingRepository
	blackoutRepo repository.BlackoutRepository
	grid         SlotGrid
}

func NewAvailabilityService(bookingRepo repository.BookingRepository, blackoutRepo repository.BlackoutRepository, grid SlotGrid) AvailabilityService {
	return &availabilityService{
		bookingRepo:  bookingRepo,
		blackoutRepo: blackoutRepo,
		grid:         grid,
	}
}

func (s *availabilityService) GetSlots(ctx context.Context, providerID, date string) (*Availability, error) {
	if err := validateProviderDate(providerID, date); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "availability.GetSlots", trace.WithAttributes(
		attribute.String("provider.id", providerID),
		attribute.String("date", date),
	))
	defer span.End()

	result := &Availability{ProviderID: providerID, Date: date}

	claimed, err := s.bookingRepo.FindClaimedTimes(ctx, providerID, date)
	if err != nil {
		log.Printf("[Availability] bookings read failed for %s on %s, serving full grid: %v", providerID, date, err)
		result.Stale = true
	}
	blocked, err := s.blackoutRepo.FindTimes(ctx, providerID, date)
	if err != nil {
		log.Printf("[Availability] blackout read failed for %s on %s, serving full grid: %v", providerID, date, err)
		result.Stale = true
	}

	taken := make(map[string]struct{}, len(claimed)+len(blocked))
	if !result.Stale {
		for _, t := range claimed {
			taken[t] = struct{}{}
		}
		for _, t := range blocked {
			taken[t] = struct{}{}
		}
	}

	times := s.grid.Times()
	result.Slots = make([]models.Slot, 0, len(times))
	for _, t := range times {
		_, unavailable := taken[t]
		result.Slots = append(result.Slots, models.Slot{Time: t, Available: !unavailable})
	}

	span.SetAttributes(attribute.Bool("stale", result.Stale))
	return result, nil
}

func (s *availabilityService) GetBlackout(ctx context.Context, providerID, date string) (*models.BlackoutWindow, error) {
	if err := validateProviderDate(providerID, date); err != nil {
		return nil, err
	}
	times, err := s.blackoutRepo.FindTimes(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("load blackout: %w", err)
	}
	if times == nil {
		times = []string{}
	}
	return &models.BlackoutWindow{ProviderID: providerID, Date: date, Times: times}, nil
}

func (s *availabilityService) BlockTimes(ctx context.Context, providerID, date string, times []string, reason string) (*models.BlackoutWindow, error) {
	if err := validateProviderDate(providerID, date); err != nil {
		return nil, err
	}
	times, err := s.normalizeTimes(times)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: at least one time is required", ErrInvalidInput)
	}
	if err := s.blackoutRepo.Add(ctx, providerID, date, times, strings.TrimSpace(reason)); err != nil {
		return nil, fmt.Errorf("block times: %w", err)
	}
	return s.GetBlackout(ctx, providerID, date)
}

// UnblockTimes clears the given times, or the whole day when times is empty.
func (s *availabilityService) UnblockTimes(ctx context.Context, providerID, date string, times []string) (*models.BlackoutWindow, error) {
	if err := validateProviderDate(providerID, date); err != nil {
		return nil, err
	}
	times, err := s.normalizeTimes(times)
	if err != nil {
		return nil, err
	}
	if _, err := s.blackoutRepo.Remove(ctx, providerID, date, times); err != nil {
		return nil, fmt.Errorf("unblock times: %w", err)
	}
	return s.GetBlackout(ctx, providerID, date)
}

func (s *availabilityService) normalizeTimes(times []string) ([]string, error) {
	seen := make(map[string]struct{}, len(times))
	out := make([]string, 0, len(times))
	for _, t := range times {
		t = strings.TrimSpace(t)
		if !s.grid.Contains(t) {
			return nil, fmt.Errorf("%w: %q is not a slot time", ErrInvalidInput, t)
		}
		m, _ := models.ParseClock(t)
		t = models.FormatClock(m)
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func validateProviderDate(providerID, date string) error {
	if strings.TrimSpace(providerID) == "" {
		return fmt.Errorf("%w: provider id is required", ErrInvalidInput)
	}
	if _, err := models.ParseDate(date); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
