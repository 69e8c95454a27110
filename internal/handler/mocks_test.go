package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/middleware"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/service"
	"gorm.io/gorm"
)

// --- Mock BookingService ---

type mockBookingService struct {
	createFn func(ctx context.Context, subjectID string, in service.CreateBookingInput) (*models.Booking, error)
	getFn    func(ctx context.Context, id string) (*models.Booking, error)
	listFn   func(ctx context.Context, subjectID string, status *models.BookingStatus) ([]models.Booking, error)
}

func (m *mockBookingService) CreateBooking(ctx context.Context, subjectID string, in service.CreateBookingInput) (*models.Booking, error) {
	return m.createFn(ctx, subjectID, in)
}
func (m *mockBookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return m.getFn(ctx, id)
}
func (m *mockBookingService) ListBookings(ctx context.Context, subjectID string, status *models.BookingStatus) ([]models.Booking, error) {
	return m.listFn(ctx, subjectID, status)
}

// --- Mock LifecycleService ---

type mockLifecycle struct {
	scanFn       func(ctx context.Context) (service.ScanReport, error)
	moveFn       func(ctx context.Context, id string, to models.BookingStatus) (*models.Booking, error)
	rescheduleFn func(ctx context.Context, id string, in service.RescheduleInput) (*models.Booking, error)
}

func (m *mockLifecycle) Scan(ctx context.Context) (service.ScanReport, error) {
	return m.scanFn(ctx)
}
func (m *mockLifecycle) Confirm(ctx context.Context, id string) (*models.Booking, error) {
	return m.moveFn(ctx, id, models.StatusConfirmed)
}
func (m *mockLifecycle) Cancel(ctx context.Context, id string) (*models.Booking, error) {
	return m.moveFn(ctx, id, models.StatusCancelled)
}
func (m *mockLifecycle) MarkNoShow(ctx context.Context, id string) (*models.Booking, error) {
	return m.moveFn(ctx, id, models.StatusNoShow)
}
func (m *mockLifecycle) Reschedule(ctx context.Context, id string, in service.RescheduleInput) (*models.Booking, error) {
	return m.rescheduleFn(ctx, id, in)
}

// --- Mock QuotaLedger ---

type mockQuota struct {
	balanceFn func(ctx context.Context, subjectID string) (models.Balance, error)
	grantFn   func(ctx context.Context, subjectID string, pool models.PoolType, sessions int) (*models.Allocation, error)
}

func (m *mockQuota) GetBalance(ctx context.Context, subjectID string) (models.Balance, error) {
	return m.balanceFn(ctx, subjectID)
}
func (m *mockQuota) Consume(ctx context.Context, tx *gorm.DB, subjectID string, pool models.PoolType) (bool, error) {
	panic("handlers must never consume")
}
func (m *mockQuota) Grant(ctx context.Context, subjectID string, pool models.PoolType, sessions int) (*models.Allocation, error) {
	return m.grantFn(ctx, subjectID, pool, sessions)
}

// --- Mock AvailabilityService ---

type mockAvailability struct {
	slotsFn    func(ctx context.Context, providerID, date string) (*service.Availability, error)
	blackoutFn func(ctx context.Context, providerID, date string) (*models.BlackoutWindow, error)
	blockFn    func(ctx context.Context, providerID, date string, times []string, reason string) (*models.BlackoutWindow, error)
	unblockFn  func(ctx context.Context, providerID, date string, times []string) (*models.BlackoutWindow, error)
}

func (m *mockAvailability) GetSlots(ctx context.Context, providerID, date string) (*service.Availability, error) {
	return m.slotsFn(ctx, providerID, date)
}
func (m *mockAvailability) GetBlackout(ctx context.Context, providerID, date string) (*models.BlackoutWindow, error) {
	return m.blackoutFn(ctx, providerID, date)
}
func (m *mockAvailability) BlockTimes(ctx context.Context, providerID, date string, times []string, reason string) (*models.BlackoutWindow, error) {
	return m.blockFn(ctx, providerID, date, times, reason)
}
func (m *mockAvailability) UnblockTimes(ctx context.Context, providerID, date string, times []string) (*models.BlackoutWindow, error) {
	return m.unblockFn(ctx, providerID, date, times)
}

// --- Helpers ---

func newContext(method, target, body, subjectID, role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	middleware.SetIdentity(c, subjectID, role)
	return c, rec
}

func withID(c echo.Context, id string) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c
}
