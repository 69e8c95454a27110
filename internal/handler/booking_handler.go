package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/clock"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/dto"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/middleware"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/service"
)

type BookingHandler struct {
	svc       service.BookingService
	lifecycle service.LifecycleService
	clock     clock.Clock
	loc       *time.Location
}

func NewBookingHandler(svc service.BookingService, lifecycle service.LifecycleService, clk clock.Clock, loc *time.Location) *BookingHandler {
	return &BookingHandler{svc: svc, lifecycle: lifecycle, clock: clk, loc: loc}
}

// RegisterRoutes mounts subject routes on api and admin-only routes on admin.
func (h *BookingHandler) RegisterRoutes(api, admin *echo.Group) {
	bookings := api.Group("/bookings")
	bookings.POST("", h.CreateBooking)
	bookings.GET("", h.ListBookings)
	bookings.GET("/:id", h.GetBooking)
	bookings.POST("/:id/cancel", h.CancelBooking)
	bookings.POST("/:id/reschedule", h.RescheduleBooking)

	api.POST("/lifecycle/scan", h.Scan)

	admin.POST("/bookings/:id/confirm", h.ConfirmBooking)
	admin.POST("/bookings/:id/no-show", h.MarkNoShow)
}

func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var req dto.CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	booking, err := h.svc.CreateBooking(c.Request().Context(), middleware.SubjectID(c), service.CreateBookingInput{
		ProviderID:  req.ProviderID,
		Date:        req.Date,
		StartTime:   req.StartTime,
		Pillar:      models.Pillar(req.Pillar),
		PayerSource: models.PoolType(req.PayerSource),
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, h.render(booking))
}

// ListBookings lists the caller's bookings. Admins may list another subject's
// with ?subject_id=.
func (h *BookingHandler) ListBookings(c echo.Context) error {
	subjectID := middleware.SubjectID(c)
	if other := c.QueryParam("subject_id"); other != "" && middleware.IsAdmin(c) {
		subjectID = other
	}

	var status *models.BookingStatus
	if s := c.QueryParam("status"); s != "" {
		bs := models.BookingStatus(s)
		status = &bs
	}

	bookings, err := h.svc.ListBookings(c.Request().Context(), subjectID, status)
	if err != nil {
		return httpError(err)
	}

	resp := make([]dto.BookingResponse, len(bookings))
	for i := range bookings {
		resp[i] = h.render(&bookings[i])
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) GetBooking(c echo.Context) error {
	booking, err := h.authorize(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.render(booking))
}

func (h *BookingHandler) CancelBooking(c echo.Context) error {
	if _, err := h.authorize(c); err != nil {
		return err
	}
	return h.transition(c, h.lifecycle.Cancel)
}

func (h *BookingHandler) RescheduleBooking(c echo.Context) error {
	if _, err := h.authorize(c); err != nil {
		return err
	}

	var req dto.RescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	booking, err := h.lifecycle.Reschedule(c.Request().Context(), c.Param("id"), service.RescheduleInput{
		Date:      req.Date,
		StartTime: req.StartTime,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, h.render(booking))
}

func (h *BookingHandler) ConfirmBooking(c echo.Context) error {
	return h.transition(c, h.lifecycle.Confirm)
}

func (h *BookingHandler) MarkNoShow(c echo.Context) error {
	return h.transition(c, h.lifecycle.MarkNoShow)
}

// Scan runs the completion pass on demand. It takes no input and is safe to
// repeat, so clients call it whenever they need fresh statuses.
func (h *BookingHandler) Scan(c echo.Context) error {
	report, err := h.lifecycle.Scan(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *BookingHandler) transition(c echo.Context, fn func(ctx context.Context, id string) (*models.Booking, error)) error {
	booking, err := fn(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, h.render(booking))
}

// authorize loads the booking in the path and hides other subjects' bookings
// from non-admins.
func (h *BookingHandler) authorize(c echo.Context) (*models.Booking, error) {
	booking, err := h.svc.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, httpError(err)
	}
	if booking.SubjectID != middleware.SubjectID(c) && !middleware.IsAdmin(c) {
		return nil, echo.NewHTTPError(http.StatusNotFound, service.ErrBookingNotFound.Error())
	}
	return booking, nil
}

func (h *BookingHandler) render(b *models.Booking) dto.BookingResponse {
	return dto.ToBookingResponse(b, h.clock.Now(), h.loc)
}
