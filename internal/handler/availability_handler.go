package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/dto"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/service"
)

type AvailabilityHandler struct {
	svc service.AvailabilityService
}

func NewAvailabilityHandler(svc service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc}
}

func (h *AvailabilityHandler) RegisterRoutes(api, admin *echo.Group) {
	api.GET("/providers/:id/slots", h.GetSlots)

	admin.GET("/providers/:id/blackouts", h.GetBlackout)
	admin.PUT("/providers/:id/blackouts", h.Block)
	admin.DELETE("/providers/:id/blackouts", h.Unblock)
}

func (h *AvailabilityHandler) GetSlots(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}

	availability, err := h.svc.GetSlots(c.Request().Context(), c.Param("id"), date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, availability)
}

func (h *AvailabilityHandler) GetBlackout(c echo.Context) error {
	window, err := h.svc.GetBlackout(c.Request().Context(), c.Param("id"), c.QueryParam("date"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, window)
}

func (h *AvailabilityHandler) Block(c echo.Context) error {
	var req dto.BlackoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	window, err := h.svc.BlockTimes(c.Request().Context(), c.Param("id"), req.Date, req.Times, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, window)
}

func (h *AvailabilityHandler) Unblock(c echo.Context) error {
	var req dto.BlackoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	window, err := h.svc.UnblockTimes(c.Request().Context(), c.Param("id"), req.Date, req.Times)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, window)
}
