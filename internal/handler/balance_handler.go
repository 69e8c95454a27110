package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/dto"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/middleware"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/realtime"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/service"
)

const defaultKeepAlive = 25 * time.Second

type Subscriber interface {
	Subscribe(subjectID string, onChange func(realtime.Change)) *realtime.Subscription
}

type BalanceHandler struct {
	quota     service.QuotaLedger
	hub       Subscriber
	keepAlive time.Duration
}

func NewBalanceHandler(quota service.QuotaLedger, hub Subscriber) *BalanceHandler {
	return &BalanceHandler{quota: quota, hub: hub, keepAlive: defaultKeepAlive}
}

func (h *BalanceHandler) RegisterRoutes(api, admin *echo.Group) {
	api.GET("/me/balance", h.GetMyBalance)
	api.GET("/me/balance/stream", h.StreamMyBalance)

	api.GET("/subjects/:id/balance", h.GetSubjectBalance, middleware.RequireRole(middleware.RoleAdmin))
	admin.POST("/allocations", h.Grant)
}

func (h *BalanceHandler) GetMyBalance(c echo.Context) error {
	return h.balance(c, middleware.SubjectID(c))
}

func (h *BalanceHandler) GetSubjectBalance(c echo.Context) error {
	return h.balance(c, c.Param("id"))
}

func (h *BalanceHandler) balance(c echo.Context, subjectID string) error {
	balance, err := h.quota.GetBalance(c.Request().Context(), subjectID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dto.BalanceResponse{SubjectID: subjectID, Balance: balance})
}

func (h *BalanceHandler) Grant(c echo.Context) error {
	var req dto.GrantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	alloc, err := h.quota.Grant(c.Request().Context(), req.SubjectID, models.PoolType(req.PoolType), req.Sessions)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, alloc)
}

// StreamMyBalance pushes the caller's balance as server-sent events: once on
// connect and again after every allocation change. Change notices only trigger
// a fresh read; the payload always comes from the ledger.
func (h *BalanceHandler) StreamMyBalance(c echo.Context) error {
	subjectID := middleware.SubjectID(c)
	ctx := c.Request().Context()

	changed := make(chan struct{}, 1)
	sub := h.hub.Subscribe(subjectID, func(ch realtime.Change) {
		if ch.Kind != realtime.ChangeAllocation {
			return
		}
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer sub.Unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	if err := h.push(c, subjectID); err != nil {
		return nil
	}

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if err := h.push(c, subjectID); err != nil {
				return nil
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(res, ": keepalive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

// push writes one event. Ledger read failures become an error event and the
// stream stays open; only write failures end it.
func (h *BalanceHandler) push(c echo.Context, subjectID string) error {
	res := c.Response()

	event, payload := "balance", []byte(nil)
	balance, err := h.quota.GetBalance(c.Request().Context(), subjectID)
	if err != nil {
		log.Printf("[Balance] stream read for %s failed: %v", subjectID, err)
		event = "error"
		payload, _ = json.Marshal(dto.ErrorResponse{Message: "balance temporarily unavailable"})
	} else {
		payload, _ = json.Marshal(dto.BalanceResponse{SubjectID: subjectID, Balance: balance})
	}

	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	res.Flush()
	return nil
}
