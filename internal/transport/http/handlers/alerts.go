package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/transport/http/middleware"
	"github.com/chibuezedev/florin-server/internal/usecase"
)

// AlertService is the review queue surface used by AlertHandler.
type AlertService interface {
	List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error)
	Resolve(ctx context.Context, alertID, resolverID string, notes *string) (*domain.Alert, error)
}

var alertErrorCases = []ErrorCase{
	{Err: usecase.ErrAlertNotFound, Status: http.StatusNotFound, Code: middleware.CodeNotFound, Message: "alert not found"},
}

// AlertHandler serves the security review queue.
type AlertHandler struct {
	alerts AlertService
}

func NewAlertHandler(alerts AlertService) *AlertHandler {
	ConfigureValidator()
	return &AlertHandler{alerts: alerts}
}

// List returns alerts filtered by status and, optionally, account.
func (h *AlertHandler) List(c *gin.Context) {
	var q AlertQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	alerts, err := h.alerts.List(c.Request.Context(), domain.AlertFilter{
		Status:    domain.AlertStatus(q.Filter),
		AccountID: q.UserID,
		Limit:     q.Limit,
	})
	if err != nil {
		RespondWithMappedError(c, err, alertErrorCases, "failed to list alerts")
		return
	}

	views := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		views = append(views, newAlertView(a))
	}
	c.JSON(http.StatusOK, AlertListResponse{Alerts: views, Count: len(views)})
}

// Resolve marks an alert resolved by the caller.
func (h *AlertHandler) Resolve(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		middleware.Abort(c, http.StatusUnauthorized, middleware.CodeAuthRequired, "authentication required")
		return
	}

	var req ResolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	alert, err := h.alerts.Resolve(c.Request.Context(), c.Param("id"), principal.AccountID, req.Notes)
	if err != nil {
		RespondWithMappedError(c, err, alertErrorCases, "failed to resolve alert")
		return
	}

	c.JSON(http.StatusOK, ResolveAlertResponse{Message: "alert resolved", Alert: newAlertView(*alert)})
}
