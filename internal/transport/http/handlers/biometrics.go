package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/transport/http/middleware"
)

// SampleService reads back persisted behavioral samples.
type SampleService interface {
	History(ctx context.Context, accountID string, limit int) ([]domain.BehavioralSample, error)
	Recent(ctx context.Context, limit int) ([]domain.OwnedSample, error)
	AnomalyTimeline(ctx context.Context, accountID string) ([]domain.TimelineBucket, error)
}

// BiometricsHandler exposes sample history and anomaly timelines.
type BiometricsHandler struct {
	samples      SampleService
	historyLimit int
}

func NewBiometricsHandler(samples SampleService, historyLimit int) *BiometricsHandler {
	ConfigureValidator()
	return &BiometricsHandler{samples: samples, historyLimit: historyLimit}
}

type timelineQuery struct {
	UserID string `form:"user_id" binding:"omitempty,uuid"`
}

// History lists the caller's most recent samples.
func (h *BiometricsHandler) History(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		middleware.Abort(c, http.StatusUnauthorized, middleware.CodeAuthRequired, "authentication required")
		return
	}

	samples, err := h.samples.History(c.Request.Context(), principal.AccountID, h.historyLimit)
	if err != nil {
		RespondWithMappedError(c, err, nil, "failed to load behavioral history")
		return
	}

	views := make([]SampleView, 0, len(samples))
	for _, s := range samples {
		views = append(views, newSampleView(s))
	}
	c.JSON(http.StatusOK, HistoryResponse{Samples: views, Count: len(views)})
}

// Recent lists the newest samples across all accounts.
func (h *BiometricsHandler) Recent(c *gin.Context) {
	samples, err := h.samples.Recent(c.Request.Context(), h.historyLimit)
	if err != nil {
		RespondWithMappedError(c, err, nil, "failed to load behavioral samples")
		return
	}

	views := make([]OwnedSampleView, 0, len(samples))
	for _, s := range samples {
		views = append(views, newOwnedSampleView(s))
	}
	c.JSON(http.StatusOK, RecentSamplesResponse{Samples: views, Count: len(views)})
}

// Anomalies returns the caller's hourly anomaly timeline.
func (h *BiometricsHandler) Anomalies(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		middleware.Abort(c, http.StatusUnauthorized, middleware.CodeAuthRequired, "authentication required")
		return
	}
	h.timeline(c, principal.AccountID)
}

// Timeline returns the hourly anomaly timeline across all accounts, or for user_id when given.
func (h *BiometricsHandler) Timeline(c *gin.Context) {
	var q timelineQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	h.timeline(c, q.UserID)
}

func (h *BiometricsHandler) timeline(c *gin.Context, accountID string) {
	buckets, err := h.samples.AnomalyTimeline(c.Request.Context(), accountID)
	if err != nil {
		RespondWithMappedError(c, err, nil, "failed to load anomaly timeline")
		return
	}
	c.JSON(http.StatusOK, newTimelineResponse(buckets))
}
