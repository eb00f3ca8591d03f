package port

import (
	"context"
	"time"

	"github.com/chibuezedev/florin-server/internal/core/domain"
)

// SampleRepository persists behavioral samples and their one-time assessment.
type SampleRepository interface {
	Create(ctx context.Context, sample domain.BehavioralSample) error
	// AttachAssessment sets the scoring fields if, and only if, they are still unset.
	AttachAssessment(ctx context.Context, sampleID string, assessment domain.RiskAssessment, scoredAt time.Time) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]domain.BehavioralSample, error)
	// ListRecent returns the newest samples across every account with their owners.
	ListRecent(ctx context.Context, limit int) ([]domain.OwnedSample, error)
	AnomalyTimeline(ctx context.Context, accountID string, buckets int) ([]domain.TimelineBucket, error)
}
