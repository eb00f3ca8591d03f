package usecase

import (
	"context"
	"fmt"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/core/port"
)

const (
	// MaxHistoryLimit caps sample history listings.
	MaxHistoryLimit = 50
	// TimelineBuckets is the number of hourly buckets returned by AnomalyTimeline.
	TimelineBuckets = 24
)

// SampleService reads back persisted behavioral samples.
type SampleService struct {
	samples port.SampleRepository
}

func NewSampleService(samples port.SampleRepository) *SampleService {
	return &SampleService{samples: samples}
}

// History returns the account's most recent samples, newest first.
func (s *SampleService) History(ctx context.Context, accountID string, limit int) ([]domain.BehavioralSample, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	samples, err := s.samples.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	return samples, nil
}

// Recent returns the newest samples across all accounts with their owners.
func (s *SampleService) Recent(ctx context.Context, limit int) ([]domain.OwnedSample, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	samples, err := s.samples.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent samples: %w", err)
	}
	return samples, nil
}

// AnomalyTimeline returns hourly score buckets in ascending order. An empty
// accountID aggregates across all accounts.
func (s *SampleService) AnomalyTimeline(ctx context.Context, accountID string) ([]domain.TimelineBucket, error) {
	buckets, err := s.samples.AnomalyTimeline(ctx, accountID, TimelineBuckets)
	if err != nil {
		return nil, fmt.Errorf("anomaly timeline: %w", err)
	}
	return buckets, nil
}
