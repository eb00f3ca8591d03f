package port

import (
	"context"

	"github.com/chibuezedev/florin-server/internal/core/domain"
)

// RiskScorer scores a feature vector. Implementations never fail; they fall
// back to domain.FailOpenAssessment when the model cannot answer.
type RiskScorer interface {
	Score(ctx context.Context, features domain.FeatureVector) domain.RiskAssessment
}
