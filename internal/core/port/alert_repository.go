package port

import (
	"context"
	"time"

	"github.com/chibuezedev/florin-server/internal/core/domain"
)

// AlertRepository persists alerts and their resolution state.
type AlertRepository interface {
	Create(ctx context.Context, alert domain.Alert) error
	List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error)
	Resolve(ctx context.Context, alertID, resolverID string, notes *string, at time.Time) (*domain.Alert, error)
}

// AlertCooldown suppresses repeated alerts for the same account inside a window.
type AlertCooldown interface {
	// Acquire reports true when no alert was raised for the account within ttl, and starts a new window.
	Acquire(ctx context.Context, accountID string, ttl time.Duration) (bool, error)
}
