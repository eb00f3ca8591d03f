package port

import (
	"context"

	"github.com/chibuezedev/florin-server/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
	PublishAlertRaised(ctx context.Context, event domain.AlertRaisedEvent) error
}
