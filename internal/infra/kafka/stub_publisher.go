package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/core/port"
	"github.com/chibuezedev/florin-server/internal/infra/logger"
)

// StubPublisher logs events instead of sending them. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	p.logger.Info("stub event published", append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	p.logEvent(EventAccountRegistered, event.AccountID, event.RegisteredAt,
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("role", string(event.Role)),
	)
	return nil
}

func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	p.logEvent(EventSessionRevoked, event.AccountID, event.RevokedAt, zap.String("reason", event.Reason))
	return nil
}

func (p *StubPublisher) PublishAlertRaised(_ context.Context, event domain.AlertRaisedEvent) error {
	p.logEvent(EventAlertRaised, event.AccountID, event.RaisedAt,
		zap.String("alert_id", event.AlertID),
		zap.String("severity", string(event.Severity)),
		zap.Float64("anomaly_score", event.AnomalyScore),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
