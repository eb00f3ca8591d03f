package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/core/port"
	"github.com/chibuezedev/florin-server/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, relative to the configured topic prefix.
const (
	EventAccountRegistered = "account.registered"
	EventSessionRevoked    = "session.revoked"
	EventAlertRaised       = "alert.raised"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	AccountID string            `json:"account_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: p.producer.TopicName(eventType),
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(accountID),
		Value: sarama.ByteEncoder(body),
	}

	select {
	case p.producer.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountRegistered publishes florin.account.registered events.
func (p *EventPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		AccountID    string    `json:"account_id"`
		Email        string    `json:"email"`
		Role         string    `json:"role"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		AccountID:    event.AccountID,
		Email:        event.Email,
		Role:         string(event.Role),
		RegisteredAt: event.RegisteredAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventAccountRegistered, event.AccountID, event.RegisteredAt, payload)
}

// PublishSessionRevoked publishes florin.session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		Reason    string    `json:"reason"`
		RevokedAt time.Time `json:"revoked_at"`
	}{
		AccountID: event.AccountID,
		Reason:    event.Reason,
		RevokedAt: event.RevokedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventSessionRevoked, event.AccountID, event.RevokedAt, payload)
}

// PublishAlertRaised publishes florin.alert.raised events.
func (p *EventPublisher) PublishAlertRaised(ctx context.Context, event domain.AlertRaisedEvent) error {
	payload := struct {
		AlertID      string    `json:"alert_id"`
		AccountID    string    `json:"account_id"`
		Type         string    `json:"type"`
		Severity     string    `json:"severity"`
		AnomalyScore float64   `json:"anomaly_score"`
		SampleID     string    `json:"sample_id"`
		RaisedAt     time.Time `json:"raised_at"`
	}{
		AlertID:      event.AlertID,
		AccountID:    event.AccountID,
		Type:         string(event.Type),
		Severity:     string(event.Severity),
		AnomalyScore: event.AnomalyScore,
		SampleID:     event.SampleID,
		RaisedAt:     event.RaisedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventAlertRaised, event.AccountID, event.RaisedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
