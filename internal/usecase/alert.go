package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/core/port"
	"github.com/chibuezedev/florin-server/internal/repository"
)

const (
	// MaxAlertListLimit caps alert listings.
	MaxAlertListLimit = 50

	behavioralScoreFloor = 70.0
	locationAnomalyBelow = 50.0
	unusualHourBefore    = 6
	unusualHourAfter     = 22
)

// ErrAlertNotFound indicates the alert to resolve does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// AlertInput is everything needed to raise one alert.
type AlertInput struct {
	Account    domain.Account
	Sample     domain.BehavioralSample
	Assessment domain.RiskAssessment
}

// AlertEmitterOption customises an AlertEmitter.
type AlertEmitterOption func(*AlertEmitter)

// WithAlertCooldown suppresses further alerts for an account for ttl after one is raised.
func WithAlertCooldown(cooldown port.AlertCooldown, ttl time.Duration) AlertEmitterOption {
	return func(e *AlertEmitter) {
		e.cooldown = cooldown
		e.cooldownTTL = ttl
	}
}

// WithAlertClock overrides the wall clock used for the unusual-time flag and timestamps.
func WithAlertClock(now func() time.Time) AlertEmitterOption {
	return func(e *AlertEmitter) {
		if now != nil {
			e.now = now
		}
	}
}

// AlertEmitter persists alerts and announces them on the event bus.
type AlertEmitter struct {
	alerts      port.AlertRepository
	events      port.EventPublisher
	cooldown    port.AlertCooldown
	cooldownTTL time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewAlertEmitter constructs an AlertEmitter. A nil publisher disables events.
func NewAlertEmitter(alerts port.AlertRepository, events port.EventPublisher, logger *zap.Logger, opts ...AlertEmitterOption) *AlertEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &AlertEmitter{
		alerts: alerts,
		events: events,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit persists an alert for the input. It returns a nil alert without error
// when the account is inside its cool-down window.
func (e *AlertEmitter) Emit(ctx context.Context, in AlertInput) (*domain.Alert, error) {
	if e.cooldown != nil && e.cooldownTTL > 0 {
		acquired, err := e.cooldown.Acquire(ctx, in.Account.ID, e.cooldownTTL)
		switch {
		case err != nil:
			e.logger.Warn("alert cooldown check failed", zap.String("account_id", in.Account.ID), zap.Error(err))
		case !acquired:
			e.logger.Info("alert suppressed by cooldown",
				zap.String("account_id", in.Account.ID),
				zap.String("sample_id", in.Sample.ID),
				zap.Float64("anomaly_score", in.Assessment.AnomalyScore),
			)
			return nil, nil
		}
	}

	now := e.now()
	details := buildAlertDetails(in.Sample, now)
	alertType := classifyAlert(in.Assessment.AnomalyScore, details)

	alert := domain.Alert{
		ID:           uuid.NewString(),
		AccountID:    in.Account.ID,
		AccountName:  in.Account.Name,
		Email:        in.Account.Email,
		Type:         alertType,
		Severity:     in.Assessment.Tier,
		Description:  describeAlert(alertType, in.Assessment.AnomalyScore, details),
		AnomalyScore: in.Assessment.AnomalyScore,
		Details:      details,
		SampleID:     in.Sample.ID,
		CreatedAt:    now.UTC(),
	}

	if err := e.alerts.Create(ctx, alert); err != nil {
		return nil, fmt.Errorf("persist alert: %w", err)
	}

	if e.events != nil {
		event := domain.AlertRaisedEvent{
			EventID:      uuid.NewString(),
			AlertID:      alert.ID,
			AccountID:    alert.AccountID,
			Type:         alert.Type,
			Severity:     alert.Severity,
			AnomalyScore: alert.AnomalyScore,
			SampleID:     alert.SampleID,
			RaisedAt:     alert.CreatedAt,
		}
		if err := e.events.PublishAlertRaised(ctx, event); err != nil {
			e.logger.Warn("publish alert raised failed", zap.String("alert_id", alert.ID), zap.Error(err))
		}
	}

	return &alert, nil
}

func buildAlertDetails(sample domain.BehavioralSample, now time.Time) domain.AlertDetails {
	details := domain.AlertDetails{
		IPAddress:         sample.IPAddress,
		DeviceFingerprint: sample.DeviceFingerprint,
	}
	if acc := sample.Typing.Accuracy; acc != nil && *acc != 0 {
		rhythm := 100 - *acc
		details.TypingRhythm = &rhythm
	}
	if failed := sample.Logon.FailedAttempts; failed != nil && *failed != 0 {
		n := *failed
		details.FailedLogins = &n
	}
	hour := now.Hour()
	details.UnusualTime = hour < unusualHourBefore || hour > unusualHourAfter
	if loc := sample.Logon.LocationConsistency; loc != nil && *loc < locationAnomalyBelow {
		details.LocationAnomaly = true
	}
	return details
}

func classifyAlert(score float64, details domain.AlertDetails) domain.AlertType {
	switch {
	case score > behavioralScoreFloor:
		return domain.AlertTypeBehavioral
	case details.LocationAnomaly || details.UnusualTime:
		return domain.AlertTypeAccess
	default:
		return domain.AlertTypeLogin
	}
}

func describeAlert(alertType domain.AlertType, score float64, details domain.AlertDetails) string {
	s := strconv.FormatFloat(score, 'f', -1, 64)
	switch alertType {
	case domain.AlertTypeBehavioral:
		return "Unusual behavioral pattern detected with anomaly score of " + s +
			". Typing rhythm and interaction patterns differ from established baseline."
	case domain.AlertTypeAccess:
		switch {
		case details.LocationAnomaly && details.UnusualTime:
			return "Login from unusual location at atypical time. Anomaly score: " + s + "."
		case details.LocationAnomaly:
			return "Login detected from unusual location. Anomaly score: " + s + "."
		case details.UnusualTime:
			return "Login attempt at unusual time (outside typical hours). Anomaly score: " + s + "."
		}
	case domain.AlertTypeLogin:
		if details.FailedLogins != nil && *details.FailedLogins > 0 {
			return "Multiple failed login attempts detected before successful login. Anomaly score: " + s + "."
		}
		return "Login pattern deviates from normal behavior. Anomaly score: " + s + "."
	}
	return "Suspicious activity detected with anomaly score of " + s + "."
}

// AlertService serves the review queue.
type AlertService struct {
	alerts port.AlertRepository
	now    func() time.Time
}

func NewAlertService(alerts port.AlertRepository) *AlertService {
	return &AlertService{alerts: alerts, now: time.Now}
}

// List returns alerts newest first. Unknown statuses fall back to active.
func (s *AlertService) List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	switch filter.Status {
	case domain.AlertStatusActive, domain.AlertStatusResolved, domain.AlertStatusAll:
	default:
		filter.Status = domain.AlertStatusActive
	}
	if filter.Limit <= 0 || filter.Limit > MaxAlertListLimit {
		filter.Limit = MaxAlertListLimit
	}
	filter.AccountID = strings.TrimSpace(filter.AccountID)

	alerts, err := s.alerts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// Resolve marks the alert resolved by resolverID.
func (s *AlertService) Resolve(ctx context.Context, alertID, resolverID string, notes *string) (*domain.Alert, error) {
	if _, err := uuid.Parse(alertID); err != nil {
		return nil, ErrAlertNotFound
	}
	alert, err := s.alerts.Resolve(ctx, alertID, resolverID, trimmed(notes), s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("resolve alert: %w", err)
	}
	return alert, nil
}
