package usecase

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/infra/metrics"
)

// DefaultAlertThreshold is the minimum anomaly score at which a high-tier assessment alerts.
const DefaultAlertThreshold = 50.0

// AlertSink raises alerts on behalf of the gate.
type AlertSink interface {
	Emit(ctx context.Context, in AlertInput) (*domain.Alert, error)
}

// GateOption customises an AccessDecisionGate.
type GateOption func(*AccessDecisionGate)

// WithAlertThreshold overrides the score floor for alerting on high-tier assessments.
func WithAlertThreshold(threshold float64) GateOption {
	return func(g *AccessDecisionGate) {
		g.threshold = threshold
	}
}

// WithGateRegisterer records decisions in the given Prometheus registry.
func WithGateRegisterer(reg prometheus.Registerer) GateOption {
	return func(g *AccessDecisionGate) {
		g.registerer = reg
	}
}

// AccessDecisionGate turns a risk assessment into allow, allow_flagged, or block.
type AccessDecisionGate struct {
	alerts     AlertSink
	threshold  float64
	logger     *zap.Logger
	registerer prometheus.Registerer
	decisions  *prometheus.CounterVec
}

// NewAccessDecisionGate constructs the gate. A nil sink disables alerting.
func NewAccessDecisionGate(alerts AlertSink, logger *zap.Logger, opts ...GateOption) (*AccessDecisionGate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &AccessDecisionGate{
		alerts:    alerts,
		threshold: DefaultAlertThreshold,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(g)
	}

	decisions, err := metrics.Register(g.registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "gate",
		Name:      "decisions_total",
		Help:      "Access decisions taken by the risk gate.",
	}, []string{"action"}))
	if err != nil {
		return nil, err
	}
	g.decisions = decisions
	return g, nil
}

// Decide applies the decision table. Alerting failures never change the decision.
func (g *AccessDecisionGate) Decide(ctx context.Context, in AlertInput) domain.Decision {
	assessment := in.Assessment
	decision := domain.Decision{Action: domain.DecisionAllow, Assessment: assessment}

	critical := assessment.Tier == domain.RiskTierCritical
	if critical {
		decision.Action = domain.DecisionBlock
		decision.Reason = domain.ReasonRiskBlocked
	}

	if g.shouldAlert(assessment) {
		if !critical {
			decision.Action = domain.DecisionAllowFlagged
		}
		if g.alerts != nil {
			alert, err := g.alerts.Emit(ctx, in)
			if err != nil {
				g.logger.Error("raise alert failed",
					zap.String("account_id", in.Account.ID),
					zap.String("sample_id", in.Sample.ID),
					zap.Error(err),
				)
			} else if alert != nil {
				decision.Alerted = true
				decision.Alert = alert
			}
		}
	}

	g.decisions.WithLabelValues(string(decision.Action)).Inc()
	if decision.Action != domain.DecisionAllow {
		g.logger.Warn("risk gate flagged request",
			zap.String("account_id", in.Account.ID),
			zap.String("action", string(decision.Action)),
			zap.Float64("anomaly_score", assessment.AnomalyScore),
			zap.String("risk_tier", string(assessment.Tier)),
		)
	}
	return decision
}

func (g *AccessDecisionGate) shouldAlert(a domain.RiskAssessment) bool {
	if a.Degraded {
		return false
	}
	if a.Tier == domain.RiskTierCritical {
		return true
	}
	return a.Tier.AtLeast(domain.RiskTierHigh) && a.AnomalyScore >= g.threshold
}
