// Package scoring calls the external anomaly scoring model.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/infra/metrics"
)

const (
	DefaultEndpoint = "http://localhost:8000/predict"
	DefaultTimeout  = 3 * time.Second

	maxResponseBytes = 64 << 10
)

// Failure reasons reported on florin_scoring_failures_total.
const (
	ReasonTimeout     = "timeout"
	ReasonTransport   = "transport"
	ReasonStatus      = "status"
	ReasonDecode      = "decode"
	ReasonInvalid     = "invalid"
	ReasonCircuitOpen = "circuit_open"
)

// Config configures the scoring client.
type Config struct {
	Endpoint            string
	Timeout             time.Duration
	BreakerThreshold    int
	BreakerOpenDuration time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRegisterer registers the client's collectors on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

// WithClock overrides the clock driving the circuit breaker.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client implements port.RiskScorer over HTTP. It never returns an error:
// every failure yields domain.FailOpenAssessment.
type Client struct {
	endpoint   string
	timeout    time.Duration
	http       *http.Client
	breaker    *breaker
	logger     *zap.Logger
	registerer prometheus.Registerer
	now        func() time.Time

	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	transitions *prometheus.CounterVec
}

type scoreResponse struct {
	AnomalyScore *float64 `json:"anomalyScore"`
	RiskTier     string   `json:"riskTier"`
	RiskLevel    string   `json:"riskLevel"`
}

type scoreError struct {
	reason string
	err    error
}

func (e *scoreError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *scoreError) Unwrap() error { return e.err }

// NewClient constructs a scoring client.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		http:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger:   logger.Named("scoring"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	if c.failures, err = metrics.Register(c.registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "scoring",
		Name:      "failures_total",
		Help:      "Scoring calls that fell back to the fail-open assessment, by reason.",
	}, []string{"reason"})); err != nil {
		return nil, err
	}
	if c.duration, err = metrics.Register(c.registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metrics.Namespace,
		Subsystem: "scoring",
		Name:      "duration_seconds",
		Help:      "Latency of scoring calls, by outcome.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if c.transitions, err = metrics.Register(c.registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "scoring",
		Name:      "breaker_transitions_total",
		Help:      "Scoring circuit breaker state transitions.",
	}, []string{"from_state", "to_state"})); err != nil {
		return nil, err
	}

	c.breaker = newBreaker(cfg.BreakerThreshold, cfg.BreakerOpenDuration, c.now)
	c.breaker.onTransition = func(from, to breakerState) {
		c.transitions.WithLabelValues(from.String(), to.String()).Inc()
		c.logger.Warn("scoring circuit breaker transition",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return c, nil
}

// Score sends the feature vector to the model within the configured deadline.
func (c *Client) Score(ctx context.Context, features domain.FeatureVector) domain.RiskAssessment {
	start := time.Now()
	if !c.breaker.allow() {
		c.failures.WithLabelValues(ReasonCircuitOpen).Inc()
		return domain.FailOpenAssessment()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	assessment, err := c.call(ctx, features)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		reason := ReasonTransport
		var se *scoreError
		if errors.As(err, &se) {
			reason = se.reason
		}
		c.breaker.recordFailure()
		c.failures.WithLabelValues(reason).Inc()
		c.duration.WithLabelValues("failure").Observe(elapsed)
		c.logger.Warn("scoring failed, using fail-open assessment",
			zap.String("reason", reason),
			zap.String("account_id", features.AccountID),
			zap.Error(err),
		)
		return domain.FailOpenAssessment()
	}

	c.breaker.recordSuccess()
	c.duration.WithLabelValues("success").Observe(elapsed)
	return assessment
}

func (c *Client) call(ctx context.Context, features domain.FeatureVector) (domain.RiskAssessment, error) {
	body, err := json.Marshal(features.Map())
	if err != nil {
		return domain.RiskAssessment{}, &scoreError{reason: ReasonDecode, err: fmt.Errorf("encode features: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.RiskAssessment{}, &scoreError{reason: ReasonTransport, err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.RiskAssessment{}, &scoreError{reason: ReasonTimeout, err: err}
		}
		return domain.RiskAssessment{}, &scoreError{reason: ReasonTransport, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return domain.RiskAssessment{}, &scoreError{reason: ReasonStatus, err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var payload scoreResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.RiskAssessment{}, &scoreError{reason: ReasonTimeout, err: err}
		}
		return domain.RiskAssessment{}, &scoreError{reason: ReasonDecode, err: err}
	}
	return payload.assessment()
}

func (r scoreResponse) assessment() (domain.RiskAssessment, error) {
	if r.AnomalyScore == nil {
		return domain.RiskAssessment{}, &scoreError{reason: ReasonInvalid, err: errors.New("anomalyScore missing")}
	}
	score := *r.AnomalyScore
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 100 {
		return domain.RiskAssessment{}, &scoreError{reason: ReasonInvalid, err: fmt.Errorf("anomalyScore %v out of range", score)}
	}

	raw := r.RiskTier
	if raw == "" {
		raw = r.RiskLevel
	}
	tier, ok := domain.ParseRiskTier(raw)
	if !ok {
		return domain.RiskAssessment{}, &scoreError{reason: ReasonInvalid, err: fmt.Errorf("unknown risk tier %q", raw)}
	}
	return domain.RiskAssessment{AnomalyScore: score, Tier: tier}, nil
}
