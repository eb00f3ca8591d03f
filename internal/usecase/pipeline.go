package usecase

import (
	"context"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/core/port"
)

// DefaultPersistTimeout bounds the detached sample write.
const DefaultPersistTimeout = 10 * time.Second

// RiskPipeline scores one behavioral sample and hands the result to the gate.
type RiskPipeline struct {
	deriver        *FeatureDeriver
	scorer         port.RiskScorer
	gate           *AccessDecisionGate
	samples        port.SampleRepository
	logger         *zap.Logger
	persistTimeout time.Duration
	now            func() time.Time
	wg             sync.WaitGroup
}

// NewRiskPipeline constructs a RiskPipeline. A non-positive timeout selects DefaultPersistTimeout.
func NewRiskPipeline(
	deriver *FeatureDeriver,
	scorer port.RiskScorer,
	gate *AccessDecisionGate,
	samples port.SampleRepository,
	persistTimeout time.Duration,
	logger *zap.Logger,
) *RiskPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if persistTimeout <= 0 {
		persistTimeout = DefaultPersistTimeout
	}
	if deriver == nil {
		deriver = NewFeatureDeriver()
	}
	return &RiskPipeline{
		deriver:        deriver,
		scorer:         scorer,
		gate:           gate,
		samples:        samples,
		logger:         logger,
		persistTimeout: persistTimeout,
		now:            time.Now,
	}
}

// Evaluate returns the gate decision for sample. Caller cancellation is ignored
// from here on; the sample write continues in the background.
func (p *RiskPipeline) Evaluate(ctx context.Context, account domain.Account, sample domain.BehavioralSample) domain.Decision {
	ctx = context.WithoutCancel(ctx)

	if sample.ID == "" {
		sample.ID = uuid.NewString()
	}
	sample.AccountID = account.ID
	sample.Email = account.Email
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = p.now().UTC()
	}
	sample.Assessment = nil
	sample.ScoredAt = nil

	features := p.deriver.Derive(sample, account.Role)

	outcomes := make(chan gateOutcome, 1)
	p.wg.Add(1)
	go p.persist(ctx, sample, outcomes)

	assessment := p.scorer.Score(ctx, features)
	decision := p.gate.Decide(ctx, AlertInput{Account: account, Sample: sample, Assessment: assessment})

	outcome := gateOutcome{assessment: assessment}
	if decision.Alert != nil {
		outcome.alertID = decision.Alert.ID
	}
	outcomes <- outcome
	return decision
}

// gateOutcome is what the background writer needs from the request path.
type gateOutcome struct {
	assessment domain.RiskAssessment
	alertID    string
}

// Wait blocks until all in-flight sample writes have finished.
func (p *RiskPipeline) Wait() {
	p.wg.Wait()
}

func (p *RiskPipeline) persist(parent context.Context, sample domain.BehavioralSample, outcomes <-chan gateOutcome) {
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(parent, p.persistTimeout)
	defer cancel()

	log := p.logger.With(zap.String("sample_id", sample.ID), zap.String("account_id", sample.AccountID))
	createErr := p.samples.Create(ctx, sample)

	var outcome gateOutcome
	select {
	case outcome = <-outcomes:
	case <-ctx.Done():
		if createErr != nil {
			log.Error("persist behavioral sample failed", zap.Error(createErr))
			return
		}
		log.Warn("assessment not available before persist deadline", zap.Error(ctx.Err()))
		return
	}

	if createErr != nil {
		fields := []zap.Field{zap.Error(createErr)}
		if outcome.alertID != "" {
			// The alert row keeps sample_id even though the sample never landed.
			fields = append(fields, zap.String("orphaned_alert_id", outcome.alertID))
		}
		log.Error("persist behavioral sample failed", fields...)
		return
	}

	// Fail-open results leave the sample unscored.
	if outcome.assessment.Degraded {
		return
	}
	if err := p.samples.AttachAssessment(ctx, sample.ID, outcome.assessment, p.now().UTC()); err != nil {
		log.Error("attach assessment failed", zap.Error(err))
	}
}
