package usecase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/infra/security"
	"github.com/chibuezedev/florin-server/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func newTestJWTManager(t *testing.T, clock *testClock) *security.JWTManager {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return security.NewJWTManager(security.NewStaticKeyProvider("test", testKey), "florin-test", security.WithJWTClock(clock.Now))
}

func newTestHasher(t *testing.T) *security.Argon2Hasher {
	t.Helper()
	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return hasher
}

type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
}

func newMemoryAccounts(accounts ...domain.Account) *memoryAccounts {
	r := &memoryAccounts{accounts: make(map[string]domain.Account)}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *memoryAccounts) Create(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == account.Email {
			return repository.ErrConflict
		}
	}
	r.accounts[account.ID] = account
	return nil
}

func (r *memoryAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok {
		return &account, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memoryAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, account := range r.accounts {
		if account.Email == email {
			return &account, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryAccounts) GetByStudentID(_ context.Context, studentID string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.StudentID != nil && *account.StudentID == studentID {
			return &account, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryAccounts) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.LastLogin = &at
	r.accounts[id] = account
	return nil
}

type memoryCredentials struct {
	mu    sync.Mutex
	lists map[string][]domain.RefreshCredential
}

func newMemoryCredentials() *memoryCredentials {
	return &memoryCredentials{lists: make(map[string][]domain.RefreshCredential)}
}

func (s *memoryCredentials) Push(_ context.Context, accountID string, credential domain.RefreshCredential, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.lists[accountID], credential)
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	s.lists[accountID] = list
	return nil
}

func (s *memoryCredentials) Contains(_ context.Context, accountID, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.lists[accountID] {
		if c.TokenHash == tokenHash {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryCredentials) Remove(_ context.Context, accountID, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.lists[accountID][:0]
	for _, c := range s.lists[accountID] {
		if c.TokenHash != tokenHash {
			kept = append(kept, c)
		}
	}
	s.lists[accountID] = kept
	return nil
}

func (s *memoryCredentials) List(_ context.Context, accountID string) ([]domain.RefreshCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RefreshCredential(nil), s.lists[accountID]...), nil
}

type memorySamples struct {
	mu        sync.Mutex
	samples   map[string]domain.BehavioralSample
	createErr error
	timeline  []domain.TimelineBucket
	lastLimit int
	lastScope string
}

func newMemorySamples() *memorySamples {
	return &memorySamples{samples: make(map[string]domain.BehavioralSample)}
}

func (r *memorySamples) Create(_ context.Context, sample domain.BehavioralSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.samples[sample.ID] = sample
	return nil
}

func (r *memorySamples) AttachAssessment(_ context.Context, sampleID string, assessment domain.RiskAssessment, scoredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sample, ok := r.samples[sampleID]
	if !ok || sample.Assessment != nil {
		return repository.ErrConflict
	}
	sample.Assessment = &assessment
	sample.ScoredAt = &scoredAt
	r.samples[sampleID] = sample
	return nil
}

func (r *memorySamples) ListByAccount(_ context.Context, accountID string, limit int) ([]domain.BehavioralSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit = limit
	var out []domain.BehavioralSample
	for _, s := range r.samples {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memorySamples) ListRecent(_ context.Context, limit int) ([]domain.OwnedSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit = limit
	out := make([]domain.OwnedSample, 0, len(r.samples))
	for _, s := range r.samples {
		out = append(out, domain.OwnedSample{BehavioralSample: s, OwnerEmail: s.Email})
	}
	return out, nil
}

func (r *memorySamples) AnomalyTimeline(_ context.Context, accountID string, buckets int) ([]domain.TimelineBucket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastScope = accountID
	r.lastLimit = buckets
	return r.timeline, nil
}

func (r *memorySamples) get(id string) (domain.BehavioralSample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.samples[id]
	return s, ok
}

func (r *memorySamples) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

type memoryAlerts struct {
	mu         sync.Mutex
	alerts     []domain.Alert
	createErr  error
	lastFilter domain.AlertFilter
}

func (r *memoryAlerts) Create(_ context.Context, alert domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *memoryAlerts) List(_ context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	return append([]domain.Alert(nil), r.alerts...), nil
}

func (r *memoryAlerts) Resolve(_ context.Context, alertID, resolverID string, notes *string, at time.Time) (*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.alerts {
		if r.alerts[i].ID == alertID {
			r.alerts[i].Resolved = true
			r.alerts[i].ResolvedAt = &at
			r.alerts[i].ResolvedBy = &resolverID
			r.alerts[i].Notes = notes
			out := r.alerts[i]
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryAlerts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

type recordingPublisher struct {
	mu         sync.Mutex
	registered []domain.AccountRegisteredEvent
	revoked    []domain.SessionRevokedEvent
	raised     []domain.AlertRaisedEvent
	err        error
}

func (p *recordingPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, event)
	return p.err
}

func (p *recordingPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, event)
	return p.err
}

func (p *recordingPublisher) PublishAlertRaised(_ context.Context, event domain.AlertRaisedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raised = append(p.raised, event)
	return p.err
}

type fixedScorer struct {
	mu         sync.Mutex
	assessment domain.RiskAssessment
	seen       []domain.FeatureVector
}

func (s *fixedScorer) Score(_ context.Context, features domain.FeatureVector) domain.RiskAssessment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, features)
	return s.assessment
}

type stubCooldown struct {
	acquired bool
	err      error
	calls    int
}

func (c *stubCooldown) Acquire(context.Context, string, time.Duration) (bool, error) {
	c.calls++
	return c.acquired, c.err
}

type failingSink struct{ calls int }

func (s *failingSink) Emit(context.Context, AlertInput) (*domain.Alert, error) {
	s.calls++
	return nil, errors.New("alert store down")
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
