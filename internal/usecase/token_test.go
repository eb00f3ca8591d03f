package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/infra/security"
)

func newTokenFixture(t *testing.T, settings TokenSettings) (*TokenManager, *memoryAccounts, *memoryCredentials, *testClock, domain.Account) {
	t.Helper()
	clock := newTestClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	account := domain.Account{ID: "acc-1", Name: "Ada", Email: "ada@example.edu", Role: domain.RoleStudent, IsActive: true}
	accounts := newMemoryAccounts(account)
	credentials := newMemoryCredentials()
	manager := NewTokenManager(newTestJWTManager(t, clock), accounts, credentials, settings)
	return manager, accounts, credentials, clock, account
}

func TestTokenManagerCapsRefreshCredentials(t *testing.T) {
	manager, _, credentials, clock, account := newTokenFixture(t, TokenSettings{})
	ctx := context.Background()

	var pairs []domain.TokenPair
	for i := 0; i < 6; i++ {
		pair, err := manager.Issue(ctx, account)
		if err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
		pairs = append(pairs, pair)
		clock.Set(clock.Now().Add(time.Second))
	}

	list, _ := credentials.List(ctx, account.ID)
	if len(list) != domain.DefaultMaxRefreshCredentials {
		t.Fatalf("expected %d credentials, got %d", domain.DefaultMaxRefreshCredentials, len(list))
	}
	if list[0].TokenHash != security.HashToken(pairs[1].RefreshToken) {
		t.Fatalf("expected oldest surviving credential to be the second issued")
	}

	if _, _, err := manager.Refresh(ctx, pairs[0].RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected evicted token to be rejected, got %v", err)
	}
	if _, _, err := manager.Refresh(ctx, pairs[5].RefreshToken); err != nil {
		t.Fatalf("expected newest token to refresh, got %v", err)
	}
}

func TestTokenManagerRevokeRejectsLaterRefresh(t *testing.T) {
	manager, _, _, _, account := newTokenFixture(t, TokenSettings{})
	ctx := context.Background()

	pair, err := manager.Issue(ctx, account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := manager.Revoke(ctx, account.ID, pair.RefreshToken); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, _, err := manager.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
	if err := manager.Revoke(ctx, account.ID, pair.RefreshToken); err != nil {
		t.Fatalf("second revoke should be a no-op, got %v", err)
	}
}

func TestTokenManagerAccessExpiryBoundary(t *testing.T) {
	manager, _, _, clock, account := newTokenFixture(t, TokenSettings{AccessTTL: 15 * time.Minute})
	ctx := context.Background()
	issuedAt := clock.Now()

	pair, err := manager.Issue(ctx, account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !pair.AccessExpiresAt.Equal(issuedAt.Add(15 * time.Minute)) {
		t.Fatalf("unexpected access expiry %v", pair.AccessExpiresAt)
	}

	clock.Set(issuedAt.Add(15*time.Minute - time.Second))
	principal, err := manager.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("expected token valid one second before expiry, got %v", err)
	}
	if principal.AccountID != account.ID || principal.Role != domain.RoleStudent {
		t.Fatalf("unexpected principal %+v", principal)
	}

	clock.Set(issuedAt.Add(15 * time.Minute))
	if _, err := manager.Authenticate(ctx, pair.AccessToken); !errors.Is(err, ErrExpiredAccessToken) {
		t.Fatalf("expected ErrExpiredAccessToken at expiry, got %v", err)
	}
}

func TestTokenManagerAuthenticateRejectsRefreshToken(t *testing.T) {
	manager, _, _, _, account := newTokenFixture(t, TokenSettings{})
	pair, err := manager.Issue(context.Background(), account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := manager.Authenticate(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
	if _, _, err := manager.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected access token to be refused for refresh, got %v", err)
	}
}

func TestTokenManagerInactiveAccount(t *testing.T) {
	manager, accounts, _, _, account := newTokenFixture(t, TokenSettings{})
	ctx := context.Background()
	pair, err := manager.Issue(ctx, account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	account.IsActive = false
	accounts.accounts[account.ID] = account

	if _, err := manager.Authenticate(ctx, pair.AccessToken); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
	if _, _, err := manager.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected refresh refused for inactive account, got %v", err)
	}
}

func TestTokenManagerRoleComesFromAccount(t *testing.T) {
	manager, accounts, _, _, account := newTokenFixture(t, TokenSettings{})
	ctx := context.Background()
	pair, err := manager.Issue(ctx, account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	account.Role = domain.RoleSecurity
	accounts.accounts[account.ID] = account

	principal, err := manager.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if principal.Role != domain.RoleSecurity {
		t.Fatalf("expected role from account record, got %s", principal.Role)
	}
}
