package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/core/port"
	"github.com/chibuezedev/florin-server/internal/infra/security"
	"github.com/chibuezedev/florin-server/internal/repository"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	refreshJTIBytes        = 32
)

var (
	// ErrInvalidRefreshToken indicates the refresh token is malformed, expired, revoked or evicted.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidAccessToken indicates the access token is malformed, forged or names an unknown account.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the access token reached its expiry.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrInactiveAccount indicates the account is deactivated.
	ErrInactiveAccount = errors.New("account is not active")
)

// TokenSettings configures token lifetimes and the refresh credential cap.
type TokenSettings struct {
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	MaxRefreshTokens int
}

// TokenManager issues, validates, refreshes and revokes tokens.
type TokenManager struct {
	jwt         *security.JWTManager
	accounts    port.AccountRepository
	credentials port.CredentialStore
	settings    TokenSettings
}

// NewTokenManager wires a TokenManager. Zero settings fall back to 15m/7d/5.
func NewTokenManager(jwtManager *security.JWTManager, accounts port.AccountRepository, credentials port.CredentialStore, settings TokenSettings) *TokenManager {
	if settings.AccessTTL <= 0 {
		settings.AccessTTL = defaultAccessTokenTTL
	}
	if settings.RefreshTTL <= 0 {
		settings.RefreshTTL = defaultRefreshTokenTTL
	}
	if settings.MaxRefreshTokens <= 0 {
		settings.MaxRefreshTokens = domain.DefaultMaxRefreshCredentials
	}
	return &TokenManager{jwt: jwtManager, accounts: accounts, credentials: credentials, settings: settings}
}

// Issue mints an access/refresh pair and records the refresh credential.
// The oldest credential is evicted once the cap is exceeded.
func (m *TokenManager) Issue(ctx context.Context, account domain.Account) (domain.TokenPair, error) {
	if account.ID == "" {
		return domain.TokenPair{}, fmt.Errorf("account id is required")
	}

	now := m.jwt.Now().UTC()
	access, accessExp, err := m.signAccess(account)
	if err != nil {
		return domain.TokenPair{}, err
	}

	jti, err := security.GenerateSecureToken(refreshJTIBytes)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("generate refresh jti: %w", err)
	}
	refreshClaims := m.jwt.NewRefreshClaims(account.ID, jti, m.settings.RefreshTTL)
	refresh, err := m.jwt.Sign(refreshClaims)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	credential := domain.RefreshCredential{TokenHash: security.HashToken(refresh), IssuedAt: now}
	if err := m.credentials.Push(ctx, account.ID, credential, m.settings.MaxRefreshTokens); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh credential: %w", err)
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself is not rotated.
func (m *TokenManager) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := m.jwt.ParseRefresh(refreshToken)
	if err != nil {
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	account, err := m.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", time.Time{}, ErrInvalidRefreshToken
		}
		return "", time.Time{}, fmt.Errorf("lookup account: %w", err)
	}
	if !account.IsActive {
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	present, err := m.credentials.Contains(ctx, account.ID, security.HashToken(refreshToken))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("check refresh credential: %w", err)
	}
	if !present {
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	return m.signAccess(*account)
}

// Revoke removes the credential matching refreshToken from the account's list.
// Revoking an unknown or already revoked token succeeds.
func (m *TokenManager) Revoke(ctx context.Context, accountID, refreshToken string) error {
	if accountID == "" {
		return fmt.Errorf("account id is required")
	}
	if err := m.credentials.Remove(ctx, accountID, security.HashToken(refreshToken)); err != nil {
		return fmt.Errorf("remove refresh credential: %w", err)
	}
	return nil
}

// Authenticate resolves an access token to the principal it names.
func (m *TokenManager) Authenticate(ctx context.Context, accessToken string) (domain.Principal, error) {
	claims, err := m.jwt.ParseAccess(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return domain.Principal{}, ErrExpiredAccessToken
		}
		return domain.Principal{}, ErrInvalidAccessToken
	}

	account, err := m.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Principal{}, ErrInvalidAccessToken
		}
		return domain.Principal{}, fmt.Errorf("lookup account: %w", err)
	}
	if !account.IsActive {
		return domain.Principal{}, ErrInactiveAccount
	}

	return domain.Principal{
		AccountID: account.ID,
		Role:      account.Role,
		Email:     account.Email,
		Name:      account.Name,
	}, nil
}

func (m *TokenManager) signAccess(account domain.Account) (string, time.Time, error) {
	claims := m.jwt.NewAccessClaims(account.ID, string(account.Role), m.settings.AccessTTL)
	token, err := m.jwt.Sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, claims.ExpiresAt.Time, nil
}
