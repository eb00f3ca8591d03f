package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrTokenExpired is returned when the token's exp is at or before the current time.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenInvalid covers signature, structure, issuer, audience and type failures.
	ErrTokenInvalid = errors.New("jwt: token invalid")
)

// AccessClaims identify the caller of an API request.
type AccessClaims struct {
	AccountID string `json:"uid"`
	Role      string `json:"role"`
	Type      string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims identify the owner of a refresh credential. The jti makes each
// refresh token unique even when two are issued within the same second.
type RefreshClaims struct {
	AccountID string `json:"uid"`
	Type      string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTManager signs and parses RS256 tokens.
type JWTManager struct {
	keys     KeyProvider
	issuer   string
	audience string
	now      func() time.Time
}

// JWTOption customises a JWTManager.
type JWTOption func(*JWTManager)

// WithJWTClock overrides the clock used for issuing and validating tokens.
func WithJWTClock(now func() time.Time) JWTOption {
	return func(m *JWTManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewJWTManager builds a manager that stamps issuer as both iss and aud.
func NewJWTManager(keys KeyProvider, issuer string, opts ...JWTOption) *JWTManager {
	m := &JWTManager{
		keys:     keys,
		issuer:   strings.TrimSpace(issuer),
		audience: strings.TrimSpace(issuer),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now returns the manager's current time.
func (m *JWTManager) Now() time.Time {
	return m.now()
}

// NewAccessClaims builds access claims valid for ttl from the manager's clock.
func (m *JWTManager) NewAccessClaims(accountID, role string, ttl time.Duration) *AccessClaims {
	now := m.now().UTC()
	return &AccessClaims{
		AccountID:        accountID,
		Role:             role,
		Type:             TokenTypeAccess,
		RegisteredClaims: m.registered(accountID, now, ttl, ""),
	}
}

// NewRefreshClaims builds refresh claims valid for ttl with the given jti.
func (m *JWTManager) NewRefreshClaims(accountID, jti string, ttl time.Duration) *RefreshClaims {
	now := m.now().UTC()
	return &RefreshClaims{
		AccountID:        accountID,
		Type:             TokenTypeRefresh,
		RegisteredClaims: m.registered(accountID, now, ttl, jti),
	}
}

func (m *JWTManager) registered(subject string, now time.Time, ttl time.Duration, jti string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.issuer,
		Audience:  jwt.ClaimStrings{m.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        jti,
	}
}

// Sign signs claims with the active key and sets the kid header.
func (m *JWTManager) Sign(claims jwt.Claims) (string, error) {
	if m.keys == nil {
		return "", errors.New("jwt: key provider not configured")
	}
	kid, key, err := m.keys.SigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// ParseAccess validates an access token and returns its claims.
func (m *JWTManager) ParseAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(raw, claims); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess || claims.AccountID == "" {
		return nil, fmt.Errorf("%w: not an access token", ErrTokenInvalid)
	}
	return claims, nil
}

// ParseRefresh validates a refresh token and returns its claims.
func (m *JWTManager) ParseRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(raw, claims); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh || claims.AccountID == "" {
		return nil, fmt.Errorf("%w: not a refresh token", ErrTokenInvalid)
	}
	return claims, nil
}

func (m *JWTManager) parse(raw string, claims jwt.Claims) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	_, err := jwt.ParseWithClaims(raw, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}

func (m *JWTManager) keyFunc(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("missing kid header")
	}
	return m.keys.VerificationKey(kid)
}
