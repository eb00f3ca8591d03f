package domain

import "time"

// DefaultMaxRefreshCredentials bounds the refresh credential list of an account.
const DefaultMaxRefreshCredentials = 5

// RefreshCredential is one outstanding refresh token of an account.
// Only the SHA-256 hash of the opaque token is kept.
type RefreshCredential struct {
	TokenHash string
	IssuedAt  time.Time
}

// TokenPair is the credential pair handed to a client at register or login.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Principal is the identity resolved from a valid access token.
type Principal struct {
	AccountID string
	Role      Role
	Email     string
	Name      string
}
