package domain

import "time"

// AccountRegisteredEvent represents the payload for florin.account.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	Email        string
	Role         Role
	RegisteredAt time.Time
}

// SessionRevokedEvent represents the payload for florin.session.revoked messages.
type SessionRevokedEvent struct {
	EventID   string
	AccountID string
	Reason    string
	RevokedAt time.Time
}

// AlertRaisedEvent represents the payload for florin.alert.raised messages.
type AlertRaisedEvent struct {
	EventID      string
	AlertID      string
	AccountID    string
	Type         AlertType
	Severity     RiskTier
	AnomalyScore float64
	SampleID     string
	RaisedAt     time.Time
}
