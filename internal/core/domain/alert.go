package domain

import "time"

// AlertType classifies what kind of anomaly raised an alert.
type AlertType string

const (
	AlertTypeBehavioral  AlertType = "behavioral"
	AlertTypeAccess      AlertType = "access"
	AlertTypeTransaction AlertType = "transaction"
	AlertTypeLogin       AlertType = "login"
)

// AlertDetails is the structured detail bag attached to an alert.
type AlertDetails struct {
	TypingRhythm      *float64 `json:"typingRhythm,omitempty"`
	FailedLogins      *int     `json:"failedLogins,omitempty"`
	UnusualTime       bool     `json:"unusualTime"`
	LocationAnomaly   bool     `json:"locationAnomaly"`
	IPAddress         string   `json:"ipAddress,omitempty"`
	DeviceFingerprint string   `json:"deviceFingerprint,omitempty"`
}

// Alert is a persisted risk event awaiting human review.
type Alert struct {
	ID           string
	AccountID    string
	AccountName  string
	Email        string
	Type         AlertType
	Severity     RiskTier
	Description  string
	AnomalyScore float64
	Details      AlertDetails
	SampleID     string
	Resolved     bool
	ResolvedAt   *time.Time
	ResolvedBy   *string
	Notes        *string
	CreatedAt    time.Time
}

// AlertStatus filters alert listings by resolution state.
type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"
	AlertStatusAll      AlertStatus = "all"
)

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Status    AlertStatus
	AccountID string
	Limit     int
}
