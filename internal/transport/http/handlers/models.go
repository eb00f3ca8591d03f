package handlers

import (
	"time"

	"github.com/chibuezedev/florin-server/internal/core/domain"
)

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// RegisterRequest is the sign-up payload.
type RegisterRequest struct {
	Name       string  `json:"name" binding:"required"`
	Email      string  `json:"email" binding:"required,email"`
	Password   string  `json:"password" binding:"required"`
	Role       string  `json:"role" binding:"omitempty,oneof=student faculty staff admin security"`
	Department *string `json:"department"`
	StudentID  *string `json:"student_id"`
	EmployeeID *string `json:"employee_id"`
}

// LoginRequest identifies the account by student id when present, otherwise by email.
type LoginRequest struct {
	Email     string `json:"email" binding:"required_without=StudentID,omitempty,email"`
	StudentID string `json:"student_id"`
	Password  string `json:"password" binding:"required"`
}

// RefreshRequest carries the refresh token to exchange.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest carries the refresh token to revoke.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UserSummary is the public view of an account.
type UserSummary struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	Department *string     `json:"department,omitempty"`
	StudentID  *string     `json:"student_id,omitempty"`
	EmployeeID *string     `json:"employee_id,omitempty"`
	IsActive   bool        `json:"is_active"`
	CreatedAt  time.Time   `json:"created_at"`
	LastLogin  *time.Time  `json:"last_login,omitempty"`
}

func newUserSummary(a domain.Account) UserSummary {
	return UserSummary{
		ID:         a.ID,
		Name:       a.Name,
		Email:      a.Email,
		Role:       a.Role,
		Department: a.Department,
		StudentID:  a.StudentID,
		EmployeeID: a.EmployeeID,
		IsActive:   a.IsActive,
		CreatedAt:  a.CreatedAt,
		LastLogin:  a.LastLogin,
	}
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User         UserSummary `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
}

// RefreshResponse carries a freshly issued access token.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// MeResponse describes the caller.
type MeResponse struct {
	User UserSummary `json:"user"`
}

// SampleView is a persisted behavioral sample as exposed to its owner.
type SampleView struct {
	ID                string                `json:"id"`
	SessionID         string                `json:"session_id,omitempty"`
	LogonPattern      domain.LogonPattern   `json:"logon_pattern"`
	TypingSpeed       domain.TypingMetrics  `json:"typing_speed"`
	MouseDynamics     domain.PointerMetrics `json:"mouse_dynamics"`
	EmailContext      domain.EmailContext   `json:"email_context"`
	TouchGesture      domain.TouchGesture   `json:"touch_gesture"`
	DeviceFingerprint string                `json:"device_fingerprint,omitempty"`
	IPAddress         string                `json:"ip_address,omitempty"`
	AnomalyScore      *float64              `json:"anomaly_score,omitempty"`
	RiskTier          domain.RiskTier       `json:"risk_tier,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	ScoredAt          *time.Time            `json:"scored_at,omitempty"`
}

func newSampleView(s domain.BehavioralSample) SampleView {
	view := SampleView{
		ID:                s.ID,
		SessionID:         s.SessionID,
		LogonPattern:      s.Logon,
		TypingSpeed:       s.Typing,
		MouseDynamics:     s.Pointer,
		EmailContext:      s.EmailContext,
		TouchGesture:      s.Touch,
		DeviceFingerprint: s.DeviceFingerprint,
		IPAddress:         s.IPAddress,
		CreatedAt:         s.CreatedAt,
		ScoredAt:          s.ScoredAt,
	}
	if s.Assessment != nil {
		score := s.Assessment.AnomalyScore
		view.AnomalyScore = &score
		view.RiskTier = s.Assessment.Tier
	}
	return view
}

// HistoryResponse lists the caller's recent samples.
type HistoryResponse struct {
	Samples []SampleView `json:"samples"`
	Count   int          `json:"count"`
}

// SampleOwner names the account a sample belongs to.
type SampleOwner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OwnedSampleView is a sample in the cross-account listing.
type OwnedSampleView struct {
	SampleView
	User SampleOwner `json:"user"`
}

// RecentSamplesResponse lists the newest samples across all accounts.
type RecentSamplesResponse struct {
	Samples []OwnedSampleView `json:"samples"`
	Count   int               `json:"count"`
}

func newOwnedSampleView(s domain.OwnedSample) OwnedSampleView {
	return OwnedSampleView{
		SampleView: newSampleView(s.BehavioralSample),
		User:       SampleOwner{ID: s.AccountID, Name: s.OwnerName, Email: s.OwnerEmail},
	}
}

// TimelinePoint is one hourly anomaly bucket.
type TimelinePoint struct {
	Hour     time.Time `json:"hour"`
	AvgScore float64   `json:"avg_score"`
	MaxScore float64   `json:"max_score"`
	Count    int       `json:"count"`
}

// TimelineResponse lists hourly buckets in ascending order.
type TimelineResponse struct {
	Timeline []TimelinePoint `json:"timeline"`
}

func newTimelineResponse(buckets []domain.TimelineBucket) TimelineResponse {
	points := make([]TimelinePoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, TimelinePoint{Hour: b.Hour, AvgScore: b.AvgScore, MaxScore: b.MaxScore, Count: b.Count})
	}
	return TimelineResponse{Timeline: points}
}

// AlertQuery filters the alert listing.
type AlertQuery struct {
	Filter string `form:"filter" binding:"omitempty,oneof=active resolved all"`
	UserID string `form:"user_id" binding:"omitempty,uuid"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

// ResolveAlertRequest carries optional reviewer notes.
type ResolveAlertRequest struct {
	Notes *string `json:"notes" binding:"omitempty,max=2000"`
}

// AlertView is an alert as shown to reviewers.
type AlertView struct {
	ID           string              `json:"id"`
	UserID       string              `json:"user_id"`
	UserName     string              `json:"user_name,omitempty"`
	Email        string              `json:"email,omitempty"`
	Type         domain.AlertType    `json:"type"`
	Severity     domain.RiskTier     `json:"severity"`
	Description  string              `json:"description"`
	AnomalyScore float64             `json:"anomaly_score"`
	Details      domain.AlertDetails `json:"details"`
	SampleID     string              `json:"sample_id,omitempty"`
	Resolved     bool                `json:"resolved"`
	ResolvedAt   *time.Time          `json:"resolved_at,omitempty"`
	ResolvedBy   *string             `json:"resolved_by,omitempty"`
	Notes        *string             `json:"notes,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

func newAlertView(a domain.Alert) AlertView {
	return AlertView{
		ID:           a.ID,
		UserID:       a.AccountID,
		UserName:     a.AccountName,
		Email:        a.Email,
		Type:         a.Type,
		Severity:     a.Severity,
		Description:  a.Description,
		AnomalyScore: a.AnomalyScore,
		Details:      a.Details,
		SampleID:     a.SampleID,
		Resolved:     a.Resolved,
		ResolvedAt:   a.ResolvedAt,
		ResolvedBy:   a.ResolvedBy,
		Notes:        a.Notes,
		CreatedAt:    a.CreatedAt,
	}
}

// AlertListResponse lists alerts newest first.
type AlertListResponse struct {
	Alerts []AlertView `json:"alerts"`
	Count  int         `json:"count"`
}

// ResolveAlertResponse returns the resolved alert.
type ResolveAlertResponse struct {
	Message string    `json:"message"`
	Alert   AlertView `json:"alert"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the state of each dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
