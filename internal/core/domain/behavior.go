package domain

import "time"

// LogonPattern captures when and how the account signed in.
type LogonPattern struct {
	TimeOfDay           *int     `json:"timeOfDay,omitempty"`
	DayOfWeek           *int     `json:"dayOfWeek,omitempty"`
	LoginDuration       *float64 `json:"loginDuration,omitempty"`
	FailedAttempts      *int     `json:"failedAttempts,omitempty"`
	LocationConsistency *float64 `json:"locationConsistency,omitempty"`
}

// TypingMetrics captures keystroke dynamics for one observation window.
type TypingMetrics struct {
	WPM        *float64  `json:"wpm,omitempty"`
	DwellTime  []float64 `json:"dwellTime,omitempty"`
	FlightTime []float64 `json:"flightTime,omitempty"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
}

// PointerMetrics captures mouse or pointer dynamics.
type PointerMetrics struct {
	Velocity     *float64 `json:"velocity,omitempty"`
	Acceleration *float64 `json:"acceleration,omitempty"`
	Curvature    *float64 `json:"movementCurvature,omitempty"`
	IdleTime     *float64 `json:"idleTime,omitempty"`
}

// EmailContext carries messaging cadence signals.
type EmailContext struct {
	TypicalSendTimes []float64 `json:"typicalSendTimes,omitempty"`
}

// TouchGesture carries touch-screen dynamics.
type TouchGesture struct {
	Pressure      *float64 `json:"pressure,omitempty"`
	SwipeVelocity *float64 `json:"swipeVelocity,omitempty"`
}

// BehavioralSample is one observation window tied to an account and session.
// Assessment is set exactly once, after scoring.
type BehavioralSample struct {
	ID                string
	AccountID         string
	Email             string
	SessionID         string
	Logon             LogonPattern
	Typing            TypingMetrics
	Pointer           PointerMetrics
	EmailContext      EmailContext
	Touch             TouchGesture
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
	CreatedAt         time.Time
	Assessment        *RiskAssessment
	ScoredAt          *time.Time
}

// OwnedSample is a behavioral sample listed together with its account's name and email.
type OwnedSample struct {
	BehavioralSample
	OwnerName  string
	OwnerEmail string
}

// ActivityPattern labels the kind of activity a sample resembles.
type ActivityPattern string

const (
	ActivityExfiltrationSuspect  ActivityPattern = "exfiltration-suspect"
	ActivityAdminPattern         ActivityPattern = "admin-pattern"
	ActivityDataHeavy            ActivityPattern = "data-heavy"
	ActivityCommunicationFocused ActivityPattern = "communication-focused"
	ActivityRoutine              ActivityPattern = "routine"
)

// Archetype labels the interaction style of the user behind a sample.
type Archetype string

const (
	ArchetypeExpert     Archetype = "expert"
	ArchetypeRushed     Archetype = "rushed"
	ArchetypeMeticulous Archetype = "meticulous"
	ArchetypeNovice     Archetype = "novice"
	ArchetypeCasual     Archetype = "casual"
)

// FeatureVector is the complete, fixed-shape input of the scoring model.
type FeatureVector struct {
	AccountID                string
	Email                    string
	LogonTimeOfDay           int
	LogonDayOfWeek           int
	TypingSpeed              float64
	TypingAccuracy           float64
	TypingDwellTime          float64
	TypingFlightTime         float64
	MouseVelocity            float64
	MouseAcceleration        float64
	MouseCurvature           float64
	EmailSendTimeConsistency float64
	TouchPressure            float64
	TouchSwipeVelocity       float64
	DeviceFingerprint        string
	IPAddress                string
	ActivityPattern          ActivityPattern
	Archetype                Archetype
}

// Map flattens the vector into the key/value body sent to the scoring service.
func (v FeatureVector) Map() map[string]any {
	return map[string]any{
		"userId":                   v.AccountID,
		"email":                    v.Email,
		"logonTimeOfDay":           v.LogonTimeOfDay,
		"logonDayOfWeek":           v.LogonDayOfWeek,
		"typingSpeed":              v.TypingSpeed,
		"typingAccuracy":           v.TypingAccuracy,
		"typingDwellTime":          v.TypingDwellTime,
		"typingFlightTime":         v.TypingFlightTime,
		"mouseVelocity":            v.MouseVelocity,
		"mouseAcceleration":        v.MouseAcceleration,
		"mouseCurvature":           v.MouseCurvature,
		"emailSendTimeConsistency": v.EmailSendTimeConsistency,
		"touchPressure":            v.TouchPressure,
		"touchSwipeVelocity":       v.TouchSwipeVelocity,
		"deviceFingerprint":        v.DeviceFingerprint,
		"ipAddress":                v.IPAddress,
		"activityPattern":          string(v.ActivityPattern),
		"userArchetype":            string(v.Archetype),
	}
}

// TimelineBucket aggregates anomaly scores for one hour.
type TimelineBucket struct {
	Hour     time.Time
	AvgScore float64
	MaxScore float64
	Count    int
}
