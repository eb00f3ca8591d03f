package usecase

import (
	"github.com/chibuezedev/florin-server/internal/core/domain"
)

// Substitutes for absent sample fields, so the scoring model always receives a complete vector.
const (
	DefaultTypingSpeed    = 40.0
	DefaultTypingAccuracy = 95.0
	DefaultMouseVelocity  = 500.0
	DefaultLogonHour      = 12
	DefaultLogonDay       = 1

	neutralConsistency = 100.0
)

// FeatureDeriver turns a raw behavioral sample into the scoring model's input.
type FeatureDeriver struct{}

func NewFeatureDeriver() *FeatureDeriver {
	return &FeatureDeriver{}
}

// Derive builds the feature vector for sample as produced by an account with role.
func (FeatureDeriver) Derive(sample domain.BehavioralSample, role domain.Role) domain.FeatureVector {
	v := domain.FeatureVector{
		AccountID:                sample.AccountID,
		Email:                    sample.Email,
		LogonTimeOfDay:           intOr(sample.Logon.TimeOfDay, DefaultLogonHour),
		LogonDayOfWeek:           intOr(sample.Logon.DayOfWeek, DefaultLogonDay),
		TypingSpeed:              floatOr(sample.Typing.WPM, DefaultTypingSpeed),
		TypingAccuracy:           floatOr(sample.Typing.Accuracy, DefaultTypingAccuracy),
		TypingDwellTime:          Mean(sample.Typing.DwellTime),
		TypingFlightTime:         Mean(sample.Typing.FlightTime),
		MouseVelocity:            floatOr(sample.Pointer.Velocity, DefaultMouseVelocity),
		MouseAcceleration:        floatOr(sample.Pointer.Acceleration, 0),
		MouseCurvature:           floatOr(sample.Pointer.Curvature, 0),
		EmailSendTimeConsistency: Consistency(sample.EmailContext.TypicalSendTimes),
		TouchPressure:            floatOr(sample.Touch.Pressure, 0),
		TouchSwipeVelocity:       floatOr(sample.Touch.SwipeVelocity, 0),
		DeviceFingerprint:        sample.DeviceFingerprint,
		IPAddress:                sample.IPAddress,
	}
	v.ActivityPattern = classifyActivity(v, role)
	v.Archetype = classifyArchetype(v, role)
	return v
}

// IsOffHours reports hours before 06:00 or after 22:59, and weekends (0 = Sunday, 6 = Saturday).
func IsOffHours(hour, day int) bool {
	return hour < 6 || hour > 22 || day == 0 || day == 6
}

func classifyActivity(v domain.FeatureVector, role domain.Role) domain.ActivityPattern {
	switch {
	case IsOffHours(v.LogonTimeOfDay, v.LogonDayOfWeek):
		return domain.ActivityExfiltrationSuspect
	case role.IsElevated() || (v.TypingSpeed > 60 && v.MouseVelocity > 600):
		return domain.ActivityAdminPattern
	case v.TypingSpeed > 50 && v.MouseVelocity > 550:
		return domain.ActivityDataHeavy
	case v.TypingSpeed < 45 && v.MouseVelocity < 500:
		return domain.ActivityCommunicationFocused
	default:
		return domain.ActivityRoutine
	}
}

func classifyArchetype(v domain.FeatureVector, role domain.Role) domain.Archetype {
	switch {
	case role.IsElevated() && v.TypingSpeed > 60 && v.TypingAccuracy > 90:
		return domain.ArchetypeExpert
	case v.TypingSpeed > 70 && v.MouseVelocity > 600 && v.TypingAccuracy < 90:
		return domain.ArchetypeRushed
	case v.TypingSpeed < 45 && v.TypingAccuracy > 95 && v.TypingDwellTime > 120:
		return domain.ArchetypeMeticulous
	case v.TypingSpeed < 35 || v.TypingAccuracy < 85:
		return domain.ArchetypeNovice
	default:
		return domain.ArchetypeCasual
	}
}

// Mean returns the arithmetic mean, or 0 for an empty series.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Consistency is max(0, 100 - population variance); fewer than two values are perfectly consistent.
func Consistency(values []float64) float64 {
	if len(values) < 2 {
		return neutralConsistency
	}
	mean := Mean(values)
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return max(0, neutralConsistency-variance)
}

func floatOr(value *float64, fallback float64) float64 {
	if value == nil {
		return fallback
	}
	return *value
}

func intOr(value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	return *value
}
