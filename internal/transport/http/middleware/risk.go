package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chibuezedev/florin-server/internal/core/domain"
)

// BiometricHeader carries a JSON behavioral sample on requests without a body.
const BiometricHeader = "X-Biometric-Data"

const maxBiometricBody = 1 << 20

// RiskEvaluator scores a behavioral sample for an account and decides on access.
type RiskEvaluator interface {
	Evaluate(ctx context.Context, account domain.Account, sample domain.BehavioralSample) domain.Decision
}

// BiometricPayload is the client-side wire shape of a behavioral sample.
type BiometricPayload struct {
	SessionID         string                `json:"sessionId,omitempty"`
	LogonPattern      domain.LogonPattern   `json:"logonPattern"`
	TypingSpeed       domain.TypingMetrics  `json:"typingSpeed"`
	MouseDynamics     domain.PointerMetrics `json:"mouseDynamics"`
	EmailContext      domain.EmailContext   `json:"emailContext"`
	TouchGesture      domain.TouchGesture   `json:"touchGesture"`
	DeviceFingerprint string                `json:"deviceFingerprint,omitempty"`
}

// Sample converts the payload to a domain sample observed from ip with userAgent.
func (p BiometricPayload) Sample(ip, userAgent string) domain.BehavioralSample {
	return domain.BehavioralSample{
		SessionID:         p.SessionID,
		Logon:             p.LogonPattern,
		Typing:            p.TypingSpeed,
		Pointer:           p.MouseDynamics,
		EmailContext:      p.EmailContext,
		Touch:             p.TouchGesture,
		DeviceFingerprint: p.DeviceFingerprint,
		IPAddress:         ip,
		UserAgent:         userAgent,
	}
}

// BehavioralRisk runs the risk pipeline for authenticated requests that carry a
// behavioral sample, rejecting blocked requests with 403 RISK_BLOCKED.
// Requests without a sample pass through untouched.
func BehavioralRisk(evaluator RiskEvaluator, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.Next()
			return
		}

		payload, found, err := extractBiometrics(c)
		if err != nil {
			log.Debug("ignoring malformed behavioral sample", zap.String("trace_id", GetTraceID(c)), zap.Error(err))
		}
		if !found {
			c.Next()
			return
		}

		account := domain.Account{
			ID:       principal.AccountID,
			Name:     principal.Name,
			Email:    principal.Email,
			Role:     principal.Role,
			IsActive: true,
		}
		decision := evaluator.Evaluate(c.Request.Context(), account, payload.Sample(c.ClientIP(), c.Request.UserAgent()))
		c.Set(DecisionKey, decision)

		if decision.Blocked() {
			score := decision.Assessment.AnomalyScore
			body := NewErrorResponse(c, CodeRiskBlocked, "request blocked due to suspicious activity")
			body.AnomalyScore = &score
			c.AbortWithStatusJSON(http.StatusForbidden, body)
			return
		}
		if decision.Action == domain.DecisionAllowFlagged {
			c.Header("X-Risk-Flagged", "true")
		}

		c.Next()
	}
}

// extractBiometrics reads the sample from the header on GET requests and from
// the "biometrics" body field otherwise, falling back to the header. The body
// is restored for downstream handlers. Bodies above maxBiometricBody are passed
// on intact and not inspected.
func extractBiometrics(c *gin.Context) (BiometricPayload, bool, error) {
	header := c.GetHeader(BiometricHeader)

	if c.Request.Method != http.MethodGet && c.Request.Body != nil && c.Request.Body != http.NoBody {
		body := c.Request.Body
		raw, err := io.ReadAll(io.LimitReader(body, maxBiometricBody+1))
		c.Request.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(raw), body), Closer: body}
		if err != nil {
			return BiometricPayload{}, false, err
		}

		if len(raw) <= maxBiometricBody && len(bytes.TrimSpace(raw)) > 0 {
			var envelope struct {
				Biometrics *BiometricPayload `json:"biometrics"`
			}
			if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Biometrics != nil {
				return *envelope.Biometrics, true, nil
			}
		}
	}

	if header == "" {
		return BiometricPayload{}, false, nil
	}
	var payload BiometricPayload
	if err := json.Unmarshal([]byte(header), &payload); err != nil {
		return BiometricPayload{}, false, err
	}
	return payload, true, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
