package middleware

import (
	"github.com/gin-gonic/gin"
)

// Error codes shared with the handlers package.
const (
	CodeAuthRequired    = "AUTH_REQUIRED"
	CodeInvalidToken    = "INVALID_TOKEN"
	CodeTokenExpired    = "TOKEN_EXPIRED"
	CodeAccountInactive = "ACCOUNT_INACTIVE"
	CodeForbidden       = "FORBIDDEN"
	CodeInvalidCreds    = "INVALID_CREDENTIALS"
	CodeEmailTaken      = "EMAIL_TAKEN"
	CodeNotFound        = "NOT_FOUND"
	CodeRiskBlocked     = "RISK_BLOCKED"
	CodeRateLimited     = "RATE_LIMITED"
	CodeValidation      = "VALIDATION_FAILED"
	CodeInternal        = "INTERNAL"
)

// ErrorResponse is the JSON error body returned by every endpoint.
type ErrorResponse struct {
	Error        string            `json:"error"`
	Code         string            `json:"code"`
	TraceID      string            `json:"trace_id,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	AnomalyScore *float64          `json:"anomaly_score,omitempty"`
	RetryAfter   *int              `json:"retry_after,omitempty"`
}

// NewErrorResponse builds an error body carrying the request's trace id.
func NewErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Error:   message,
		Code:    code,
		TraceID: GetTraceID(c),
	}
}

// Abort stops the handler chain with the given status and error body.
func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, NewErrorResponse(c, code, message))
}
