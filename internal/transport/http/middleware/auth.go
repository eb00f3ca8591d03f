package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/usecase"
)

// Authenticator resolves a bearer access token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (domain.Principal, error)
}

// RequireAuth validates the Authorization header and stores the principal on the context.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			Abort(c, http.StatusUnauthorized, CodeAuthRequired, "missing or malformed bearer token")
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrExpiredAccessToken):
				Abort(c, http.StatusUnauthorized, CodeTokenExpired, "access token expired")
			case errors.Is(err, usecase.ErrInvalidAccessToken):
				Abort(c, http.StatusUnauthorized, CodeInvalidToken, "invalid access token")
			case errors.Is(err, usecase.ErrInactiveAccount):
				Abort(c, http.StatusUnauthorized, CodeAccountInactive, "account is not active")
			default:
				_ = c.Error(err)
				Abort(c, http.StatusInternalServerError, CodeInternal, "authentication failed")
			}
			return
		}

		c.Set(PrincipalKey, principal)
		GetRequestContext(c).AccountID = principal.AccountID

		c.Next()
	}
}

// RequireRole rejects principals whose role is not in roles.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			Abort(c, http.StatusUnauthorized, CodeAuthRequired, "authentication required")
			return
		}

		if !slices.Contains(roles, principal.Role) {
			Abort(c, http.StatusForbidden, CodeForbidden, "insufficient permissions")
			return
		}

		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
