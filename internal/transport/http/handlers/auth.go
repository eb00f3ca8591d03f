package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/repository"
	"github.com/chibuezedev/florin-server/internal/transport/http/middleware"
	"github.com/chibuezedev/florin-server/internal/usecase"
)

// AuthService is the account flow surface used by AuthHandler.
type AuthService interface {
	Register(ctx context.Context, in usecase.RegisterInput) (usecase.AuthResult, error)
	Login(ctx context.Context, in usecase.LoginInput) (usecase.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, time.Time, error)
	Logout(ctx context.Context, accountID, refreshToken string) error
	Me(ctx context.Context, accountID string) (domain.Account, error)
}

var authErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest, Code: middleware.CodeValidation},
	{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Code: middleware.CodeEmailTaken, Message: "an account with this email already exists"},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Code: middleware.CodeInvalidCreds, Message: "invalid credentials"},
	{Err: usecase.ErrInactiveAccount, Status: http.StatusUnauthorized, Code: middleware.CodeAccountInactive, Message: "account is not active"},
	{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Code: middleware.CodeInvalidToken, Message: "invalid or expired refresh token"},
	{Err: repository.ErrNotFound, Status: http.StatusNotFound, Code: middleware.CodeNotFound, Message: "account not found"},
}

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth AuthService) *AuthHandler {
	ConfigureValidator()
	return &AuthHandler{auth: auth}
}

// Register creates an account and returns it with a token pair.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		Department: req.Department,
		StudentID:  req.StudentID,
		EmployeeID: req.EmployeeID,
	})
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, "registration failed")
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{
		User:         newUserSummary(result.Account),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:     req.Email,
		StudentID: req.StudentID,
		Password:  req.Password,
	})
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, "login failed")
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		User:         newUserSummary(result.Account),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

// Refresh exchanges a refresh token for a new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	accessToken, _, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, "token refresh failed")
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{AccessToken: accessToken})
}

// Logout revokes the supplied refresh token of the caller.
func (h *AuthHandler) Logout(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		middleware.Abort(c, http.StatusUnauthorized, middleware.CodeAuthRequired, "authentication required")
		return
	}

	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), principal.AccountID, req.RefreshToken); err != nil {
		RespondWithMappedError(c, err, authErrorCases, "logout failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// Me describes the caller.
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		middleware.Abort(c, http.StatusUnauthorized, middleware.CodeAuthRequired, "authentication required")
		return
	}

	account, err := h.auth.Me(c.Request.Context(), principal.AccountID)
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, "failed to load account")
		return
	}

	c.JSON(http.StatusOK, MeResponse{User: newUserSummary(account)})
}
