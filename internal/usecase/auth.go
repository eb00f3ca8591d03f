package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/core/port"
	"github.com/chibuezedev/florin-server/internal/infra/security"
	"github.com/chibuezedev/florin-server/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the identifier or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken indicates an account already exists for the email or student id.
	ErrEmailTaken = errors.New("account already exists")
	// ErrInvalidInput indicates a request failed field validation.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	revokeReasonLogout = "user_logout"
)

// RegisterInput carries the fields accepted at sign-up.
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	Role       string
	Department *string
	StudentID  *string
	EmployeeID *string
}

// LoginInput identifies an account by student id when present, otherwise by email.
type LoginInput struct {
	Email     string
	StudentID string
	Password  string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Account domain.Account
	Tokens  domain.TokenPair
}

// AuthService coordinates the account-facing authentication flows.
type AuthService struct {
	accounts port.AccountRepository
	tokens   *TokenManager
	hasher   port.PasswordHasher
	policy   security.PasswordPolicy
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs an AuthService. A nil publisher disables events.
func NewAuthService(
	accounts port.AccountRepository,
	tokens *TokenManager,
	hasher port.PasswordHasher,
	policy security.PasswordPolicy,
	events port.EventPublisher,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		hasher:   hasher,
		policy:   policy,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" {
		return AuthResult{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if email == "" {
		return AuthResult{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	role := domain.RoleStudent
	if in.Role != "" {
		parsed, ok := domain.ParseRole(in.Role)
		if !ok || parsed.IsElevated() {
			return AuthResult{}, fmt.Errorf("%w: role %q cannot be self-assigned", ErrInvalidInput, in.Role)
		}
		role = parsed
	}

	if err := s.policy.Validate(in.Password, name, email); err != nil {
		return AuthResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return AuthResult{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return AuthResult{}, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Department:   trimmed(in.Department),
		StudentID:    trimmed(in.StudentID),
		EmployeeID:   trimmed(in.EmployeeID),
		IsActive:     true,
		CreatedAt:    now,
		LastLogin:    &now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, fmt.Errorf("create account: %w", err)
	}

	tokens, err := s.tokens.Issue(ctx, account)
	if err != nil {
		return AuthResult{}, err
	}

	if s.events != nil {
		event := domain.AccountRegisteredEvent{
			EventID:      uuid.NewString(),
			AccountID:    account.ID,
			Email:        account.Email,
			Role:         account.Role,
			RegisteredAt: now,
		}
		if err := s.events.PublishAccountRegistered(ctx, event); err != nil {
			s.logger.Warn("publish account registered failed", zap.String("account_id", account.ID), zap.Error(err))
		}
	}

	return AuthResult{Account: account.Sanitized(), Tokens: tokens}, nil
}

// Login verifies credentials and issues a new token pair.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	if in.Password == "" || (strings.TrimSpace(in.Email) == "" && strings.TrimSpace(in.StudentID) == "") {
		return AuthResult{}, fmt.Errorf("%w: email or student id and password are required", ErrInvalidInput)
	}

	var (
		account *domain.Account
		err     error
	)
	if studentID := strings.TrimSpace(in.StudentID); studentID != "" {
		account, err = s.accounts.GetByStudentID(ctx, studentID)
	} else {
		account, err = s.accounts.GetByEmail(ctx, in.Email)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("lookup account: %w", err)
	}

	ok, err := s.hasher.Verify(in.Password, account.PasswordHash)
	if err != nil {
		return AuthResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}
	// Account status is only disclosed to callers holding the password.
	if !account.IsActive {
		return AuthResult{}, ErrInactiveAccount
	}

	tokens, err := s.tokens.Issue(ctx, *account)
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now().UTC()
	if err := s.accounts.TouchLastLogin(ctx, account.ID, now); err != nil {
		s.logger.Warn("update last login failed", zap.String("account_id", account.ID), zap.Error(err))
	} else {
		account.LastLogin = &now
	}

	return AuthResult{Account: account.Sanitized(), Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

// Logout revokes the supplied refresh token of the caller.
func (s *AuthService) Logout(ctx context.Context, accountID, refreshToken string) error {
	if err := s.tokens.Revoke(ctx, accountID, refreshToken); err != nil {
		return err
	}

	if s.events != nil {
		event := domain.SessionRevokedEvent{
			EventID:   uuid.NewString(),
			AccountID: accountID,
			Reason:    revokeReasonLogout,
			RevokedAt: s.now().UTC(),
		}
		if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
			s.logger.Warn("publish session revoked failed", zap.String("account_id", accountID), zap.Error(err))
		}
	}
	return nil
}

// Me returns the caller's account without credential material.
func (s *AuthService) Me(ctx context.Context, accountID string) (domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	return account.Sanitized(), nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
