package port

import (
	"context"
	"time"

	"github.com/chibuezedev/florin-server/internal/core/domain"
)

// AccountRepository exposes persistence behaviour for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByStudentID(ctx context.Context, studentID string) (*domain.Account, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
