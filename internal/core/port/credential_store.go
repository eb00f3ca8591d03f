package port

import (
	"context"

	"github.com/chibuezedev/florin-server/internal/core/domain"
)

// CredentialStore keeps the bounded, FIFO-ordered refresh credential list of each account.
type CredentialStore interface {
	// Push appends the credential and trims the list to the newest limit entries in one atomic step.
	Push(ctx context.Context, accountID string, credential domain.RefreshCredential, limit int) error
	// Contains reports whether a credential with the given hash is in the account's list.
	Contains(ctx context.Context, accountID, tokenHash string) (bool, error)
	// Remove deletes the credential with the given hash; absent entries are not an error.
	Remove(ctx context.Context, accountID, tokenHash string) error
	List(ctx context.Context, accountID string) ([]domain.RefreshCredential, error)
}
