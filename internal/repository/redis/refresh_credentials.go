package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/core/port"
)

const defaultCredentialPrefix = "florin:refresh"

// CredentialStore keeps each account's refresh credentials in a Redis list,
// oldest first. Members are "<sha256 hex>:<issued unix seconds>".
type CredentialStore struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

// NewCredentialStore constructs the store. ttl is refreshed on every push so an
// idle list expires together with its newest refresh token.
func NewCredentialStore(client *red.Client, prefix string, ttl time.Duration) *CredentialStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultCredentialPrefix
	}
	return &CredentialStore{client: client, prefix: prefix, ttl: ttl}
}

// Push appends credential and trims the list to the newest limit entries
// inside one MULTI/EXEC, so concurrent logins never observe more than limit.
func (s *CredentialStore) Push(ctx context.Context, accountID string, credential domain.RefreshCredential, limit int) error {
	key, err := s.key(accountID)
	if err != nil {
		return err
	}
	if credential.TokenHash == "" {
		return errors.New("token hash is required")
	}
	if limit <= 0 {
		limit = domain.DefaultMaxRefreshCredentials
	}

	_, err = s.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		pipe.RPush(ctx, key, encodeCredential(credential))
		pipe.LTrim(ctx, key, int64(-limit), -1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis push refresh credential: %w", err)
	}
	return nil
}

// Contains reports whether a credential with tokenHash is present.
func (s *CredentialStore) Contains(ctx context.Context, accountID, tokenHash string) (bool, error) {
	members, err := s.members(ctx, accountID)
	if err != nil {
		return false, err
	}
	for _, member := range members {
		if hashOf(member) == tokenHash {
			return true, nil
		}
	}
	return false, nil
}

// Remove deletes every member carrying tokenHash. Missing entries are ignored.
func (s *CredentialStore) Remove(ctx context.Context, accountID, tokenHash string) error {
	members, err := s.members(ctx, accountID)
	if err != nil {
		return err
	}
	key, _ := s.key(accountID)
	for _, member := range members {
		if hashOf(member) != tokenHash {
			continue
		}
		if err := s.client.LRem(ctx, key, 0, member).Err(); err != nil {
			return fmt.Errorf("redis lrem refresh credential: %w", err)
		}
	}
	return nil
}

// List returns the account's credentials, oldest first.
func (s *CredentialStore) List(ctx context.Context, accountID string) ([]domain.RefreshCredential, error) {
	members, err := s.members(ctx, accountID)
	if err != nil {
		return nil, err
	}
	creds := make([]domain.RefreshCredential, 0, len(members))
	for _, member := range members {
		creds = append(creds, decodeCredential(member))
	}
	return creds, nil
}

func (s *CredentialStore) members(ctx context.Context, accountID string) ([]string, error) {
	key, err := s.key(accountID)
	if err != nil {
		return nil, err
	}
	members, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange refresh credentials: %w", err)
	}
	return members, nil
}

func (s *CredentialStore) key(accountID string) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", errors.New("account id is required")
	}
	return s.prefix + ":" + accountID, nil
}

func encodeCredential(c domain.RefreshCredential) string {
	return c.TokenHash + ":" + strconv.FormatInt(c.IssuedAt.Unix(), 10)
}

func decodeCredential(member string) domain.RefreshCredential {
	hash, issued, _ := strings.Cut(member, ":")
	cred := domain.RefreshCredential{TokenHash: hash}
	if secs, err := strconv.ParseInt(issued, 10, 64); err == nil {
		cred.IssuedAt = time.Unix(secs, 0).UTC()
	}
	return cred
}

func hashOf(member string) string {
	hash, _, _ := strings.Cut(member, ":")
	return hash
}

var _ port.CredentialStore = (*CredentialStore)(nil)
