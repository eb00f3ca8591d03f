package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/chibuezedev/florin-server/internal/core/port"
)

const defaultCooldownPrefix = "florin:alert_cooldown"

// AlertCooldown marks accounts that recently raised an alert.
type AlertCooldown struct {
	client *red.Client
	prefix string
}

func NewAlertCooldown(client *red.Client, prefix string) *AlertCooldown {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultCooldownPrefix
	}
	return &AlertCooldown{client: client, prefix: prefix}
}

// Acquire sets the cool-down key with SET NX PX and reports whether it was free.
func (c *AlertCooldown) Acquire(ctx context.Context, accountID string, ttl time.Duration) (bool, error) {
	if strings.TrimSpace(accountID) == "" {
		return false, errors.New("account id is required")
	}
	if ttl <= 0 {
		return true, nil
	}

	ok, err := c.client.SetNX(ctx, c.prefix+":"+accountID, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx alert cooldown: %w", err)
	}
	return ok, nil
}

var _ port.AlertCooldown = (*AlertCooldown)(nil)
