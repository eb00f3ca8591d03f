package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chibuezedev/florin-server/internal/infra/config"
	redisrepo "github.com/chibuezedev/florin-server/internal/repository/redis"
)

const (
	defaultCredentialPrefix = "florin:refresh"
	defaultRateLimitPrefix  = "florin:ratelimit"
	defaultCooldownPrefix   = "florin:alert_cooldown"

	readyKeyTTL = 10 * time.Second
)

// Keyspace holds the key prefix of every store kept in Redis.
type Keyspace struct {
	Credentials string
	RateLimit   string
	Cooldown    string
}

// KeyspaceFrom resolves configured prefixes, falling back to the florin defaults.
func KeyspaceFrom(cfg config.RedisSettings) Keyspace {
	return Keyspace{
		Credentials: prefixOr(cfg.CredentialPrefix, defaultCredentialPrefix),
		RateLimit:   prefixOr(cfg.RateLimitPrefix, defaultRateLimitPrefix),
		Cooldown:    prefixOr(cfg.CooldownPrefix, defaultCooldownPrefix),
	}
}

// Validate rejects keyspaces where one store could read or evict another store's keys.
func (k Keyspace) Validate() error {
	named := []struct{ name, prefix string }{
		{"credential", k.Credentials},
		{"rate limit", k.RateLimit},
		{"cooldown", k.Cooldown},
	}
	for i := range named {
		for j := range named {
			if i == j {
				continue
			}
			if named[i].prefix == named[j].prefix || strings.HasPrefix(named[i].prefix, named[j].prefix+":") {
				return fmt.Errorf("redis %s prefix %q overlaps %s prefix %q",
					named[i].name, named[i].prefix, named[j].name, named[j].prefix)
			}
		}
	}
	return nil
}

// Client owns the Redis connection and the keyspace of the stores built on it.
type Client struct {
	client *redis.Client
	logger *zap.Logger
	keys   Keyspace
}

// NewClient dials Redis and fails fast when the server is unreachable or the keyspace is ambiguous.
func NewClient(cfg config.RedisSettings, logger *zap.Logger) (*Client, error) {
	keys := KeyspaceFrom(cfg)
	if err := keys.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(optionsFrom(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("db", cfg.DB),
		zap.Bool("tls_enabled", cfg.TLSEnabled),
		zap.String("credential_prefix", keys.Credentials),
		zap.String("rate_limit_prefix", keys.RateLimit),
		zap.String("cooldown_prefix", keys.Cooldown),
	)

	return &Client{client: client, logger: logger, keys: keys}, nil
}

// NewFromRedis wraps an existing connection, used by tests and tooling.
func NewFromRedis(client *redis.Client, keys Keyspace, logger *zap.Logger) (*Client, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	return &Client{client: client, logger: logger, keys: keys}, nil
}

func optionsFrom(cfg config.RedisSettings) *redis.Options {
	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,

		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// Keys reports the resolved keyspace.
func (c *Client) Keys() Keyspace {
	return c.keys
}

// CredentialStore builds the refresh credential store under the credential prefix.
func (c *Client) CredentialStore(ttl time.Duration) *redisrepo.CredentialStore {
	return redisrepo.NewCredentialStore(c.client, c.keys.Credentials, ttl)
}

// RateLimitStore builds the login attempt store. Keys outlive the window twice
// over so the oldest attempt stays readable for Retry-After.
func (c *Client) RateLimitStore(window time.Duration) *redisrepo.RateLimitRepository {
	if window <= 0 {
		window = time.Minute
	}
	return redisrepo.NewRateLimitRepository(c.client, c.keys.RateLimit, 2*window)
}

// AlertCooldown builds the per-account alert cool-down marker store.
func (c *Client) AlertCooldown() *redisrepo.AlertCooldown {
	return redisrepo.NewAlertCooldown(c.client, c.keys.Cooldown)
}

// Ready reports whether Redis accepts writes. A replica promoted read-only
// answers PING but would reject every refresh token rotation.
func (c *Client) Ready(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	if err := c.client.Set(ctx, c.keys.Credentials+":_ready", time.Now().UTC().Unix(), readyKeyTTL).Err(); err != nil {
		return fmt.Errorf("redis write: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	c.logger.Info("closing redis connection")
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

func prefixOr(prefix, fallback string) string {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		return fallback
	}
	return prefix
}
