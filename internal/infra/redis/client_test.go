package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/infra/config"
)

func newTestClient(t *testing.T, keys Keyspace) (*Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		server.Close()
	})

	client, err := NewFromRedis(rdb, keys, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFromRedis returned error: %v", err)
	}
	return client, server
}

func TestKeyspaceFromAppliesDefaults(t *testing.T) {
	keys := KeyspaceFrom(config.RedisSettings{CredentialPrefix: " tenant:refresh: "})

	if keys.Credentials != "tenant:refresh" {
		t.Fatalf("expected trimmed credential prefix, got %q", keys.Credentials)
	}
	if keys.RateLimit != defaultRateLimitPrefix || keys.Cooldown != defaultCooldownPrefix {
		t.Fatalf("expected default prefixes, got %+v", keys)
	}
}

func TestKeyspaceValidateRejectsOverlap(t *testing.T) {
	cases := map[string]Keyspace{
		"identical": {Credentials: "florin", RateLimit: "florin", Cooldown: "florin:cool"},
		"nested":    {Credentials: "florin:refresh", RateLimit: "florin:refresh:ip", Cooldown: "florin:cool"},
	}
	for name, keys := range cases {
		t.Run(name, func(t *testing.T) {
			if err := keys.Validate(); err == nil {
				t.Fatalf("expected overlap error for %+v", keys)
			}
		})
	}

	if err := KeyspaceFrom(config.RedisSettings{}).Validate(); err != nil {
		t.Fatalf("default keyspace should be valid, got %v", err)
	}
}

func TestNewFromRedisRejectsOverlappingKeyspace(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	_, err := NewFromRedis(rdb, Keyspace{Credentials: "a", RateLimit: "a", Cooldown: "b"}, zaptest.NewLogger(t))
	if err == nil {
		t.Fatal("expected keyspace validation error")
	}
}

func TestStoresWriteUnderOwnPrefixes(t *testing.T) {
	keys := Keyspace{Credentials: "t:refresh", RateLimit: "t:rl", Cooldown: "t:cool"}
	client, server := newTestClient(t, keys)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := client.CredentialStore(time.Hour).Push(ctx, "acc-1", domain.RefreshCredential{TokenHash: "h1", IssuedAt: now}, 5); err != nil {
		t.Fatalf("Push returned error: %v", err)
	}
	if err := client.RateLimitStore(time.Minute).RecordAttempt(ctx, "10.0.0.1", now); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if ok, err := client.AlertCooldown().Acquire(ctx, "acc-1", time.Minute); err != nil || !ok {
		t.Fatalf("Acquire returned ok=%v err=%v", ok, err)
	}

	for _, key := range []string{"t:refresh:acc-1", "t:rl:10.0.0.1", "t:cool:acc-1"} {
		if !server.Exists(key) {
			t.Fatalf("expected key %q, have %v", key, server.Keys())
		}
	}
	if ttl := server.TTL("t:rl:10.0.0.1"); ttl != 2*time.Minute {
		t.Fatalf("expected rate limit keys to live two windows, got %v", ttl)
	}
}

func TestReadyReportsWriteFailures(t *testing.T) {
	client, server := newTestClient(t, KeyspaceFrom(config.RedisSettings{}))
	ctx := context.Background()

	if err := client.Ready(ctx); err != nil {
		t.Fatalf("expected ready, got %v", err)
	}
	if ttl := server.TTL(defaultCredentialPrefix + ":_ready"); ttl <= 0 || ttl > readyKeyTTL {
		t.Fatalf("expected readiness key to expire, ttl %v", ttl)
	}

	server.SetError("READONLY You can't write against a read only replica.")
	if err := client.Ready(ctx); err == nil {
		t.Fatal("expected readiness error while redis rejects commands")
	}
	server.SetError("")
	if err := client.Ready(ctx); err != nil {
		t.Fatalf("expected readiness to recover, got %v", err)
	}
}
