package nonce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"credbroker/internal/domain"
)

type redisRegistry struct {
	client *redis.Client
	now    func() time.Time
}

// The check-and-transition must be a single atomic operation even with
// multiple broker processes sharing the registry, hence a Lua script
// rather than GET-then-SET.
var redisConsumeScript = redis.NewScript(`
local state = redis.call("GET", KEYS[1])
if state == "unused" then
  redis.call("SET", KEYS[1], "used", "KEEPTTL")
  return 1
end
return 0
`)

var redisRevokeScript = redis.NewScript(`
local state = redis.call("GET", KEYS[1])
if state == "unused" then
  redis.call("SET", KEYS[1], "revoked", "KEEPTTL")
end
return 1
`)

// NewRedisRegistry builds a registry shared across broker processes.
func NewRedisRegistry(addr, password string, db int, now func() time.Time) (Registry, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if now == nil {
		now = time.Now
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisRegistry{client: client, now: now}, nil
}

func (r *redisRegistry) Put(ctx context.Context, nonce string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		ttl = time.Second
	}
	// Keys expire a little after the token itself so a late Consume
	// still sees terminal state instead of a missing key. NX keeps a
	// second Put from resetting a used or revoked nonce.
	ok, err := r.client.SetNX(ctx, key(nonce), string(stateUnused), ttl+time.Minute).Result()
	if err != nil {
		return fmt.Errorf("nonce registry: %w", err)
	}
	if !ok {
		return fmt.Errorf("nonce already registered")
	}
	return nil
}

func (r *redisRegistry) Consume(ctx context.Context, nonce string) error {
	result, err := redisConsumeScript.Run(ctx, r.client, []string{key(nonce)}).Int64()
	if err != nil {
		return fmt.Errorf("nonce registry: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("%w: nonce already consumed or unknown", domain.ErrNonceReused)
	}
	return nil
}

func (r *redisRegistry) Revoke(ctx context.Context, nonce string) error {
	if err := redisRevokeScript.Run(ctx, r.client, []string{key(nonce)}).Err(); err != nil {
		return fmt.Errorf("nonce registry: %w", err)
	}
	return nil
}

func key(nonce string) string {
	return "credbroker:nonce:" + nonce
}
