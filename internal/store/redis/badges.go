// Package redis keeps per-user unread badge counts in Redis.
package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultBadgePrefix = "badge"

type BadgeStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewBadgeStore(rdb redis.UniversalClient, prefix string) *BadgeStore {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultBadgePrefix
	}
	return &BadgeStore{rdb: rdb, prefix: prefix}
}

func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (s *BadgeStore) key(userID string) string {
	return s.prefix + ":" + userID
}

// Incr bumps the unread count and returns the new value.
func (s *BadgeStore) Incr(ctx context.Context, userID string) (int64, error) {
	n, err := s.rdb.Incr(ctx, s.key(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr badge: %w", err)
	}
	return n, nil
}

// decrScript never takes the counter below zero.
var decrScript = redis.NewScript(`
local v = tonumber(redis.call("GET", KEYS[1]) or "0")
if v <= 0 then
	return 0
end
return redis.call("DECR", KEYS[1])
`)

func (s *BadgeStore) Decr(ctx context.Context, userID string) error {
	if err := decrScript.Run(ctx, s.rdb, []string{s.key(userID)}).Err(); err != nil {
		return fmt.Errorf("decr badge: %w", err)
	}
	return nil
}

func (s *BadgeStore) Reset(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("reset badge: %w", err)
	}
	return nil
}
