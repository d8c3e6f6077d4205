// Package services provides the infrastructure adapters behind the sequencer: counter stores, brokers and tokens
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// CounterStore holds the authoritative per-parent counters and the dirty sets used by reconciliation
type CounterStore interface {
	// IncrementIfExists increments key only when it is present; ok=false means the key is absent
	IncrementIfExists(ctx context.Context, key string) (value int64, ok bool, err error)
	// SeedAndIncrement sets key to seed unless it already exists, then increments it, as one atomic step
	SeedAndIncrement(ctx context.Context, key string, seed int64) (int64, error)
	// Get returns ok=false when key is absent
	Get(ctx context.Context, key string) (value int64, ok bool, err error)
	AddMembers(ctx context.Context, set string, members ...string) error
	Members(ctx context.Context, set string) ([]string, error)
	RemoveMembers(ctx context.Context, set string, members ...string) (int64, error)
	Ping(ctx context.Context) error
}

// KEYS[1]=counter key
// Returns the incremented value or nil when the key does not exist
var luaIncrementIfExists = redis.NewScript(`
  local k = KEYS[1]
  if redis.call('EXISTS', k) == 1 then
    return redis.call('INCR', k)
  end
  return false
`)

// KEYS[1]=counter key; ARGV[1]=seed
// A concurrent seeder that lost the SETNX race still increments the winner's value
var luaSeedAndIncrement = redis.NewScript(`
  local k = KEYS[1]
  redis.call('SETNX', k, ARGV[1])
  return redis.call('INCR', k)
`)

// RedisCounterStore implements CounterStore on Redis; the Lua scripts run via EVALSHA with EVAL fallback
type RedisCounterStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisCounterStore creates a counter store; prefix, when set, is prepended to every key and set name
func NewRedisCounterStore(rdb redis.UniversalClient, prefix string) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb, prefix: prefix}
}

func (s *RedisCounterStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *RedisCounterStore) IncrementIfExists(ctx context.Context, key string) (int64, bool, error) {
	v, err := luaIncrementIfExists.Run(ctx, s.rdb, []string{s.key(key)}).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("increment %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisCounterStore) SeedAndIncrement(ctx context.Context, key string, seed int64) (int64, error) {
	v, err := luaSeedAndIncrement.Run(ctx, s.rdb, []string{s.key(key)}, seed).Int64()
	if err != nil {
		return 0, fmt.Errorf("seed and increment %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisCounterStore) Get(ctx context.Context, key string) (int64, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get %s: %w", key, err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("counter %s holds non-integer %q: %w", key, raw, err)
	}
	return v, true, nil
}

func (s *RedisCounterStore) AddMembers(ctx context.Context, set string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	if err := s.rdb.SAdd(ctx, s.key(set), toArgs(members)...).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", set, err)
	}
	return nil
}

func (s *RedisCounterStore) Members(ctx context.Context, set string) ([]string, error) {
	members, err := s.rdb.SMembers(ctx, s.key(set)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", set, err)
	}
	return members, nil
}

func (s *RedisCounterStore) RemoveMembers(ctx context.Context, set string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	n, err := s.rdb.SRem(ctx, s.key(set), toArgs(members)...).Result()
	if err != nil {
		return 0, fmt.Errorf("srem %s: %w", set, err)
	}
	return n, nil
}

func (s *RedisCounterStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func toArgs(members []string) []any {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return args
}
