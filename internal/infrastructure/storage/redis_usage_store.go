package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/ports"
)

// RedisUsageStore keeps the usage table in a single hash, one JSON field per evaluator.
type RedisUsageStore struct {
	rdb *redis.Client
	key string
}

var _ ports.UsageStore = (*RedisUsageStore)(nil)

func NewRedisUsageStore(rdb *redis.Client, key string) *RedisUsageStore {
	if key == "" {
		key = "newsconsensus:rationale_usage"
	}
	return &RedisUsageStore{rdb: rdb, key: key}
}

func (s *RedisUsageStore) Load(ctx context.Context) (domain.UsageTable, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", s.key, err)
	}
	return decodeUsage(fields)
}

func (s *RedisUsageStore) Save(ctx context.Context, table domain.UsageTable) error {
	if len(table) == 0 {
		return nil
	}
	values, err := encodeUsage(table)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, s.key, values).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", s.key, err)
	}
	return nil
}

func encodeUsage(table domain.UsageTable) (map[string]any, error) {
	values := make(map[string]any, len(table))
	for name, u := range table {
		raw, err := json.Marshal(u)
		if err != nil {
			return nil, fmt.Errorf("marshal usage %s: %w", name, err)
		}
		values[name] = string(raw)
	}
	return values, nil
}

func decodeUsage(fields map[string]string) (domain.UsageTable, error) {
	table := make(domain.UsageTable, len(fields))
	for name, raw := range fields {
		var u domain.Usage
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("decode usage %s: %w", name, err)
		}
		table[name] = u
	}
	return table, nil
}
