package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists conversations as Redis lists, one list per
// (user, conversation) key. Suitable when several gateway instances share
// conversation state.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to Redis at addr. The prefix namespaces the
// gateway's keys within a shared instance.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		keyPrefix: "modelgate:conversation:",
	}, nil
}

func (s *RedisStore) redisKey(key Key) string {
	return s.keyPrefix + key.UserID + ":" + key.ConversationID
}

func (s *RedisStore) Get(ctx context.Context, key Key) ([]CacheEntry, error) {
	raw, err := s.client.LRange(ctx, s.redisKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}

	entries := make([]CacheEntry, 0, len(raw))
	for _, item := range raw {
		var entry CacheEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *RedisStore) Append(ctx context.Context, key Key, entries ...CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
		values = append(values, string(data))
	}

	if err := s.client.RPush(ctx, s.redisKey(key), values...).Err(); err != nil {
		return fmt.Errorf("failed to append entries: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
