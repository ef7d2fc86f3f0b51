package alertstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campusguard/argus/internal/domain"
)

const keyPrefix = "argus:alert:"

// RedisStore keeps workflow records as JSON strings in Redis.
// Used as the Pro tier alert store so every replica sees the same status.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis. A zero ttl keeps records indefinitely.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// GetStatus returns the record for an entity, or nil if none is stored.
func (s *RedisStore) GetStatus(ctx context.Context, entityID string) (*domain.AlertStatusRecord, error) {
	data, err := s.client.Get(ctx, key(entityID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec domain.AlertStatusRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode alert status: %w", err)
	}
	return &rec, nil
}

// GetStatuses fetches every record in one MGET round trip.
// Undecodable entries are logged and skipped.
func (s *RedisStore) GetStatuses(ctx context.Context, entityIDs []string) (map[string]*domain.AlertStatusRecord, error) {
	out := make(map[string]*domain.AlertStatusRecord, len(entityIDs))
	if len(entityIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(entityIDs))
	for i, id := range entityIDs {
		keys[i] = key(id)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec domain.AlertStatusRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			slog.Warn("skipping undecodable alert status", "entity_id", entityIDs[i], "error", err)
			continue
		}
		out[entityIDs[i]] = &rec
	}
	return out, nil
}

// SetStatus upserts the record. The last write wins.
func (s *RedisStore) SetStatus(ctx context.Context, rec *domain.AlertStatusRecord) error {
	if rec == nil || rec.EntityID == "" {
		return fmt.Errorf("entity id is required: %w", domain.ErrInvalidInput)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(rec.EntityID), data, s.ttl).Err()
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func key(entityID string) string {
	return keyPrefix + entityID
}
