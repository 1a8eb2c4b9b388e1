package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "shiftops:verified:"

// RedisStore keeps verified sessions in Redis so that several API processes
// share them. Expiry is left to Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient builds a client and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func instanceKey(instanceID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, instanceID)
}

func (r *RedisStore) Mark(ctx context.Context, instanceID, staffID int64, token string) error {
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, instanceKey(instanceID), sessionValue(staffID, token), ttl).Err(); err != nil {
		return fmt.Errorf("mark verified %d: %w", instanceID, err)
	}
	return nil
}

func (r *RedisStore) IsVerified(ctx context.Context, instanceID, staffID int64, token string) (bool, error) {
	val, err := r.client.Get(ctx, instanceKey(instanceID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read verified %d: %w", instanceID, err)
	}
	return val == sessionValue(staffID, token), nil
}

func (r *RedisStore) Invalidate(ctx context.Context, instanceID int64) error {
	if err := r.client.Del(ctx, instanceKey(instanceID)).Err(); err != nil {
		return fmt.Errorf("invalidate verified %d: %w", instanceID, err)
	}
	return nil
}
