package state

import (
	"context"
	"fmt"
	"time"

	"fieldops.dev/punchclock/punch/models"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "punchclock:"

// RedisStore keeps the slot in redis, for kiosks where several devices
// have to agree on who is punched in. Records never expire.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(redisURL, slot string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(client, slot), nil
}

func NewRedisStoreFromClient(client *redis.Client, slot string) *RedisStore {
	if slot == "" {
		slot = DefaultSlot
	}
	return &RedisStore{
		client: client,
		key:    keyPrefix + slot,
	}
}

func (r *RedisStore) Load(ctx context.Context) (*models.OpenPunch, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load punch state: %w", err)
	}
	return decode(data)
}

func (r *RedisStore) Save(ctx context.Context, record models.OpenPunch) error {
	data, err := encode(record)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save punch state: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to clear punch state: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
