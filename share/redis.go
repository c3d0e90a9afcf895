package share

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"practice-insights/errors"
)

// DefaultTTL is how long a share link stays valid.
const DefaultTTL = 30 * 24 * time.Hour

const keyPrefix = "share:"

// RedisStore keeps payloads in Redis with an expiry. A missing key is
// reported as expired: Redis does not distinguish the two.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore returns a store writing through client. A non-positive ttl
// means DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Save stores p under a fresh id.
func (s *RedisStore) Save(ctx context.Context, p *Payload) (string, error) {
	data, err := Encode(p)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.client.Set(ctx, keyPrefix+id, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("saving share %s: %w", id, err)
	}
	return id, nil
}

// Load fetches the payload stored under id.
func (s *RedisStore) Load(ctx context.Context, id string) (*Payload, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("share %s: %w", id, errors.ErrExpired)
	} else if err != nil {
		return nil, fmt.Errorf("loading share %s: %w", id, err)
	}
	return Decode(data)
}

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return rdb, nil
}
