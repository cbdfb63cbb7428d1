package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisStore implements the market record cache on redis. Tract reference
// data is not stored, so the tract operations return ErrUnsupported and
// lookups proceed without the local geocode fallback.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to redis and verifies the connection. Cached records
// expire server-side after ttl.
func NewRedis(ctx context.Context, addr, password string, dbNum int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbNum,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrap(err, "redis: ping")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) cacheKey(key string) string {
	return "market:" + key
}

// GetMarketRecord returns the cached payload. Expiry is enforced by the
// server, so any surviving entry is fresh; UpdatedAt is the read time.
func (s *RedisStore) GetMarketRecord(ctx context.Context, key string) (*CachedRecord, error) {
	data, err := s.client.Get(ctx, s.cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "redis: get market record")
	}
	return &CachedRecord{Payload: data, UpdatedAt: time.Now().UTC()}, nil
}

func (s *RedisStore) PutMarketRecord(ctx context.Context, key string, payload []byte) error {
	err := s.client.Set(ctx, s.cacheKey(key), payload, s.ttl).Err()
	return eris.Wrap(err, "redis: put market record")
}

func (s *RedisStore) TractArea(ctx context.Context, geoid string) (int64, error) {
	return 0, ErrUnsupported
}

func (s *RedisStore) TractContaining(ctx context.Context, lat, lon float64) (*Tract, error) {
	return nil, ErrUnsupported
}

func (s *RedisStore) UpsertTracts(ctx context.Context, tracts []Tract) (int, error) {
	return 0, ErrUnsupported
}

// Migrate is a no-op; redis needs no schema.
func (s *RedisStore) Migrate(ctx context.Context) error {
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
