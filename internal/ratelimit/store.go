package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"housing/pkg/platform/sentinel"
	"housing/pkg/requestcontext"
)

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(ctx, key), nil
}

func (s *MemoryStore) AddFailure(ctx context.Context, key string, window time.Duration) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.live(ctx, key)
	if rec.Failures == 0 {
		rec.ResetAt = requestcontext.Now(ctx).Add(window)
	}
	rec.Failures++
	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) Extend(ctx context.Context, key string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil
	}
	rec.ResetAt = until
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// live must be called with mu held.
func (s *MemoryStore) live(ctx context.Context, key string) Record {
	rec, ok := s.records[key]
	if !ok {
		return Record{}
	}
	if !requestcontext.Now(ctx).Before(rec.ResetAt) {
		delete(s.records, key)
		return Record{}
	}
	return rec
}

const redisKeyPrefix = "housing:login_failures:"

// RedisStore keeps one counter per key and lets its TTL end the window or
// lock, so replicas share lockouts.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Record, error) {
	var (
		count *redis.StringCmd
		ttl   *redis.DurationCmd
	)
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		count = p.Get(ctx, redisKeyPrefix+key)
		ttl = p.PTTL(ctx, redisKeyPrefix+key)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, errors.Join(sentinel.ErrUnavailable, err)
	}
	failures, err := count.Int()
	if err != nil {
		return Record{}, errors.Join(sentinel.ErrCorrupt, err)
	}
	return s.record(ctx, failures, ttl.Val()), nil
}

func (s *RedisStore) AddFailure(ctx context.Context, key string, window time.Duration) (Record, error) {
	var (
		count *redis.IntCmd
		ttl   *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		count = p.Incr(ctx, redisKeyPrefix+key)
		p.ExpireNX(ctx, redisKeyPrefix+key, window)
		ttl = p.PTTL(ctx, redisKeyPrefix+key)
		return nil
	})
	if err != nil {
		return Record{}, errors.Join(sentinel.ErrUnavailable, err)
	}
	return s.record(ctx, int(count.Val()), ttl.Val()), nil
}

func (s *RedisStore) Extend(ctx context.Context, key string, until time.Time) error {
	if err := s.client.ExpireAt(ctx, redisKeyPrefix+key, until).Err(); err != nil {
		return errors.Join(sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return errors.Join(sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) record(ctx context.Context, failures int, ttl time.Duration) Record {
	if ttl < 0 {
		ttl = 0
	}
	return Record{Failures: failures, ResetAt: requestcontext.Now(ctx).Add(ttl)}
}
