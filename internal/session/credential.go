package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"housing/pkg/domain"
	"housing/pkg/platform/sentinel"
)

// Credential is the persisted proof of a login. Token and identity are
// written as one document so a reader sees both or neither.
type Credential struct {
	Token    string          `json:"token"`
	Identity domain.Identity `json:"identity"`
}

func (c Credential) encode() ([]byte, error) {
	return json.Marshal(c)
}

func decodeCredential(blob []byte) (Credential, error) {
	var c Credential
	if err := json.Unmarshal(blob, &c); err != nil {
		return Credential{}, errors.Join(sentinel.ErrCorrupt, err)
	}
	if c.Token == "" || c.Identity.ID.IsNil() {
		return Credential{}, sentinel.ErrCorrupt
	}
	return c, nil
}

// CredentialStore persists one opaque credential blob per session key.
// Load returns sentinel.ErrNotFound when nothing is stored under key.
type CredentialStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	blob      []byte
	expiresAt time.Time
}

// MemoryCredentialStore keeps credentials in process memory with expiry.
type MemoryCredentialStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryCredentialStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	out := make([]byte, len(entry.blob))
	copy(out, entry.blob)
	return out, nil
}

func (s *MemoryCredentialStore) Save(_ context.Context, key string, blob []byte, ttl time.Duration) error {
	entry := memoryEntry{blob: append([]byte(nil), blob...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *MemoryCredentialStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

const redisKeyPrefix = "housing:session:"

// RedisCredentialStore stores each credential under a single key with a TTL,
// so a save is one atomic SET.
type RedisCredentialStore struct {
	client *redis.Client
}

func NewRedisCredentialStore(client *redis.Client) *RedisCredentialStore {
	return &RedisCredentialStore{client: client}
}

func (s *RedisCredentialStore) Load(ctx context.Context, key string) ([]byte, error) {
	blob, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(sentinel.ErrUnavailable, err)
	}
	return blob, nil
}

func (s *RedisCredentialStore) Save(ctx context.Context, key string, blob []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, blob, ttl).Err(); err != nil {
		return errors.Join(sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisCredentialStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return errors.Join(sentinel.ErrUnavailable, err)
	}
	return nil
}
