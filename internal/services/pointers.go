package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// PointerStore persists the client-resumable job pointer: the single source
// of truth for "is there an in-flight import" across reloads. At most one
// pointer is tracked per owner.
type PointerStore interface {
	SetCurrent(ctx context.Context, ownerID int, jobID uuid.UUID) error
	Current(ctx context.Context, ownerID int) (uuid.UUID, bool, error)
	Clear(ctx context.Context, ownerID int) error
}

// RedisPointerStore keeps job pointers in Redis
type RedisPointerStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPointerStore connects to Redis and verifies the connection
func NewRedisPointerStore(addr, password string, db int, ttl time.Duration) (*RedisPointerStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisPointerStore{client: client, ttl: ttl}, nil
}

func pointerKey(ownerID int) string {
	return fmt.Sprintf("import:current:%d", ownerID)
}

// SetCurrent records the in-flight job for an owner
func (s *RedisPointerStore) SetCurrent(ctx context.Context, ownerID int, jobID uuid.UUID) error {
	return s.client.Set(ctx, pointerKey(ownerID), jobID.String(), s.ttl).Err()
}

// Current reads the pointer; the second return is false when none is set
func (s *RedisPointerStore) Current(ctx context.Context, ownerID int) (uuid.UUID, bool, error) {
	val, err := s.client.Get(ctx, pointerKey(ownerID)).Result()
	if err == redis.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("read job pointer: %w", err)
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("corrupt job pointer %q: %w", val, err)
	}
	return id, true, nil
}

// Clear removes the pointer
func (s *RedisPointerStore) Clear(ctx context.Context, ownerID int) error {
	return s.client.Del(ctx, pointerKey(ownerID)).Err()
}

// Close releases the Redis connection
func (s *RedisPointerStore) Close() error {
	return s.client.Close()
}

// MemoryPointerStore is the fallback pointer store used when Redis is not
// configured (single-process deployments and tests)
type MemoryPointerStore struct {
	mu       sync.RWMutex
	pointers map[int]uuid.UUID
}

// NewMemoryPointerStore creates an empty in-process pointer store
func NewMemoryPointerStore() *MemoryPointerStore {
	return &MemoryPointerStore{pointers: make(map[int]uuid.UUID)}
}

func (s *MemoryPointerStore) SetCurrent(_ context.Context, ownerID int, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointers[ownerID] = jobID
	return nil
}

func (s *MemoryPointerStore) Current(_ context.Context, ownerID int) (uuid.UUID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.pointers[ownerID]
	return id, ok, nil
}

func (s *MemoryPointerStore) Clear(_ context.Context, ownerID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pointers, ownerID)
	return nil
}
