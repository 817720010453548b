package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/JustSympa/agariki/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ProfileCache holds full user profiles by id. Get returns ErrCacheMiss when
// nothing usable is stored. Add only fills an empty slot, so a read-through
// never overwrites a profile written by a later update.
type ProfileCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	Set(ctx context.Context, user *models.User) error
	Add(ctx context.Context, user *models.User) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

type memoryEntry struct {
	user      models.User
	expiresAt time.Time
}

type MemoryProfileCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[uuid.UUID]memoryEntry
	now     func() time.Time
}

func NewMemoryProfileCache(ttl time.Duration) *MemoryProfileCache {
	return &MemoryProfileCache{
		ttl:     ttl,
		entries: make(map[uuid.UUID]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryProfileCache) Get(_ context.Context, id uuid.UUID) (*models.User, error) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, ErrCacheMiss
	}
	user := entry.user
	return &user, nil
}

func (c *MemoryProfileCache) Set(_ context.Context, user *models.User) error {
	if user == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[user.ID] = memoryEntry{user: *user, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryProfileCache) Add(_ context.Context, user *models.User) error {
	if user == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, ok := c.entries[user.ID]; ok && now.Before(entry.expiresAt) {
		return nil
	}
	c.entries[user.ID] = memoryEntry{user: *user, expiresAt: now.Add(c.ttl)}
	return nil
}

func (c *MemoryProfileCache) Invalidate(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
	return nil
}

type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{client: client, ttl: ttl}
}

func profileKey(id uuid.UUID) string {
	return "profile:" + id.String()
}

func (c *RedisProfileCache) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	raw, err := c.client.Get(ctx, profileKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, ErrCacheMiss
	}
	return &user, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, user *models.User) error {
	if user == nil {
		return nil
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileKey(user.ID), raw, c.ttl).Err()
}

func (c *RedisProfileCache) Add(ctx context.Context, user *models.User) error {
	if user == nil {
		return nil
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.client.SetNX(ctx, profileKey(user.ID), raw, c.ttl).Err()
}

func (c *RedisProfileCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, profileKey(id)).Err()
}
