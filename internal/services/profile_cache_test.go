package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/JustSympa/agariki/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestMemoryProfileCacheExpires(t *testing.T) {
	cache := NewMemoryProfileCache(time.Minute)
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	user := &models.User{ID: uuid.New(), FullName: "Hana", Role: models.RoleConsumer}
	if err := cache.Set(context.Background(), user); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := cache.Get(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FullName != "Hana" {
		t.Fatalf("unexpected cached user: %+v", got)
	}

	now = now.Add(time.Minute)
	if _, err := cache.Get(context.Background(), user.ID); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
}

func TestMemoryProfileCacheReturnsCopies(t *testing.T) {
	cache := NewMemoryProfileCache(time.Minute)
	user := &models.User{ID: uuid.New(), FullName: "Ines"}
	_ = cache.Set(context.Background(), user)

	user.FullName = "changed after set"
	got, _ := cache.Get(context.Background(), user.ID)
	got.FullName = "changed after get"

	again, err := cache.Get(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.FullName != "Ines" {
		t.Fatalf("expected cache to hold its own copy, got %q", again.FullName)
	}
}

func TestMemoryProfileCacheInvalidate(t *testing.T) {
	cache := NewMemoryProfileCache(time.Minute)
	user := &models.User{ID: uuid.New()}
	_ = cache.Set(context.Background(), user)

	if err := cache.Invalidate(context.Background(), user.ID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := cache.Get(context.Background(), user.ID); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after invalidate, got %v", err)
	}
}

func TestMemoryProfileCacheAddKeepsLiveEntry(t *testing.T) {
	cache := NewMemoryProfileCache(time.Minute)
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()
	id := uuid.New()

	_ = cache.Set(ctx, &models.User{ID: id, FullName: "Updated"})
	if err := cache.Add(ctx, &models.User{ID: id, FullName: "Stale"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, _ := cache.Get(ctx, id)
	if got.FullName != "Updated" {
		t.Fatalf("expected Add to leave the live entry, got %q", got.FullName)
	}

	now = now.Add(2 * time.Minute)
	_ = cache.Add(ctx, &models.User{ID: id, FullName: "Reloaded"})
	got, err := cache.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FullName != "Reloaded" {
		t.Fatalf("expected Add to replace an expired entry, got %q", got.FullName)
	}
}

func TestRedisProfileCacheRoundTrip(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("skipping redis test: REDIS_URL is not set")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping redis test: %v", err)
	}

	cache := NewRedisProfileCache(client, time.Minute)
	user := &models.User{ID: uuid.New(), FullName: "Jo", Role: models.RoleProducer, Email: "jo@example.com"}
	t.Cleanup(func() { _ = cache.Invalidate(ctx, user.ID) })

	if _, err := cache.Get(ctx, user.ID); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss before set, got %v", err)
	}
	if err := cache.Set(ctx, user); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := cache.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FullName != "Jo" || got.Role != models.RoleProducer {
		t.Fatalf("unexpected cached user: %+v", got)
	}

	if err := cache.Add(ctx, &models.User{ID: user.ID, FullName: "Stale"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got, _ := cache.Get(ctx, user.ID); got == nil || got.FullName != "Jo" {
		t.Fatalf("expected Add to keep the existing entry, got %+v", got)
	}

	if err := cache.Invalidate(ctx, user.ID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := cache.Get(ctx, user.ID); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after invalidate, got %v", err)
	}
}
