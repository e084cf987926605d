package cache_test

import (
	"context"
	"testing"
	"time"

	"clashoj/internal/common/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("NewRedisCacheWithClient: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c, mr
}

func TestGetMissingKeyReturnsEmpty(t *testing.T) {
	c, _ := newTestCache(t)

	value, err := c.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != "" {
		t.Fatalf("expected empty value for missing key, got %q", value)
	}
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != "v" {
		t.Fatalf("expected %q, got %q", "v", value)
	}
}

func TestSetNXOnlySetsOnce(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "first", time.Minute)
	if err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	if !ok {
		t.Fatal("expected first SetNX to win")
	}

	ok, err = c.SetNX(ctx, "lock", "second", time.Minute)
	if err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	if ok {
		t.Fatal("expected second SetNX to lose")
	}

	value, err := c.Get(ctx, "lock")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != "first" {
		t.Fatalf("expected first writer's value, got %q", value)
	}
}

func TestDelAndExists(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "a", "1", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(ctx, "b", "2", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	count, err := c.Exists(ctx, "a", "b", "c")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 existing keys, got %d", count)
	}

	if err := c.Del(ctx, "a", "b"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	count, err = c.Exists(ctx, "a", "b")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 after delete, got %d", count)
	}
}

func TestIncrAndExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.Incr(ctx, "counter")
		if err != nil {
			t.Fatalf("Incr: %v", err)
		}
		if got != want {
			t.Fatalf("expected counter %d, got %d", want, got)
		}
	}

	if err := c.Expire(ctx, "counter", time.Minute); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	value, err := c.Get(ctx, "counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != "" {
		t.Fatalf("expected counter to expire, got %q", value)
	}
}

func TestGetWithCachedPopulatesOnMiss(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0

	load := func(context.Context) (string, error) {
		calls++
		return "payload", nil
	}
	identity := func(s string) string { return s }
	parse := func(s string) (string, error) { return s, nil }
	empty := func(s string) bool { return s == "" }

	for i := 0; i < 2; i++ {
		got, err := cache.GetWithCached(ctx, c, "item", time.Minute, time.Minute, empty, identity, parse, load)
		if err != nil {
			t.Fatalf("GetWithCached: %v", err)
		}
		if got != "payload" {
			t.Fatalf("expected payload, got %q", got)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one loader call, got %d", calls)
	}
}

func TestGetWithCachedCachesNull(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0

	load := func(context.Context) (string, error) {
		calls++
		return "", nil
	}
	identity := func(s string) string { return s }
	parse := func(s string) (string, error) { return s, nil }
	empty := func(s string) bool { return s == "" }

	for i := 0; i < 2; i++ {
		got, err := cache.GetWithCached(ctx, c, "missing", time.Minute, time.Minute, empty, identity, parse, load)
		if err != nil {
			t.Fatalf("GetWithCached: %v", err)
		}
		if got != "" {
			t.Fatalf("expected empty result, got %q", got)
		}
	}
	if calls != 1 {
		t.Fatalf("expected null marker to absorb the second read, got %d loader calls", calls)
	}

	stored, err := c.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored != cache.NullCacheValue {
		t.Fatalf("expected null marker in cache, got %q", stored)
	}
}

func TestUpdateCachedInvalidatesKeys(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "stale-1", "x", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(ctx, "stale-2", "y", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	updated := false
	err := cache.UpdateCached(ctx, c, func(context.Context) error {
		updated = true
		return nil
	}, "stale-1", "stale-2")
	if err != nil {
		t.Fatalf("UpdateCached: %v", err)
	}
	if !updated {
		t.Fatal("expected update fn to run")
	}

	count, err := c.Exists(ctx, "stale-1", "stale-2")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected caches invalidated, got %d keys", count)
	}
}

func TestUpdateCachedKeepsCacheOnFailure(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "live", "x", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	wantErr := context.DeadlineExceeded
	err := cache.UpdateCached(ctx, c, func(context.Context) error {
		return wantErr
	}, "live")
	if err != wantErr {
		t.Fatalf("expected update error back, got %v", err)
	}

	value, err := c.Get(ctx, "live")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != "x" {
		t.Fatalf("expected cache untouched after failed update, got %q", value)
	}
}
