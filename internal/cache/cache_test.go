package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestKeyFormats(t *testing.T) {
	if got := DefaultBranchInfoKey("octocat", "Hello-World"); got != "default-branch-info:octocat:Hello-World" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := CommitKey("master", "octocat", "Hello-World"); got != "commit:master:octocat:Hello-World" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := ChatKey("https://github.com/octocat/Hello-World", "master", "abc123"); got != "chat:https://github.com/octocat/Hello-World:master:abc123" {
		t.Fatalf("unexpected key: %s", got)
	}
	// An unknown commit yields a distinct key with a trailing separator.
	if got := ChatKey("https://github.com/octocat/Hello-World", "master", ""); got != "chat:https://github.com/octocat/Hello-World:master:" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestRedisCache(t *testing.T) {
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	store, err := NewRedisCache(Config{Addr: mini.Addr()})
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}

	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected silent miss, got ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "commit:master:octocat:Hello-World", "abc123", time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, ok, err := store.Get(ctx, "commit:master:octocat:Hello-World")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if value != "abc123" {
		t.Fatalf("unexpected value: %s", value)
	}

	// Expired entries are invisible.
	mini.FastForward(time.Hour + time.Minute)
	if _, ok, err := store.Get(ctx, "commit:master:octocat:Hello-World"); err != nil || ok {
		t.Fatalf("expected miss after expiry, got ok=%v err=%v", ok, err)
	}
}

func TestRedisCacheNoExpiry(t *testing.T) {
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	store, err := NewRedisCache(Config{Addr: mini.Addr()})
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}

	ctx := context.Background()
	if err := store.Set(ctx, "repo-valid:https://github.com/octocat/Hello-World", "true", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	mini.FastForward(100 * time.Hour)
	value, ok, err := store.Get(ctx, "repo-valid:https://github.com/octocat/Hello-World")
	if err != nil || !ok || value != "true" {
		t.Fatalf("expected indefinite entry to survive, got %q ok=%v err=%v", value, ok, err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Now()
	store := NewMemoryCacheWithClock(func() time.Time { return now })

	ctx := context.Background()
	if err := store.Set(ctx, "k", "v", time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if value, ok, _ := store.Get(ctx, "k"); !ok || value != "v" {
		t.Fatalf("expected hit, got %q ok=%v", value, ok)
	}

	now = now.Add(time.Hour + time.Second)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after expiry")
	}

	// Zero TTL never expires.
	if err := store.Set(ctx, "forever", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	now = now.Add(1000 * time.Hour)
	if _, ok, _ := store.Get(ctx, "forever"); !ok {
		t.Fatalf("expected indefinite entry to survive")
	}
}

func TestMemoryCacheEvictsExpiredOnRead(t *testing.T) {
	now := time.Now()
	store := NewMemoryCacheWithClock(func() time.Time { return now })
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := store.Set(ctx, key, "v", time.Hour); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	now = now.Add(2 * time.Hour)
	for _, key := range []string{"a", "b", "c"} {
		if _, ok, _ := store.Get(ctx, key); ok {
			t.Fatalf("expected miss for expired %q", key)
		}
	}

	// Expired reads drop the entries instead of leaving them behind.
	mem := store.(*memoryCache)
	mem.mu.RLock()
	remaining := len(mem.entries)
	mem.mu.RUnlock()
	if remaining != 0 {
		t.Fatalf("expected expired entries to be evicted, %d remain", remaining)
	}

	// A fresh write after eviction behaves normally.
	if err := store.Set(ctx, "a", "v2", time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if value, ok, _ := store.Get(ctx, "a"); !ok || value != "v2" {
		t.Fatalf("expected fresh entry after eviction, got %q ok=%v", value, ok)
	}
}
