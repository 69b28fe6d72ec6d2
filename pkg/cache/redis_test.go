package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisBacking(t *testing.T) *RedisBacking {
	t.Helper()
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(server.Close)

	backing, err := NewRedisBacking(server.Addr(), "", 0)
	if err != nil {
		t.Fatalf("NewRedisBacking: %v", err)
	}
	t.Cleanup(func() { _ = backing.Close() })
	return backing
}

func TestRedisBacking_SetThenGet(t *testing.T) {
	backing := newTestRedisBacking(t)
	ctx := context.Background()

	if err := backing.Set(ctx, "k1", "v1", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, ok, err := backing.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || value != "v1" {
		t.Errorf("Get = (%q, %v); want (v1, true)", value, ok)
	}
}

func TestRedisBacking_MissingKeyIsMiss(t *testing.T) {
	backing := newTestRedisBacking(t)
	_, ok, err := backing.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Errorf("expected miss for unset key")
	}
}

func TestRedisBacking_ExpiredKeyIsMiss(t *testing.T) {
	backing := newTestRedisBacking(t)
	ctx := context.Background()

	if err := backing.Set(ctx, "k1", "v1", time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	_, ok, err := backing.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Errorf("expected expired key to miss")
	}
}

func TestAdvisory_UsesRedisBackingAsFallback(t *testing.T) {
	backing := newTestRedisBacking(t)
	ctx := context.Background()

	if err := backing.Set(ctx, "prewarmed", `"value"`, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	adv := New(DefaultConfig(), backing)
	value, ok := adv.Get(ctx, "prewarmed")
	if !ok || value != "value" {
		t.Errorf("Get = (%v, %v); want (value, true)", value, ok)
	}
}
