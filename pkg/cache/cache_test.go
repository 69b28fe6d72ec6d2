package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAdvisory_SetThenGet(t *testing.T) {
	c := New(DefaultConfig(), nil)
	c.Set(context.Background(), "k1", map[string]any{"rows": 3}, 0)

	got, ok := c.Get(context.Background(), "k1")
	if !ok {
		t.Fatalf("expected hit")
	}
	m, ok := got.(map[string]any)
	if !ok || m["rows"] != 3 {
		t.Errorf("got = %#v; want rows=3", got)
	}
}

func TestAdvisory_MissingKeyIsMiss(t *testing.T) {
	c := New(DefaultConfig(), nil)
	if _, ok := c.Get(context.Background(), "absent"); ok {
		t.Errorf("expected miss for absent key")
	}
}

func TestAdvisory_ExpiredEntryIsMiss(t *testing.T) {
	c := New(DefaultConfig(), nil)
	c.Set(context.Background(), "k1", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get(context.Background(), "k1"); ok {
		t.Errorf("expected expired entry to be a miss")
	}
}

func TestAdvisory_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(Config{MaxSize: 2, DefaultTTL: time.Minute, CleanupInterval: time.Minute}, nil)
	ctx := context.Background()

	c.Set(ctx, "a", 1, 0)
	c.Set(ctx, "b", 2, 0)
	// touch a so b becomes the LRU victim
	c.Get(ctx, "a")
	c.Set(ctx, "c", 3, 0)

	if _, ok := c.Get(ctx, "b"); ok {
		t.Errorf("expected b to be evicted as least recently used")
	}
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Errorf("expected a to survive eviction")
	}
	if _, ok := c.Get(ctx, "c"); !ok {
		t.Errorf("expected c to survive as most recently inserted")
	}
	if got := c.Len(); got != 2 {
		t.Errorf("Len() = %d; want 2", got)
	}
}

func TestAdvisory_Clear(t *testing.T) {
	c := New(DefaultConfig(), nil)
	ctx := context.Background()
	c.Set(ctx, "a", 1, 0)
	c.Set(ctx, "b", 2, 0)

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() after Clear() = %d; want 0", c.Len())
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Errorf("expected miss after Clear()")
	}
}

func TestKeyFrom_SameArgsSameKey(t *testing.T) {
	k1 := KeyFrom("plan", "select * from t", []any{1, "x"})
	k2 := KeyFrom("plan", "select * from t", []any{1, "x"})
	if k1 != k2 {
		t.Errorf("KeyFrom not stable: %s != %s", k1, k2)
	}
}

func TestKeyFrom_OrderSensitive(t *testing.T) {
	k1 := KeyFrom("plan", "a", "b")
	k2 := KeyFrom("plan", "b", "a")
	if k1 == k2 {
		t.Errorf("KeyFrom(a,b) should differ from KeyFrom(b,a), got same key %s", k1)
	}
}

func TestKeyFrom_DifferentPrefixDifferentKey(t *testing.T) {
	k1 := KeyFrom("schema", "x")
	k2 := KeyFrom("plan", "x")
	if k1 == k2 {
		t.Errorf("expected different prefixes to produce different keys")
	}
}

type fakeBacking struct {
	store map[string]string
	err   error
}

func (f *fakeBacking) Get(ctx context.Context, key string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	v, ok := f.store[key]
	return v, ok, nil
}

func (f *fakeBacking) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.store[key] = value
	return nil
}

func TestAdvisory_FallsBackToBackingStoreOnLocalMiss(t *testing.T) {
	backing := &fakeBacking{store: map[string]string{"k1": `{"rows":5}`}}
	c := New(DefaultConfig(), backing)

	got, ok := c.Get(context.Background(), "k1")
	if !ok {
		t.Fatalf("expected hit via backing store")
	}
	m := got.(map[string]any)
	if m["rows"].(float64) != 5 {
		t.Errorf("got = %#v; want rows=5", got)
	}
}

func TestAdvisory_BackingStoreErrorDegradesToMiss(t *testing.T) {
	backing := &fakeBacking{err: errors.New("connection refused")}
	c := New(DefaultConfig(), backing)

	if _, ok := c.Get(context.Background(), "k1"); ok {
		t.Errorf("expected miss when backing store errors")
	}
}
