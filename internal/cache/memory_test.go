package cache

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGetMissingKey(t *testing.T) {
	c := NewMemory()

	if _, ok := c.Get("nope"); ok {
		t.Error("expected miss for missing key")
	}
}

func TestSetThenGet(t *testing.T) {
	c := NewMemory()
	c.Set("schedule:season=2024", "payload", time.Minute)

	v, ok := c.Get("schedule:season=2024")
	if !ok {
		t.Fatal("expected hit")
	}
	if v.(string) != "payload" {
		t.Errorf("got %v, want payload", v)
	}
}

func TestZeroTTLIsImmediatelyExpired(t *testing.T) {
	c := NewMemory()
	c.Set("k", "v", 0)

	if _, ok := c.Get("k"); ok {
		t.Error("entry with ttl=0 should be reported as not found")
	}
}

func TestExpiredEntryTreatedAsAbsent(t *testing.T) {
	c := NewMemory()
	c.Set("k", "v", 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry should be a miss")
	}

	// Still reachable through the stale path until purged.
	if v, ok := c.GetStale("k"); !ok || v.(string) != "v" {
		t.Error("stale read should still see the expired value")
	}
}

func TestInvalidateAll(t *testing.T) {
	c := NewMemory()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.InvalidateAll()

	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after InvalidateAll")
	}
	if _, ok := c.GetStale("b"); ok {
		t.Error("stale entries are dropped too")
	}
}

func TestGetOrFetchCachesResult(t *testing.T) {
	c := NewMemory()
	calls := 0

	fetch := func() (interface{}, error) {
		calls++
		return "fetched", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrFetch("k", time.Minute, fetch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.(string) != "fetched" {
			t.Errorf("got %v", v)
		}
	}

	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestGetOrFetchErrorLeavesCacheUntouched(t *testing.T) {
	c := NewMemory()

	_, err := c.GetOrFetch("k", time.Minute, func() (interface{}, error) {
		return nil, errors.New("upstream down")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	if _, ok := c.GetStale("k"); ok {
		t.Error("failed fetch must not write to the cache")
	}
}

func TestConcurrentMissesBothFetchLastWriterWins(t *testing.T) {
	c := NewMemory()

	var mu sync.Mutex
	fetched := map[string]bool{}
	start := make(chan struct{})

	var wg sync.WaitGroup
	for _, payload := range []string{"payload-a", "payload-b"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			<-start
			v, err := c.GetOrFetch("schedule:season=2024", time.Minute, func() (interface{}, error) {
				time.Sleep(10 * time.Millisecond) // both goroutines miss
				return p, nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			fetched[v.(string)] = true
			mu.Unlock()
		}(payload)
	}
	close(start)
	wg.Wait()

	// Final value is one of the two payloads, and subsequent reads within
	// the TTL consistently return that same payload.
	v, ok := c.Get("schedule:season=2024")
	if !ok {
		t.Fatal("expected hit after concurrent fetches")
	}
	s := v.(string)
	if s != "payload-a" && s != "payload-b" {
		t.Errorf("cached value %q is neither fetched payload", s)
	}
	for i := 0; i < 5; i++ {
		again, _ := c.Get("schedule:season=2024")
		if again.(string) != s {
			t.Errorf("read %d returned %v, want stable %q", i, again, s)
		}
	}
}

func TestSweepPurgesExpired(t *testing.T) {
	c := NewMemory()
	c.Set("old", 1, time.Millisecond)
	c.Set("fresh", 2, time.Minute)

	time.Sleep(5 * time.Millisecond)

	if purged := c.Sweep(); purged != 1 {
		t.Errorf("purged %d entries, want 1", purged)
	}
	if _, ok := c.GetStale("old"); ok {
		t.Error("swept entry should be physically gone")
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry should survive the sweep")
	}
}

func TestKeyParamsAreSorted(t *testing.T) {
	a := Key("oddsapi", "props", "event=123", "market=points")
	b := Key("oddsapi", "props", "market=points", "event=123")
	if a != b {
		t.Errorf("identical calls produced different keys: %q vs %q", a, b)
	}
	if a != "oddsapi:props:event=123:market=points" {
		t.Errorf("unexpected key format: %q", a)
	}
}
