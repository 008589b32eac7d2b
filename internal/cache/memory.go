package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process TTL cache shared by every provider accessor.
// A single mutex guards the whole map; call volume is bounded by upstream
// quotas, so per-key locking buys nothing here.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
	}
}

// Get returns the cached value for key. Entries past their expiry are
// reported as absent even if not yet purged.
func (m *Memory) Get(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !time.Now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// GetStale returns the cached value even if it has expired. Sync jobs use
// this as a fallback when the upstream call fails or quota is exhausted.
func (m *Memory) GetStale(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl. Writing to a key purges any expired
// entry it replaces.
func (m *Memory) Set(key string, value interface{}, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// InvalidateAll drops every entry.
func (m *Memory) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]entry)
}

// GetOrFetch returns the cached value for key, or calls fetch and caches the
// result for ttl. The lock is held only around map access, never across the
// fetch, so two concurrent misses may both hit upstream; the second write
// simply overwrites the first. Results for the same key within a TTL window
// are equivalent, so last-writer-wins is acceptable.
// The cache is only written after fetch succeeds, so an abandoned or failed
// call leaves cache state untouched.
func (m *Memory) GetOrFetch(key string, ttl time.Duration, fetch func() (interface{}, error)) (interface{}, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}

	v, err := fetch()
	if err != nil {
		return nil, err
	}

	m.Set(key, v, ttl)
	return v, nil
}

// Sweep removes expired entries and returns how many were purged.
// The scheduler calls this opportunistically; correctness never depends on it.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	purged := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			purged++
		}
	}
	return purged
}

// Key builds a cache key from provider, operation, and parameters.
// Parameters are sorted so the same call always maps to the same key.
func Key(provider, operation string, params ...string) string {
	if len(params) == 0 {
		return provider + ":" + operation
	}
	sorted := make([]string, len(params))
	copy(sorted, params)
	sort.Strings(sorted)
	return provider + ":" + operation + ":" + strings.Join(sorted, ":")
}
