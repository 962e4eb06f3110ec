package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache stores successful validation results for a short time.
type Cache interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Set(ctx context.Context, key string, res Result, ttl time.Duration) error
}

// CachedValidator answers from cache when a fresh entry exists and falls
// through to the wrapped Validator otherwise. Only successes are cached, so
// failures and cache errors always lead to a new validation.
type CachedValidator struct {
	next  Validator
	cache Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewCachedValidator wraps next with a cache whose entries live at most ttl.
func NewCachedValidator(next Validator, cache Cache, ttl time.Duration) *CachedValidator {
	return &CachedValidator{next: next, cache: cache, ttl: ttl, now: time.Now}
}

// Validate implements Validator.
func (c *CachedValidator) Validate(ctx context.Context, token string) (Result, error) {
	key := cacheKey(token)
	now := c.now()

	res, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("Validation cache lookup failed, revalidating")
	} else if ok && (res.ExpiresAt.IsZero() || now.Before(res.ExpiresAt)) {
		return res, nil
	}

	res, err = c.next.Validate(ctx, token)
	if err != nil {
		return Result{}, err
	}

	ttl := c.ttl
	if !res.ExpiresAt.IsZero() {
		if remaining := res.ExpiresAt.Sub(now); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl > 0 {
		if err := c.cache.Set(ctx, key, res, ttl); err != nil {
			log.Warn().Err(err).Msg("Failed to cache validation result")
		}
	}
	return res, nil
}

// cacheKey hashes the token so raw credentials never become cache keys.
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	res       Result
	expiresAt time.Time
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	entries map[string]cacheEntry
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry), now: time.Now}
}

// Get returns the entry for key if it has not expired.
func (m *MemoryCache) Get(ctx context.Context, key string) (Result, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok || !m.now().Before(entry.expiresAt) {
		return Result{}, false, nil
	}
	return entry.res, true, nil
}

// Set stores res under key for ttl.
func (m *MemoryCache) Set(ctx context.Context, key string, res Result, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = cacheEntry{res: res, expiresAt: m.now().Add(ttl)}
	return nil
}

// Prune drops expired entries and returns how many were removed.
func (m *MemoryCache) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
