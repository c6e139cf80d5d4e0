package authority

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultResolveTTL bounds how long a revoked credential can keep resolving.
const DefaultResolveTTL = 30 * time.Second

type resolveEntry struct {
	principal *Principal
	expiresAt time.Time
}

// CachedAuthority wraps another Authority with a short-lived resolve cache
// to avoid a bcrypt comparison per request. Only successful resolutions are
// cached, so a bad credential is always re-checked; a revoked credential
// stops authorizing within the TTL. Credentials are cached under their
// SHA-256 digest so plaintext keys never sit in the map.
type CachedAuthority struct {
	inner Authority
	ttl   time.Duration
	mu    sync.RWMutex
	cache map[string]resolveEntry
}

// NewCachedAuthority wraps inner with the given TTL.
func NewCachedAuthority(inner Authority, ttl time.Duration) *CachedAuthority {
	if ttl <= 0 {
		ttl = DefaultResolveTTL
	}
	return &CachedAuthority{
		inner: inner,
		ttl:   ttl,
		cache: make(map[string]resolveEntry),
	}
}

// Resolve checks the cache first and delegates to the inner Authority on miss.
func (c *CachedAuthority) Resolve(ctx context.Context, credential string) (*Principal, error) {
	if credential == "" {
		return c.inner.Resolve(ctx, credential)
	}

	key := digest(credential)

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()

	if ok && time.Now().Before(entry.expiresAt) {
		return entry.principal, nil
	}

	principal, err := c.inner.Resolve(ctx, credential)
	if err != nil {
		c.mu.Lock()
		delete(c.cache, key)
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = resolveEntry{principal: principal, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return principal, nil
}

// Authorize delegates to the inner Authority; ownership checks are pure.
func (c *CachedAuthority) Authorize(principal *Principal, namespace string) bool {
	return c.inner.Authorize(principal, namespace)
}

// Invalidate drops a cached credential, e.g. after its key is revoked
// through this process.
func (c *CachedAuthority) Invalidate(credential string) {
	c.mu.Lock()
	delete(c.cache, digest(credential))
	c.mu.Unlock()
}

func digest(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

var _ Authority = (*CachedAuthority)(nil)
