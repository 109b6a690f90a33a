package profile

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/locomotion-ai/locomotion/internal/auth"
)

// ResolverIface is implemented by Resolver and by Cache itself, so callers
// can take either interchangeably.
type ResolverIface interface {
	Resolve(ctx context.Context, identity *auth.AccountIdentity) (*Profile, error)
}

type cachedProfile struct {
	profile   *Profile
	fetchedAt time.Time
}

// Cache wraps a Resolver with a bounded TTL cache. Concurrent resolutions
// for the same account are coalesced via singleflight, enforcing the
// at-most-one-in-flight-resolution-per-identity invariant server-side.
// Failed resolutions are never cached.
type Cache struct {
	resolver ResolverIface
	ttl      time.Duration
	entries  *lru.Cache[string, *cachedProfile]
	sf       singleflight.Group
}

// NewCache creates a cache holding up to size profiles for at most ttl each.
func NewCache(resolver ResolverIface, size int, ttl time.Duration) (*Cache, error) {
	entries, err := lru.New[string, *cachedProfile](size)
	if err != nil {
		return nil, err
	}
	return &Cache{resolver: resolver, ttl: ttl, entries: entries}, nil
}

// Resolve returns the cached profile for the identity, or resolves fresh if
// the entry is missing or expired. Concurrent calls for the same account id
// share a single underlying resolution.
func (c *Cache) Resolve(ctx context.Context, identity *auth.AccountIdentity) (*Profile, error) {
	if identity == nil || identity.ID == "" {
		return nil, ErrProfileNotFound
	}

	if entry, ok := c.entries.Get(identity.ID); ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry.profile, nil
	}

	result, err, _ := c.sf.Do(identity.ID, func() (any, error) {
		// Double-check inside singleflight: another goroutine may have
		// populated the entry while we waited.
		if entry, ok := c.entries.Get(identity.ID); ok && time.Since(entry.fetchedAt) < c.ttl {
			return entry.profile, nil
		}

		p, err := c.resolver.Resolve(ctx, identity)
		if err != nil {
			return nil, err
		}

		c.entries.Add(identity.ID, &cachedProfile{profile: p, fetchedAt: time.Now()})
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Profile), nil
}

// Invalidate drops the cached profile for an account, forcing the next
// Resolve to hit the store. Used after admin role/tenant-access changes.
func (c *Cache) Invalidate(accountID string) {
	c.entries.Remove(accountID)
}
