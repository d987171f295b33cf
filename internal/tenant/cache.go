// internal/tenant/cache.go
//
// Lazy hostname-lookup cache.
//
// The HTTP edge resolves every inbound Host header to an organization.
// The cache loads each (kind, hostname) pair once through the Directory,
// stores it in a sync.Map, and evicts on idle TTL or LRU pressure.  A
// singleflight group collapses concurrent first hits for the same key
// into one query.

package tenant

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/subvind/API-sub000/internal/metrics"
)

// Static defaults.  Override via the New parameters if desired.
const (
	IdleTTL       = 30 * time.Minute
	MaxEntries    = 1000
	EvictInterval = 5 * time.Minute
)

type entry struct {
	org      *Organization
	lastSeen int64 // UnixNano
}

// Cache wraps a Directory's hostname lookups with an in-process cache.
type Cache struct {
	dir         Directory
	sfg         singleflight.Group
	m           sync.Map
	evictTicker *time.Ticker
	idleTTL     time.Duration
	maxEntries  int
}

// NewCache constructs a Cache and starts the background evictor.
func NewCache(dir Directory, idleTTL time.Duration, maxEntries int) *Cache {
	c := &Cache{
		dir:        dir,
		idleTTL:    idleTTL,
		maxEntries: maxEntries,
	}
	c.evictTicker = time.NewTicker(EvictInterval)
	go c.evictLoop()
	return c
}

// ByHostname returns the organization for (kind, hostname), loading it
// on demand.  Misses are ErrNotFound and are not cached, so a hostname
// registered mid-flight is visible on the next request.
func (c *Cache) ByHostname(ctx context.Context, kind HostnameKind, hostname string) (*Organization, error) {
	key := string(kind) + "|" + hostname

	if v, ok := c.m.Load(key); ok {
		ent := v.(*entry)
		atomic.StoreInt64(&ent.lastSeen, time.Now().UnixNano())
		return ent.org, nil
	}

	// The flight outlives its first caller: that request's cancellation
	// must not fail every waiter sharing the key, so the load runs on a
	// detached context.
	loadCtx := context.WithoutCancel(ctx)

	v, err, _ := c.sfg.Do(key, func() (interface{}, error) {
		// Double-check after singleflight barrier.
		if v, ok := c.m.Load(key); ok {
			ent := v.(*entry)
			atomic.StoreInt64(&ent.lastSeen, time.Now().UnixNano())
			return ent.org, nil
		}
		org, err := c.dir.ByHostname(loadCtx, kind, hostname)
		if err != nil {
			metrics.TenantLoadErrorsTotal.Inc()
			return nil, err
		}
		ent := &entry{
			org:      org,
			lastSeen: time.Now().UnixNano(),
		}
		c.m.Store(key, ent)
		metrics.TenantLoadTotal.Inc()
		metrics.ActiveTenants.Inc()
		return org, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Organization), nil
}

// Invalidate drops a cached pair, e.g. after a hostname change.
func (c *Cache) Invalidate(kind HostnameKind, hostname string) {
	if _, ok := c.m.LoadAndDelete(string(kind) + "|" + hostname); ok {
		metrics.ActiveTenants.Dec()
	}
}

// Stop halts the evictor ticker.  Entries stay resident until process
// exit; there is nothing to close per entry.
func (c *Cache) Stop() {
	c.evictTicker.Stop()
}
