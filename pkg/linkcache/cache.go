// Package linkcache caches resolved download URLs per (torrent, file) with idle expiry
// and collapses concurrent resolutions of the same key into one upstream request.
package linkcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/singleflight"

	"torboxdav/pkg/logger"
	"torboxdav/pkg/metrics"
)

// Resolver performs the upstream "request download link" call
type Resolver interface {
	RequestDownloadLink(ctx context.Context, torrentID, fileID int64) (string, error)
}

type entry struct {
	url        string
	lastAccess atomic.Int64
}

// Cache maps (torrent, file) to a direct URL. An entry expires once it has not been
// read for the idle duration; every read restarts that countdown and there is no cap
// on total lifetime.
type Cache struct {
	resolver Resolver
	idle     time.Duration
	entries  cmap.ConcurrentMap[string, *entry]
	group    singleflight.Group
	now      func() time.Time
}

// Option customizes a Cache
type Option func(*Cache)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache in front of resolver
func New(resolver Resolver, idle time.Duration, opts ...Option) *Cache {
	c := &Cache{
		resolver: resolver,
		idle:     idle,
		entries:  cmap.New[*entry](),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds the composite cache key
func Key(torrentID, fileID int64) string {
	return fmt.Sprintf("torrent_id:%d,file_id:%d", torrentID, fileID)
}

// Resolve returns the cached URL for the file or resolves it upstream. Concurrent
// callers for the same key share one upstream call. Failures are not cached.
func (c *Cache) Resolve(ctx context.Context, torrentID, fileID int64) (string, error) {
	key := Key(torrentID, fileID)
	if url, ok := c.lookup(key); ok {
		metrics.RecordLinkCache("hit")
		return url, nil
	}

	// The shared call outlives any single waiter's cancellation.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// another caller may have filled the entry between our lookup and here
		if url, ok := c.lookup(key); ok {
			return url, nil
		}

		logger.Info("[Links] File %d of torrent %d not present in cache", fileID, torrentID)
		url, err := c.resolver.RequestDownloadLink(detached, torrentID, fileID)
		metrics.RecordLinkResolution(err)
		if err != nil {
			logger.Warn("[Links] Failed to resolve file %d of torrent %d: %v", fileID, torrentID, err)
			return nil, err
		}

		e := &entry{url: url}
		e.lastAccess.Store(c.now().UnixNano())
		c.entries.Set(key, e)
		return url, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.RecordLinkCache("shared")
		} else {
			metrics.RecordLinkCache("miss")
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Cache) lookup(key string) (string, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		return "", false
	}

	now := c.now()
	if c.expired(e, now) {
		c.remove(key, e)
		return "", false
	}
	e.lastAccess.Store(now.UnixNano())
	return e.url, true
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return now.Sub(time.Unix(0, e.lastAccess.Load())) >= c.idle
}

// remove deletes key only if it still holds e, so a fresh entry is never dropped
func (c *Cache) remove(key string, e *entry) {
	c.entries.RemoveCb(key, func(_ string, v *entry, exists bool) bool {
		return exists && v == e
	})
}

// Sweep drops every idle entry and returns how many were removed
func (c *Cache) Sweep() int {
	now := c.now()
	removed := 0
	for item := range c.entries.IterBuffered() {
		if c.expired(item.Val, now) {
			c.remove(item.Key, item.Val)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included until swept
func (c *Cache) Len() int {
	return c.entries.Count()
}

// Run sweeps idle entries periodically until ctx is done
func (c *Cache) Run(ctx context.Context) {
	interval := c.idle / 2
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				logger.Debug("[Links] Swept %d idle download links", n)
			}
		}
	}
}
