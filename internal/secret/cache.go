package secret

import (
	"context"
	"sync"
	"time"

	"github.com/jmehdipour/hookrelay/internal/apperr"
	"golang.org/x/sync/singleflight"
)

type cached struct {
	value     string
	fetchedAt time.Time
}

// Cache is the process-scoped secret cache shared by one service. With ttl == 0 a value
// is kept until the process exits; with ttl > 0 it is fetched again once older than ttl.
// Failed lookups are never cached.
type Cache struct {
	inner   Provider
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]cached
	group   singleflight.Group
}

func NewCache(inner Provider, ttl, timeout time.Duration) *Cache {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Cache{
		inner:   inner,
		ttl:     ttl,
		timeout: timeout,
		now:     time.Now,
		entries: make(map[string]cached),
	}
}

func (c *Cache) lookup(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[name]
	if !ok {
		return "", false
	}
	if c.ttl > 0 && c.now().Sub(e.fetchedAt) >= c.ttl {
		return "", false
	}
	return e.value, true
}

// Secret returns the cached value or fetches it, bounded by the cache timeout.
// Any store failure is reported as apperr.Unavailable.
func (c *Cache) Secret(ctx context.Context, name string) (string, error) {
	if v, ok := c.lookup(name); ok {
		return v, nil
	}

	ch := c.group.DoChan(name, func() (any, error) {
		if v, ok := c.lookup(name); ok {
			return v, nil
		}

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		v, err := c.inner.Secret(fctx, name)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.entries[name] = cached{value: v, fetchedAt: c.now()}
		c.mu.Unlock()

		return v, nil
	})

	select {
	case <-ctx.Done():
		return "", apperr.Wrap(apperr.Unavailable, "secret store unavailable", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", apperr.Wrap(apperr.Unavailable, "secret store unavailable", res.Err)
		}
		return res.Val.(string), nil
	}
}
