package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"order-agent/internal/domain"
)

// MenuLoader is implemented by every menu backend in this package.
type MenuLoader interface {
	LoadMenu(ctx context.Context) (*domain.Menu, error)
}

// MenuCache keeps the last loaded menu for ttl. Concurrent misses share one
// reload, and a failed reload keeps serving the previous snapshot. The
// returned pointer only changes when a reload succeeds.
type MenuCache struct {
	src   MenuLoader
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu       sync.RWMutex
	menu     *domain.Menu
	loadedAt time.Time
}

// NewMenuCache wraps src. A non-positive ttl disables caching.
func NewMenuCache(src MenuLoader, ttl time.Duration) (*MenuCache, error) {
	if src == nil {
		return nil, errors.New("repository: menu loader must not be nil")
	}
	return &MenuCache{src: src, ttl: ttl, now: time.Now}, nil
}

func (c *MenuCache) LoadMenu(ctx context.Context) (*domain.Menu, error) {
	c.mu.RLock()
	cached, at := c.menu, c.loadedAt
	c.mu.RUnlock()
	if cached != nil && c.now().Sub(at) < c.ttl {
		return cached, nil
	}

	v, err, _ := c.group.Do("menu", func() (any, error) {
		c.mu.RLock()
		current, currentAt := c.menu, c.loadedAt
		c.mu.RUnlock()
		if current != nil && current != cached && c.now().Sub(currentAt) < c.ttl {
			return current, nil
		}
		fresh, err := c.src.LoadMenu(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.menu, c.loadedAt = fresh, c.now()
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		if cached != nil {
			slog.Warn("repository: menu reload failed, serving cached copy", "err", err, "age", c.now().Sub(at))
			return cached, nil
		}
		return nil, fmt.Errorf("repository: load menu: %w", err)
	}
	return v.(*domain.Menu), nil
}

// Invalidate forces the next LoadMenu to reload.
func (c *MenuCache) Invalidate() {
	c.mu.Lock()
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}
