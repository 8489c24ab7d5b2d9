// Package cache shares open archive handles between connections.
//
// A Cache maps container locations to open handles. Handles it installs are
// cache-managed: connections read through them but never close them, and they
// stay open until evicted with Close or Purge. Opening happens outside the
// cache lock, and concurrent opens of the same location are coalesced so the
// location is opened once.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/nest/archive"
)

// ErrPermissionDenied is returned when the access check rejects a location.
var ErrPermissionDenied = errors.New("cache: permission denied")

// OpenFunc opens the archive at location.
type OpenFunc func(ctx context.Context, location string) (*archive.Handle, error)

// AccessCheck authorizes reading location. A non-nil error denies access.
type AccessCheck func(ctx context.Context, location string) error

// Cache holds cache-managed archive handles keyed by location.
// It is safe for concurrent use.
type Cache struct {
	open   OpenFunc
	check  AccessCheck
	logger *slog.Logger
	group  singleflight.Group

	mu       sync.Mutex
	byLoc    map[string]*archive.Handle
	byHandle map[*archive.Handle]string
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger for cache events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithAccessCheck installs a check run before every open and every hit.
func WithAccessCheck(check AccessCheck) Option {
	return func(c *Cache) {
		c.check = check
	}
}

// New returns an empty cache that opens archives with open.
func New(open OpenFunc, opts ...Option) *Cache {
	c := &Cache{
		open:     open,
		byLoc:    make(map[string]*archive.Handle),
		byHandle: make(map[*archive.Handle]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Get returns a handle for location. With useCache set the handle is shared
// and cache-managed; otherwise a fresh ephemeral handle is opened that the
// caller must close. Sequential archives can be read only once, so they are
// always returned ephemeral.
func (c *Cache) Get(ctx context.Context, location string, useCache bool) (*archive.Handle, error) {
	if err := c.authorize(ctx, location); err != nil {
		return nil, err
	}
	if !useCache {
		return c.openFresh(ctx, location)
	}

	if h, ok := c.lookup(location); ok {
		c.log().Debug("archive cache hit", "location", location)
		return h, nil
	}

	// The shared open outlives any single caller, so it must not inherit
	// one caller's cancellation.
	openCtx := context.WithoutCancel(ctx)
	ran := false
	v, err, _ := c.group.Do(location, func() (any, error) {
		ran = true
		if h, ok := c.lookup(location); ok {
			return h, nil
		}
		h, err := c.openFresh(openCtx, location)
		if err != nil {
			return nil, err
		}
		if _, ok := h.RandomAccess(); !ok {
			return uncacheable{h}, nil
		}
		return c.install(location, h), nil
	})
	if err != nil {
		return nil, err
	}
	if u, ok := v.(uncacheable); ok {
		c.log().Debug("archive not cacheable", "location", location)
		if ran {
			return u.h, nil
		}
		// The opener's stream belongs to the caller that ran the open.
		return c.openFresh(ctx, location)
	}
	return v.(*archive.Handle), nil
}

// uncacheable carries a sequential handle out of a shared open.
type uncacheable struct {
	h *archive.Handle
}

// Close closes h. A cache-managed handle is evicted first, so later lookups
// of its location open a fresh archive.
func (c *Cache) Close(h *archive.Handle) error {
	return h.Close()
}

// Len returns the number of cached handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byLoc)
}

// Purge closes and evicts every cached handle.
func (c *Cache) Purge() error {
	c.mu.Lock()
	handles := make([]*archive.Handle, 0, len(c.byHandle))
	for h := range c.byHandle {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// lookup returns the cached handle for location. A handle whose Close has
// begun is a miss; its stale mapping is dropped here so the eviction that
// follows finds nothing to do.
func (c *Cache) lookup(location string) (*archive.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(location)
}

func (c *Cache) liveLocked(location string) (*archive.Handle, bool) {
	h, ok := c.byLoc[location]
	if !ok {
		return nil, false
	}
	if h.Closed() {
		delete(c.byLoc, location)
		delete(c.byHandle, h)
		return nil, false
	}
	return h, true
}

// install records h for location unless another handle won the race, in
// which case h is closed and the winner returned.
func (c *Cache) install(location string, h *archive.Handle) *archive.Handle {
	c.mu.Lock()
	if existing, ok := c.liveLocked(location); ok {
		c.mu.Unlock()
		_ = h.Close() //nolint:errcheck // discarding a duplicate handle
		return existing
	}
	h.Manage(c.evict)
	c.byLoc[location] = h
	c.byHandle[h] = location
	c.mu.Unlock()

	c.log().Debug("archive cached", "location", location)
	return h
}

// evict removes both mappings for h. It runs before h is closed.
func (c *Cache) evict(h *archive.Handle) {
	c.mu.Lock()
	location, ok := c.byHandle[h]
	if ok {
		delete(c.byHandle, h)
		if c.byLoc[location] == h {
			delete(c.byLoc, location)
		}
	}
	c.mu.Unlock()

	if ok {
		c.log().Debug("archive evicted", "location", location)
	}
}

func (c *Cache) openFresh(ctx context.Context, location string) (*archive.Handle, error) {
	h, err := c.open(ctx, location)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%w: %s", archive.ErrContainerNotFound, location)
	}
	return h, nil
}

func (c *Cache) authorize(ctx context.Context, location string) error {
	if c.check == nil {
		return nil
	}
	if err := c.check(ctx, location); err != nil {
		c.log().Debug("archive access denied", "location", location, "error", err)
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrPermissionDenied, location, err)
	}
	return nil
}
