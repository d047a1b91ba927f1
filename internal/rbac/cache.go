package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/academico/academico/internal/shared"
)

// InvalidationPublisher fans local invalidations out to other instances.
type InvalidationPublisher interface {
	PublishInvalidation(ctx context.Context, roleIDs []int64, all bool) error
}

// PermissionCache maps role id to the set of view codes granted to it.
//
// Entries are populated lazily and live until invalidated; there is no TTL.
// Every invalidation bumps a per-role generation (or the global epoch for
// Clear), and a load only stores its result when the generation it started
// under is still current. A reader that calls Get after Invalidate returned
// therefore never observes a value computed before the invalidation.
type PermissionCache struct {
	loader    RoleViewLoader
	logger    *slog.Logger
	observer  CacheObserver
	publisher InvalidationPublisher

	mu          sync.Mutex
	entries     map[int64]shared.PermissionSet
	generations map[int64]uint64
	epoch       uint64

	group singleflight.Group
}

// CacheOption customises a PermissionCache.
type CacheOption func(*PermissionCache)

// WithCacheLogger sets the logger used for publish failures.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *PermissionCache) { c.logger = logger }
}

// WithCacheObserver reports hits and misses.
func WithCacheObserver(observer CacheObserver) CacheOption {
	return func(c *PermissionCache) { c.observer = observer }
}

// WithPublisher broadcasts invalidations to other instances.
func WithPublisher(publisher InvalidationPublisher) CacheOption {
	return func(c *PermissionCache) { c.publisher = publisher }
}

// NewPermissionCache constructs an empty cache backed by loader.
func NewPermissionCache(loader RoleViewLoader, opts ...CacheOption) *PermissionCache {
	c := &PermissionCache{
		loader:      loader,
		entries:     make(map[int64]shared.PermissionSet),
		generations: make(map[int64]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the permissions of roleID, loading them from the store on a miss.
// Concurrent misses for the same role share one store query. Load errors are
// returned as-is and nothing is cached.
func (c *PermissionCache) Get(ctx context.Context, roleID int64) (shared.PermissionSet, error) {
	if c == nil || c.loader == nil {
		return shared.PermissionSet{}, errors.New("rbac: permission cache not configured")
	}
	c.mu.Lock()
	if set, ok := c.entries[roleID]; ok {
		c.mu.Unlock()
		c.observe(true)
		return set, nil
	}
	gen, epoch := c.generations[roleID], c.epoch
	c.mu.Unlock()
	c.observe(false)

	key := fmt.Sprintf("%d:%d:%d", roleID, epoch, gen)
	resultCh := c.group.DoChan(key, func() (any, error) {
		codes, err := c.loader.RoleViewCodes(context.WithoutCancel(ctx), roleID)
		if err != nil {
			return nil, fmt.Errorf("rbac: load permissions for role %d: %w", roleID, err)
		}
		set := shared.NewPermissionSet(codes...)
		c.mu.Lock()
		if c.epoch == epoch && c.generations[roleID] == gen {
			c.entries[roleID] = set
		}
		c.mu.Unlock()
		return set, nil
	})
	select {
	case <-ctx.Done():
		return shared.PermissionSet{}, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return shared.PermissionSet{}, res.Err
		}
		return res.Val.(shared.PermissionSet), nil
	}
}

// Invalidate drops the entry for roleID. Must be called after any change to a
// role's views or its deletion has committed.
func (c *PermissionCache) Invalidate(ctx context.Context, roleID int64) {
	c.InvalidateMany(ctx, []int64{roleID})
}

// InvalidateMany drops the entries for every id in roleIDs.
func (c *PermissionCache) InvalidateMany(ctx context.Context, roleIDs []int64) {
	if c == nil || len(roleIDs) == 0 {
		return
	}
	c.DropLocal(roleIDs)
	c.publish(ctx, roleIDs, false)
}

// Clear drops every entry.
func (c *PermissionCache) Clear(ctx context.Context) {
	if c == nil {
		return
	}
	c.ClearLocal()
	c.publish(ctx, nil, true)
}

// DropLocal invalidates entries on this instance only.
func (c *PermissionCache) DropLocal(roleIDs []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range roleIDs {
		delete(c.entries, id)
		c.generations[id]++
	}
}

// ClearLocal empties this instance only.
func (c *PermissionCache) ClearLocal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int64]shared.PermissionSet)
	c.epoch++
}

// Len returns the number of cached roles.
func (c *PermissionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *PermissionCache) publish(ctx context.Context, roleIDs []int64, all bool) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishInvalidation(ctx, roleIDs, all); err != nil && c.logger != nil {
		c.logger.Warn("rbac publish invalidation", slog.Any("role_ids", roleIDs), slog.Bool("all", all), slog.Any("error", err))
	}
}

func (c *PermissionCache) observe(hit bool) {
	if c.observer != nil {
		c.observer.PermissionCacheLookup(hit)
	}
}
