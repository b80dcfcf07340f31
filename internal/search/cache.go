package search

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cupid-chocolate/giftlab/internal/observability"
)

// BuildFunc produces a fresh index from the backing store.
type BuildFunc func(ctx context.Context) (*Index, error)

// snapshot is a published index tagged with the generation it was built for.
type snapshot struct {
	index      *Index
	generation uint64
}

// IndexCache holds the current index and rebuilds it at most once per
// generation. Concurrent callers that find it stale share a single build.
type IndexCache struct {
	build           BuildFunc
	refreshInterval time.Duration
	logger          *observability.Logger

	current    atomic.Pointer[snapshot]
	generation atomic.Uint64
	group      singleflight.Group
	builds     atomic.Int64
}

// CacheOption configures an IndexCache.
type CacheOption func(*IndexCache)

// WithRefreshInterval expires a snapshot once it is older than d. Zero
// disables time based refresh.
func WithRefreshInterval(d time.Duration) CacheOption {
	return func(c *IndexCache) {
		c.refreshInterval = d
	}
}

// WithLogger sets the logger used for build events.
func WithLogger(logger *observability.Logger) CacheOption {
	return func(c *IndexCache) {
		c.logger = logger
	}
}

// NewIndexCache creates an empty cache; the first Get builds the index.
func NewIndexCache(build BuildFunc, opts ...CacheOption) *IndexCache {
	c := &IndexCache{
		build:  build,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the current index, building it first when there is none or
// the current one is stale. If a rebuild fails while an older snapshot
// exists, the older snapshot keeps serving.
func (c *IndexCache) Get(ctx context.Context) (*Index, error) {
	snap := c.current.Load()
	if c.fresh(snap) {
		return snap.index, nil
	}

	ch := c.group.DoChan("index", func() (interface{}, error) {
		if s := c.current.Load(); c.fresh(s) {
			return s.index, nil
		}
		return c.rebuild(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if snap != nil {
				c.logger.Warn().Err(res.Err).Msg("Index rebuild failed, serving previous snapshot")
				return snap.index, nil
			}
			return nil, res.Err
		}
		return res.Val.(*Index), nil
	}
}

// Invalidate ends the current generation. The next Get rebuilds; readers
// keep the old snapshot until then.
func (c *IndexCache) Invalidate() {
	c.generation.Add(1)
	c.logger.Debug().Msg("Product index invalidated")
}

// Builds reports how many times the index has been built.
func (c *IndexCache) Builds() int64 {
	return c.builds.Load()
}

func (c *IndexCache) fresh(s *snapshot) bool {
	if s == nil || s.generation != c.generation.Load() {
		return false
	}
	if c.refreshInterval > 0 && time.Since(s.index.BuiltAt()) >= c.refreshInterval {
		return false
	}
	return true
}

func (c *IndexCache) rebuild(ctx context.Context) (*Index, error) {
	gen := c.generation.Load()
	start := time.Now()

	idx, err := c.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build product index: %w", err)
	}

	c.current.Store(&snapshot{index: idx, generation: gen})
	c.builds.Add(1)

	c.logger.Debug().
		Int("products", idx.Len()).
		Int("vocabulary", idx.vectorizer.VocabularySize()).
		Dur("duration", time.Since(start)).
		Msg("Product index built")
	return idx, nil
}
