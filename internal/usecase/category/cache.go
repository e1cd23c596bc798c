package category

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	domcat "github.com/kailas-cloud/catalogsearch/internal/domain/category"
)

// Cache owns the process-wide category tree. The tree is built on the first
// successful EnsureLoaded; failures are not remembered.
type Cache struct {
	source Source
	logger *zap.Logger

	mu   sync.Mutex
	tree atomic.Pointer[domcat.Tree]
}

// NewCache creates a cache over source.
func NewCache(source Source, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{source: source, logger: logger}
}

// Current returns the loaded tree or nil.
func (c *Cache) Current() *domcat.Tree { return c.tree.Load() }

// EnsureLoaded returns the tree, loading it once.
func (c *Cache) EnsureLoaded(ctx context.Context) (*domcat.Tree, error) {
	if t := c.tree.Load(); t != nil {
		return t, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.tree.Load(); t != nil {
		return t, nil
	}
	return c.loadLocked(ctx)
}

// Reload rereads the source and swaps the tree. The old tree stays on failure.
func (c *Cache) Reload(ctx context.Context) (*domcat.Tree, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

func (c *Cache) loadLocked(ctx context.Context) (*domcat.Tree, error) {
	nodes, err := c.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	t := domcat.NewTree(nodes)
	c.tree.Store(t)
	c.logger.Info("categories loaded", zap.Int("count", t.Len()))
	return t, nil
}
