package index

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

// Cache owns the process-wide snapshot. The first successful EnsureLoaded wins;
// a failed load is not remembered, so the next call retries.
type Cache struct {
	dir    string
	build  Builder
	logger *zap.Logger

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewCache creates a cache reading artifacts from dir.
func NewCache(dir string, build Builder, logger *zap.Logger) *Cache {
	return &Cache{dir: dir, build: build, logger: logger}
}

// Dir returns the artifact directory.
func (c *Cache) Dir() string { return c.dir }

// Current returns the loaded snapshot or nil.
func (c *Cache) Current() *Snapshot { return c.current.Load() }

// EnsureLoaded returns the loaded snapshot, loading it on first use.
func (c *Cache) EnsureLoaded(ctx context.Context) (*Snapshot, error) {
	if s := c.current.Load(); s != nil {
		return s, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.current.Load(); s != nil {
		return s, nil
	}
	return c.loadLocked(ctx)
}

// Reload loads a fresh snapshot and swaps it in. On failure the previous snapshot stays active.
func (c *Cache) Reload(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

func (c *Cache) loadLocked(ctx context.Context) (*Snapshot, error) {
	s, err := Load(ctx, c.dir, c.build, c.logger)
	if err != nil {
		return nil, err
	}
	c.current.Store(s)
	metrics.IndexVectors.Set(float64(s.Len()))
	c.logger.Info("index snapshot loaded",
		zap.Int("meta", s.Len()),
		zap.Int("vectors", s.Index.Len()),
		zap.Int("dim", s.Index.Dim()),
		zap.String("fingerprint", s.Fingerprint[:12]),
	)
	return s, nil
}
