// Package vectors mirrors the index snapshot into a Valkey/Redis FT index and
// serves exact KNN over it.
package vectors

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/db"
	dbRedis "github.com/kailas-cloud/catalogsearch/internal/db/redis"
	"github.com/kailas-cloud/catalogsearch/internal/index"
)

const (
	defaultBatchSize = 256
	deleteChunk      = 500
)

// store is the consumer interface for the vector mirror (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexDocCount(ctx context.Context, name string) (int, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo owns the FT index that mirrors the snapshot vectors.
type Repo struct {
	store     store
	prefix    string
	batchSize int
	logger    *zap.Logger
}

// New creates a vector mirror repository. keyPrefix namespaces every key (e.g. "catalogsearch:").
func New(s store, keyPrefix string, logger *zap.Logger) *Repo {
	return &Repo{
		store:     s,
		prefix:    keyPrefix,
		batchSize: defaultBatchSize,
		logger:    logger,
	}
}

// IndexName is the FT index name.
func (r *Repo) IndexName() string { return r.prefix + "vec:idx" }

func (r *Repo) docPrefix() string      { return r.prefix + "vec:" }
func (r *Repo) docKey(pos int) string  { return r.docPrefix() + strconv.Itoa(pos) }
func (r *Repo) fingerprintKey() string { return r.prefix + "vec_fingerprint" }

// Mirror publishes the artifact vectors into the store unless the stored
// fingerprint and document count already match. Returns true when it wrote.
func (r *Repo) Mirror(ctx context.Context, art *index.Artifacts) (bool, error) {
	if r.upToDate(ctx, art) {
		return false, nil
	}

	start := time.Now()
	m := art.Vectors

	if err := r.store.DropIndex(ctx, r.IndexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return false, fmt.Errorf("drop index: %w", err)
	}

	stale, err := r.store.Scan(ctx, r.docPrefix()+"*")
	if err != nil {
		return false, fmt.Errorf("scan old vectors: %w", err)
	}
	for i := 0; i < len(stale); i += deleteChunk {
		if err := r.store.Del(ctx, stale[i:min(i+deleteChunk, len(stale))]...); err != nil {
			return false, fmt.Errorf("delete old vectors: %w", err)
		}
	}

	def, err := db.NewIndex(r.IndexName()).
		Prefix(r.docPrefix()).
		Numeric("pos").
		VectorFlat("vector", m.Dim, db.DistanceIP, 0).
		Build()
	if err != nil {
		return false, fmt.Errorf("index definition: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return false, fmt.Errorf("create index: %w", err)
	}

	for lo := 0; lo < m.Rows; lo += r.batchSize {
		hi := min(lo+r.batchSize, m.Rows)
		items := make([]db.HashSetItem, 0, hi-lo)
		for pos := lo; pos < hi; pos++ {
			items = append(items, db.HashSetItem{
				Key: r.docKey(pos),
				Fields: map[string]string{
					"pos":    strconv.Itoa(pos),
					"vector": dbRedis.VectorToBytes(m.Row(pos)),
				},
			})
		}
		if err := r.store.HSetMulti(ctx, items); err != nil {
			return false, fmt.Errorf("write vectors [%d:%d]: %w", lo, hi, err)
		}
	}

	if err := r.store.Set(ctx, r.fingerprintKey(), []byte(art.Fingerprint)); err != nil {
		return false, fmt.Errorf("store fingerprint: %w", err)
	}

	r.logger.Info("vector index mirrored",
		zap.String("index", r.IndexName()),
		zap.Int("vectors", m.Rows),
		zap.Int("removed", len(stale)),
		zap.Duration("took", time.Since(start)),
	)
	return true, nil
}

func (r *Repo) upToDate(ctx context.Context, art *index.Artifacts) bool {
	stored, err := r.store.Get(ctx, r.fingerprintKey())
	if err != nil || string(stored) != art.Fingerprint {
		return false
	}
	n, err := r.store.IndexDocCount(ctx, r.IndexName())
	if err != nil {
		return false
	}
	return n == art.Vectors.Rows
}

// Builder mirrors each loaded snapshot and returns a store-backed Index over it.
func (r *Repo) Builder() index.Builder {
	return func(ctx context.Context, art *index.Artifacts) (index.Index, error) {
		if _, err := r.Mirror(ctx, art); err != nil {
			return nil, err
		}
		return &Index{repo: r, rows: art.Vectors.Rows, dim: art.Vectors.Dim}, nil
	}
}
