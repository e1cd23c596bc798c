package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/config"
	dbRedis "github.com/kailas-cloud/catalogsearch/internal/db/redis"
	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/index"
	logpkg "github.com/kailas-cloud/catalogsearch/internal/logger"
	"github.com/kailas-cloud/catalogsearch/internal/metrics"
	categoryrepo "github.com/kailas-cloud/catalogsearch/internal/repository/category"
	"github.com/kailas-cloud/catalogsearch/internal/repository/embcache"
	"github.com/kailas-cloud/catalogsearch/internal/repository/vectors"
	langchainEmb "github.com/kailas-cloud/catalogsearch/internal/transport/langchain"
	openaiTransport "github.com/kailas-cloud/catalogsearch/internal/transport/openai"
	categoryuc "github.com/kailas-cloud/catalogsearch/internal/usecase/category"
	embeddinguc "github.com/kailas-cloud/catalogsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/catalogsearch/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/catalogsearch/internal/usecase/recommend"
	searchuc "github.com/kailas-cloud/catalogsearch/internal/usecase/search"
)

// app is the composition root shared by every command.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger

	store   *dbRedis.Store // nil when database.addrs is empty
	pg      *pgxpool.Pool  // nil when postgres.dsn is empty
	workers *ants.Pool     // nil for a sequential flat scan
	vectors *vectors.Repo  // nil unless the valkey backend is active

	provider   domain.Embedder
	embedder   domain.Embedder
	snapshots  *index.Cache
	categories *categoryuc.Cache
	search     *searchuc.Service
	chat       *recommenduc.Service
	health     *healthuc.Service
	backend    string
}

// newApp loads configuration and builds every service. Nothing is loaded from
// the index directory here; snapshots load on first use.
func newApp(ctx context.Context, env string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	a := &app{env: env, cfg: cfg, logger: logger}
	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildEmbedder(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildIndex(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildCategories(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.buildServices()
	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	if !a.cfg.Database.Enabled() {
		return nil
	}
	switch a.cfg.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("unknown database driver %q", a.cfg.Database.Driver)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    a.cfg.Database.Addrs,
		Password: a.cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("create database store: %w", err)
	}
	a.store = store

	timeout := time.Duration(a.cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	a.logger.Info("Connected to database",
		zap.String("driver", a.cfg.Database.Driver),
		zap.Strings("addrs", a.cfg.Database.Addrs),
	)
	return nil
}

// buildEmbedder assembles the decorator chain:
// provider -> Instrumented -> Cached -> Instruction -> Normalizing.
func (a *app) buildEmbedder() error {
	ec := a.cfg.Embedding

	switch ec.Provider {
	case config.ProviderLangchain:
		p, err := langchainEmb.NewEmbedder(&langchainEmb.Config{
			BaseURL: ec.BaseURL,
			APIKey:  ec.APIKey,
			Model:   ec.Model,
			Logger:  a.logger,
		})
		if err != nil {
			return fmt.Errorf("create langchain embedder: %w", err)
		}
		a.provider = p
	default:
		a.provider = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			Provider:   ec.Provider,
			Logger:     a.logger,
		})
	}

	var e domain.Embedder = embeddinguc.NewInstrumentedEmbedder(
		a.provider, ec.Provider, ec.Model, embeddinguc.Options{}, a.logger,
	)

	if a.store != nil && ec.Cache.Enabled {
		e = embcache.New(e, a.store, embcache.Options{
			KeyPrefix: a.cfg.Index.KeyPrefix,
			TTL:       time.Duration(ec.Cache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, a.logger)
	}

	// Instruction goes outside the cache: cache keys are built from the prefixed text
	if ec.QueryInstruction != "" {
		e = domain.NewInstructionEmbedder(e, ec.QueryInstruction)
	}

	a.embedder = domain.NewNormalizingEmbedder(e, ec.Dimensions)
	a.logger.Info("Embedder created",
		zap.String("provider", ec.Provider),
		zap.String("model", ec.Model),
		zap.Int("dimensions", ec.Dimensions),
		zap.Bool("cache", a.store != nil && ec.Cache.Enabled),
	)
	return nil
}

func (a *app) buildIndex(ctx context.Context) error {
	ic := a.cfg.Index

	backend := ic.Backend
	if backend == config.BackendAuto {
		backend = config.BackendFlat
		if a.store != nil && a.store.SupportsVectorSearch(ctx) {
			backend = config.BackendValkey
		}
	}
	a.backend = backend

	var build index.Builder
	switch backend {
	case config.BackendValkey:
		if a.store == nil {
			return errors.New(`index backend "valkey" requires database.addrs`)
		}
		a.vectors = vectors.New(a.store, ic.KeyPrefix, a.logger)
		build = a.vectors.Builder()
	default:
		var opts []index.FlatOption
		if ic.ScanWorkers > 1 {
			pool, err := ants.NewPool(ic.ScanWorkers)
			if err != nil {
				return fmt.Errorf("create scan pool: %w", err)
			}
			a.workers = pool
			opts = append(opts, index.WithWorkerPool(pool))
		}
		build = index.FlatBuilder(opts...)
	}

	// Every load, not just the startup one, must match the embedder's width
	a.snapshots = index.NewCache(ic.Dir, index.WithDimCheck(build, a.cfg.Embedding.Dimensions), a.logger)
	a.logger.Info("Index backend selected",
		zap.String("backend", backend),
		zap.String("dir", ic.Dir),
		zap.Int("scan_workers", ic.ScanWorkers),
	)
	return nil
}

func (a *app) buildCategories(ctx context.Context) error {
	var source categoryuc.Source
	if dsn := a.cfg.Postgres.DSN; dsn != "" {
		pool, err := categoryrepo.Connect(ctx, dsn)
		if err != nil {
			return fmt.Errorf("open category database: %w", err)
		}
		a.pg = pool
		source = categoryrepo.NewPG(pool)
	} else {
		path := a.cfg.Categories.File
		if path == "" {
			path = filepath.Join(a.cfg.Index.Dir, "categories.json")
		}
		source = categoryrepo.NewFile(path)
	}
	a.categories = categoryuc.NewCache(source, a.logger)
	return nil
}

func (a *app) buildServices() {
	a.search = searchuc.New(a.snapshots, a.embedder, searchuc.Options{
		FrontendBaseURL: a.cfg.URLs.FrontendBaseURL,
		BackendBaseURL:  a.cfg.URLs.BackendBaseURL,
	}, a.logger)

	var responder recommenduc.Responder
	if a.cfg.LLM.Mode == config.LLMModeExternal {
		responder = openaiTransport.NewResponder(&openaiTransport.ResponderConfig{
			APIKey:  a.cfg.LLM.APIKey,
			BaseURL: a.cfg.LLM.BaseURL,
			Model:   a.cfg.LLM.Model,
			Logger:  a.logger,
		})
	}

	a.chat = recommenduc.New(
		a.search,
		categoryuc.NewMatcher(a.categories, a.logger),
		responder,
		recommenduc.Options{
			RetrievalTopK: a.cfg.Search.RetrievalTopK,
			MaxProducts:   a.cfg.Search.MaxProducts,
		},
		a.logger,
	)

	// Nil interfaces, not typed nil pointers: health skips nil deps
	deps := healthuc.Deps{Index: a.snapshots, Categories: a.categories}
	if a.store != nil {
		deps.DB = a.store
	}
	if hc, ok := a.provider.(domain.HealthChecker); ok {
		deps.Embedding = hc
	}
	a.health = healthuc.New(deps)
}

// checkSnapshot loads the snapshot once at startup. A missing artifact pair is
// tolerated (queries answer empty until a reload); a width that disagrees with
// the configured embedding dimensions is not.
func (a *app) checkSnapshot(ctx context.Context) error {
	_, err := a.snapshots.EnsureLoaded(ctx)
	if errors.Is(err, domain.ErrIndexUnavailable) {
		a.logger.Warn("index snapshot not found, serving empty results", zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load index %s: %w", a.cfg.Index.Dir, err)
	}
	return nil
}

// reload swaps in fresh index and category data.
func (a *app) reload(ctx context.Context) {
	if snap, err := a.snapshots.Reload(ctx); err != nil {
		a.logger.Error("index reload failed", zap.Error(err))
	} else {
		a.logger.Info("index reloaded", zap.Int("size", snap.Len()))
	}
	if _, err := a.categories.Reload(ctx); err != nil {
		a.logger.Error("category reload failed", zap.Error(err))
	}
}

// Close releases pools and connections.
func (a *app) Close() {
	if a.workers != nil {
		a.workers.Release()
	}
	if a.pg != nil {
		a.pg.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
