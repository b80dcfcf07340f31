// Package storefront is the public Go entry point to giftlab. An Engine wires
// the database, search index, recommender, text generator and planner from a
// single configuration.
package storefront

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cupid-chocolate/giftlab/internal/cache"
	"github.com/cupid-chocolate/giftlab/internal/config"
	"github.com/cupid-chocolate/giftlab/internal/generation"
	"github.com/cupid-chocolate/giftlab/internal/match"
	"github.com/cupid-chocolate/giftlab/internal/observability"
	"github.com/cupid-chocolate/giftlab/internal/planner"
	"github.com/cupid-chocolate/giftlab/internal/recommend"
	"github.com/cupid-chocolate/giftlab/internal/search"
	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// Default listing limits.
const (
	DefaultListLimit = 50
	LetterEvents     = 3
)

// Engine is the storefront facade.
type Engine struct {
	cfg    *config.Config
	db     *sql.DB
	ownsDB bool
	cache  cache.Client
	logger *observability.Logger

	customers *storage.CustomerRepository
	products  *storage.ProductRepository
	gifts     *storage.GiftRepository
	sales     *storage.SalesRepository
	logistics *storage.LogisticsRepository
	analytics *storage.AnalyticsRepository

	search      *search.Service
	watcher     *search.Watcher
	recommender *recommend.Service
	generator   *generation.Generator
	planner     *planner.Planner
	matcher     *match.Service
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	db     *sql.DB
	cache  cache.Client
	logger *observability.Logger
}

// WithDB uses an already opened database instead of opening the configured
// one. The caller keeps ownership.
func WithDB(db *sql.DB) Option {
	return func(o *options) { o.db = db }
}

// WithCache replaces the configured response cache.
func WithCache(c cache.Client) Option {
	return func(o *options) { o.cache = c }
}

// WithLogger sets the engine logger.
func WithLogger(logger *observability.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New builds an Engine from cfg. The schema is created when missing.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = observability.NopLogger()
	}

	e := &Engine{cfg: cfg, db: o.db, cache: o.cache, logger: o.logger}
	if e.db == nil {
		db, err := storage.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		e.db, e.ownsDB = db, true
	}
	if err := storage.Migrate(ctx, e.db); err != nil {
		e.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if e.cache == nil && cfg.Generation.CacheResponses {
		c, err := cache.New(cfg.Cache)
		if err != nil {
			// Generation still works uncached.
			e.logger.Warn().Err(err).Str("driver", cfg.Cache.Driver).Msg("Response cache unavailable")
		} else {
			e.cache = c
		}
	}

	e.customers = storage.NewCustomerRepository(e.db)
	e.products = storage.NewProductRepository(e.db)
	e.gifts = storage.NewGiftRepository(e.db)
	e.sales = storage.NewSalesRepository(e.db)
	e.logistics = storage.NewLogisticsRepository(e.db)
	e.analytics = storage.NewAnalyticsRepository(e.db)

	e.generator = generation.NewGenerator(generation.NewClient(generation.ClientConfig{
		Provider: generation.NewProvider(cfg.Generation),
		Timeout:  cfg.Generation.Timeout,
		Cache:    e.cache,
		CacheTTL: cfg.Cache.TTL,
		Logger:   e.logger,
	}), e.logger)

	e.search = search.NewService(e.products, e.gifts, cfg.Search.DefaultLimit, e.logger,
		search.WithRefreshInterval(cfg.Search.RefreshInterval))

	chain := recommend.NewTierChain(e.gifts, e.customers, e.logger)
	scorer := recommend.NewScorer(recommend.ScorerConfigFrom(cfg.Recommend.Weights))
	e.recommender = recommend.NewService(chain, scorer, e.generator, cfg.Recommend.DefaultLimit, e.logger)

	e.planner = planner.New(e.gifts, e.logistics, e.products, e.generator, e.logger)
	e.matcher = match.NewService(storage.NewMatchRepository(e.db), e.logger)

	if cfg.Search.WatchDatabase && e.ownsDB && cfg.Database.Driver == "sqlite" && cfg.Database.SQLite.Path != ":memory:" {
		w, err := search.NewWatcher(cfg.Database.SQLite.Path, e.search, e.logger)
		if err != nil {
			e.logger.Warn().Err(err).Msg("Database watcher disabled")
		} else {
			w.Start(context.Background())
			e.watcher = w
		}
	}

	e.logger.Info().
		Str("database", cfg.Database.Driver).
		Str("generation", string(generation.NewProvider(cfg.Generation).Source())).
		Bool("watching", e.watcher != nil).
		Msg("Storefront engine ready")
	return e, nil
}

// Close stops the watcher and releases the cache and owned database.
func (e *Engine) Close() error {
	var errs []error
	if e.watcher != nil {
		errs = append(errs, e.watcher.Stop())
	}
	if e.cache != nil {
		errs = append(errs, e.cache.Close())
	}
	if e.ownsDB && e.db != nil {
		errs = append(errs, e.db.Close())
	}
	return errors.Join(errs...)
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Ping checks that the database is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// RemoteGeneration reports whether text generation calls a remote model.
func (e *Engine) RemoteGeneration() bool {
	return e.generator.RemoteEnabled()
}

// NewLoader returns a CSV loader for the configured datasets.
func (e *Engine) NewLoader(opts ...storage.LoaderOption) *storage.Loader {
	return storage.NewLoader(e.db, e.cfg.Loader.DataDir, e.cfg.Loader.Datasets, opts...)
}

// Load imports the configured datasets and invalidates the search index.
func (e *Engine) Load(ctx context.Context, opts ...storage.LoaderOption) ([]storage.LoadResult, error) {
	results, err := e.NewLoader(opts...).LoadAll(ctx)
	e.InvalidateIndex()
	return results, err
}

// InvalidateIndex marks the search index stale; the next search rebuilds it.
func (e *Engine) InvalidateIndex() {
	e.search.Invalidate()
}

func orDefault(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
