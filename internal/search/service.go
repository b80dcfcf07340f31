package search

import (
	"context"
	"fmt"

	"github.com/cupid-chocolate/giftlab/internal/catalog"
	"github.com/cupid-chocolate/giftlab/internal/observability"
	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// ProductSource lists the product master.
type ProductSource interface {
	ListAll(ctx context.Context) ([]storage.Product, error)
}

// SignalSource lists the behavioral rows joined into the corpus.
type SignalSource interface {
	BehaviorSignals(ctx context.Context) ([]storage.BehaviorSignal, error)
}

// Service answers product search queries from a cached index.
type Service struct {
	products     ProductSource
	signals      SignalSource
	cache        *IndexCache
	defaultLimit int
	logger       *observability.Logger
}

// NewService wires a search service over the repositories. The index is
// built lazily on the first query.
func NewService(products ProductSource, signals SignalSource, defaultLimit int, logger *observability.Logger, opts ...CacheOption) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}

	s := &Service{
		products:     products,
		signals:      signals,
		defaultLimit: defaultLimit,
		logger:       logger.WithComponent("search"),
	}
	opts = append([]CacheOption{WithLogger(s.logger)}, opts...)
	s.cache = NewIndexCache(s.buildIndex, opts...)
	return s
}

// Search returns the products most similar to query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}

	idx, err := s.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	hits := idx.Search(query, limit)
	s.logger.WithContext(ctx).Debug().
		Str("query", query).
		Int("hits", len(hits)).
		Msg("Product search")
	return hits, nil
}

// Invalidate marks the index stale; the next query rebuilds it.
func (s *Service) Invalidate() {
	s.cache.Invalidate()
}

// Cache exposes the index cache, for watchers and diagnostics.
func (s *Service) Cache() *IndexCache {
	return s.cache
}

func (s *Service) buildIndex(ctx context.Context) (*Index, error) {
	products, err := s.products.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	signals, err := s.signals.BehaviorSignals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list behavior signals: %w", err)
	}
	return Build(catalog.BuildCorpus(products, signals)), nil
}
