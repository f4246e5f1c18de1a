// Package search runs the scan, embed and rank pipeline.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kensaku/internal/cache"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/ranking"
	"github.com/hyperjump/kensaku/internal/scanner"
	"github.com/hyperjump/kensaku/pkg/searcherr"
	"github.com/hyperjump/kensaku/pkg/utils"
	"go.uber.org/zap"
)

// Engine ranks a corpus against a query. The embedder, optional cache and
// scanner are supplied by the caller and shared across searches.
type Engine struct {
	scanner   *scanner.Scanner
	embedder  embedding.Embedder
	cache     *cache.Cache
	threshold float64
	timeout   time.Duration
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache routes corpus embedding through c. A nil cache disables caching.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithThreshold sets the threshold used when a query does not carry one.
func WithThreshold(t float64) Option {
	return func(e *Engine) { e.threshold = t }
}

// WithEmbedTimeout bounds the embedding phase of each search. Zero means no limit.
func WithEmbedTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine.
func NewEngine(sc *scanner.Scanner, embedder embedding.Embedder, opts ...Option) *Engine {
	e := &Engine{
		scanner:   sc,
		embedder:  embedder,
		threshold: 0.5,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// Search loads the corpus named by query, embeds it, embeds the query and
// returns the items scoring strictly above the threshold, best first.
// Skipped files are reported in the response; embedding and cache failures
// abort the search.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := ProcessQuery(query); err != nil {
		return nil, err
	}
	threshold := query.ThresholdOr(e.threshold)

	resp := &models.SearchResponse{
		ID:      uuid.New().String(),
		Query:   query.Query,
		Results: []*models.SearchResult{},
	}

	corpus, err := e.loadCorpus(ctx, query, resp)
	if err != nil {
		return nil, err
	}
	resp.Scanned = len(corpus)
	if len(corpus) == 0 {
		resp.QueryTime = time.Since(start).Milliseconds()
		return resp, nil
	}

	queryVec, err := e.embedQuery(ctx, query.Query)
	if err != nil {
		return nil, err
	}

	ranked := ranking.Rank(queryVec, corpus, threshold)
	resp.Ranked = ranked
	resp.Results = models.NewSearchResults(ranked)
	resp.Total = len(ranked)
	resp.QueryTime = time.Since(start).Milliseconds()

	e.logger.Debug("search complete",
		zap.String("id", resp.ID),
		zap.Int("corpus", len(corpus)),
		zap.Int("results", resp.Total),
		zap.Float64("threshold", threshold),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

// loadCorpus returns an embedded corpus, either from the cache's persisted
// entries or by scanning query.Path and embedding what was found.
func (e *Engine) loadCorpus(ctx context.Context, query *models.SearchQuery, resp *models.SearchResponse) (models.Corpus, error) {
	if query.FromCache {
		if e.cache == nil {
			return nil, searcherr.New(searcherr.CodeCacheNotConfigured, "searching the cache requires a cache backend")
		}
		return e.cache.Corpus(ctx, e.embedder.Dimensions())
	}

	res, err := e.scanner.Scan(ctx, query.Path)
	if err != nil {
		return nil, err
	}
	resp.Skipped = res.Skipped
	if len(res.Corpus) == 0 {
		return nil, nil
	}
	return e.EmbedCorpus(ctx, res.Corpus)
}

// EmbedCorpus embeds every item's content in one batch, through the cache
// when configured, and returns a new corpus with vectors attached.
func (e *Engine) EmbedCorpus(ctx context.Context, corpus models.Corpus) (models.Corpus, error) {
	ctx, cancel := e.embedContext(ctx)
	defer cancel()

	texts := corpus.Texts()
	var vecs [][]float32
	var err error
	if e.cache != nil {
		var stats cache.Stats
		vecs, stats, err = e.cache.GetOrEmbed(ctx, texts, e.embedder)
		if err == nil {
			e.logger.Debug("corpus embedded through cache",
				zap.Int("items", len(texts)),
				zap.Int("hits", stats.Hits),
				zap.Int("embedded", stats.Embedded))
		}
	} else {
		vecs, err = embedding.Batch(ctx, e.embedder, texts)
	}
	if err != nil {
		return nil, e.timeoutError(ctx, err)
	}
	return AttachEmbeddings(corpus, vecs)
}

// embedQuery embeds the query directly. Queries are never cached so they do
// not show up as corpus entries when searching the cache.
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := e.embedContext(ctx)
	defer cancel()
	vec, err := embedding.EmbedOne(ctx, e.embedder, query)
	if err != nil {
		return nil, e.timeoutError(ctx, err)
	}
	return vec, nil
}

func (e *Engine) embedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) timeoutError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && e.timeout > 0 {
		return searcherr.New(searcherr.CodeSearchTimeout, "embedding timed out",
			searcherr.Field("timeout", e.timeout.String()),
			searcherr.Field("cause", err.Error()))
	}
	return err
}

// Dimensions returns the embedder's vector dimension.
func (e *Engine) Dimensions() int {
	return e.embedder.Dimensions()
}
