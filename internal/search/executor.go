package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"contentcore/internal/intelligence"
	"contentcore/internal/observability"
)

// Gateway is the slice of the intelligence client the executor needs.
type Gateway interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	AnalyzeQuery(ctx context.Context, query string) intelligence.QueryAnalysis
	Rerank(ctx context.Context, query string, docs []intelligence.RerankDoc) (intelligence.RerankResponse, error)
}

// Retriever runs the composite query against the document store.
type Retriever interface {
	Search(ctx context.Context, indexName string, p QueryParams) ([]Hit, error)
}

// Executor drives the search pipeline: optional query analysis and expansion,
// query embedding, hybrid retrieval, optional reranking, result shaping.
// Per-process state (rerank breaker, embedding cache) lives here rather than
// in package globals.
type Executor struct {
	store   Retriever
	ai      Gateway
	metrics *observability.Metrics
	breaker *rerankBreaker

	mu         sync.RWMutex
	embedCache map[string][]float32
}

// NewExecutor wires the executor to its collaborators.
func NewExecutor(store Retriever, ai Gateway, metrics *observability.Metrics) *Executor {
	return &Executor{
		store:      store,
		ai:         ai,
		metrics:    metrics,
		breaker:    newRerankBreaker(),
		embedCache: make(map[string][]float32),
	}
}

// Search executes one search request end to end.
func (e *Executor) Search(ctx context.Context, req Request) ([]Result, error) {
	req.ApplyDefaults()
	e.metrics.SearchRequests.WithLabelValues(req.SortBy).Inc()

	searchQuery := req.Query
	var entities []string
	queryLanguage := ""
	expandedQuery := ""

	if req.EnableQueryAnalysis {
		analysis := e.ai.AnalyzeQuery(ctx, req.Query)
		queryLanguage = analysis.DetectedLanguage
		entities = analysis.Entities

		if analysis.DetectedLanguage != "en" && analysis.TranslatedQuery != "" {
			searchQuery = analysis.TranslatedQuery
			log.Info().Str("original", req.Query).Str("translated", searchQuery).Msg("query translated")
		}
		// A nonsense intent suppresses expansion entirely.
		if req.EnableQueryExpansion && analysis.OriginalIntent != "nonsense" && len(analysis.ExpandedTerms) > 0 {
			expandedQuery = searchQuery + " " + strings.Join(analysis.ExpandedTerms, " ")
			log.Info().Str("expanded", expandedQuery).Msg("query expanded")
		}
	}

	embeddingText := searchQuery
	if expandedQuery != "" {
		embeddingText = expandedQuery
	}

	var vector []float32
	if req.UseHybrid {
		var err error
		vector, err = e.embedQuery(ctx, embeddingText)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}

	retrievalLimit := req.Limit
	if req.EnableReranking {
		retrievalLimit = req.Limit * 3
		if retrievalLimit < 20 {
			retrievalLimit = 20
		}
	}

	hits, err := e.store.Search(ctx, req.IndexName, QueryParams{
		QueryText:       searchQuery,
		Vector:          vector,
		Limit:           retrievalLimit,
		Filters:         req.Filters,
		UseHybrid:       req.UseHybrid,
		MinScore:        req.MinScore,
		VectorThreshold: req.VectorThreshold,
		ReturnChunks:    req.ReturnChunks,
		SortBy:          req.SortBy,
		Entities:        entities,
		QueryLanguage:   queryLanguage,
	})
	if err != nil {
		e.metrics.UpstreamFailures.WithLabelValues("elastic").Inc()
		return nil, err
	}

	rerankScores := map[string]float64(nil)
	if req.EnableReranking && len(hits) > 0 {
		hits, rerankScores = e.rerank(ctx, searchQuery, hits, req.Limit)
	}
	if len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		r := Result{
			Score:        h.Score,
			Title:        h.Source.Title,
			Summary:      h.Source.Summary,
			Metadata:     h.Source.Metadata,
			EntityID:     h.Source.EntityID,
			SourceApp:    h.Source.SourceApp,
			Entities:     h.Source.Entities,
			KeyConcepts:  h.Source.KeyConcepts,
			Language:     h.Source.Language,
			MatchedChunk: h.MatchedChunk,
		}
		if rerankScores != nil {
			if score, ok := rerankScores[h.ID]; ok {
				s := score
				r.RerankScore = &s
			}
		}
		if req.Debug {
			r.Debug = h.MatchedQueries
		}
		results = append(results, r)
	}
	return results, nil
}

// embedQuery embeds the final query text once, serving repeats from the
// per-process cache.
func (e *Executor) embedQuery(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	cached, ok := e.embedCache[text]
	e.mu.RUnlock()
	if ok {
		e.metrics.QueryCacheHits.Inc()
		return cached, nil
	}

	vectors, err := e.ai.Embed(ctx, []string{text})
	if err != nil {
		e.metrics.UpstreamFailures.WithLabelValues("intelligence").Inc()
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	e.mu.Lock()
	e.embedCache[text] = vectors[0]
	e.mu.Unlock()
	return vectors[0], nil
}

// rerank reorders hits by cross-encoder score, degrading to the retrieval
// order while the breaker is open or the call fails.
func (e *Executor) rerank(ctx context.Context, query string, hits []Hit, limit int) ([]Hit, map[string]float64) {
	if !e.breaker.Allow() {
		e.metrics.RerankerSkipped.Inc()
		log.Warn().Msg("reranker breaker open, returning store-ranked results")
		return hits, nil
	}

	docs := make([]intelligence.RerankDoc, 0, len(hits))
	for _, h := range hits {
		// Rerank input: matched chunk > summary > title.
		text := h.MatchedChunk
		if text == "" {
			text = h.Source.Summary
		}
		if text == "" {
			text = h.Source.Title
		}
		docs = append(docs, intelligence.RerankDoc{ID: h.ID, Text: text})
	}

	resp, err := e.ai.Rerank(ctx, query, docs)
	if err != nil {
		e.breaker.Failure()
		e.metrics.RerankerFailures.Inc()
		e.metrics.UpstreamFailures.WithLabelValues("intelligence").Inc()
		log.Error().Err(err).Msg("rerank failed, returning store-ranked results")
		return hits, nil
	}
	e.breaker.Success()

	scores := make(map[string]float64, len(resp.Results))
	for _, r := range resp.Results {
		scores[r.ID] = r.Score
	}
	sorted := append([]Hit(nil), hits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return scores[sorted[i].ID] > scores[sorted[j].ID]
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, scores
}
