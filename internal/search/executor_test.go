package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcore/internal/intelligence"
	"contentcore/internal/observability"
)

type fakeGateway struct {
	analysis   intelligence.QueryAnalysis
	embedCalls int
	rerankErr  error
	rerank     []intelligence.RerankResult
}

func (f *fakeGateway) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeGateway) AnalyzeQuery(context.Context, string) intelligence.QueryAnalysis {
	return f.analysis
}

func (f *fakeGateway) Rerank(_ context.Context, _ string, docs []intelligence.RerankDoc) (intelligence.RerankResponse, error) {
	if f.rerankErr != nil {
		return intelligence.RerankResponse{}, f.rerankErr
	}
	results := f.rerank
	if results == nil {
		for _, d := range docs {
			results = append(results, intelligence.RerankResult{ID: d.ID, Score: 0.5})
		}
	}
	return intelligence.RerankResponse{Results: results}, nil
}

type fakeRetriever struct {
	hits       []Hit
	lastParams QueryParams
}

func (f *fakeRetriever) Search(_ context.Context, _ string, p QueryParams) ([]Hit, error) {
	f.lastParams = p
	n := p.Limit
	if n > len(f.hits) {
		n = len(f.hits)
	}
	return f.hits[:n], nil
}

func makeHits(n int) []Hit {
	hits := make([]Hit, n)
	for i := range hits {
		hits[i] = Hit{
			ID:    fmt.Sprintf("doc-%d", i),
			Score: float64(100 - i),
			Source: Source{
				EntityID: fmt.Sprintf("doc-%d", i),
				Title:    fmt.Sprintf("title %d", i),
				Summary:  fmt.Sprintf("summary %d", i),
			},
		}
	}
	return hits
}

func newTestExecutor(store Retriever, ai Gateway) *Executor {
	return NewExecutor(store, ai, observability.NewMetrics())
}

func TestSearchNoRerankingTopLimit(t *testing.T) {
	t.Parallel()
	store := &fakeRetriever{hits: makeHits(30)}
	ex := newTestExecutor(store, &fakeGateway{})

	results, err := ex.Search(context.Background(), Request{Query: "q", Limit: 5, UseHybrid: true})
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "doc-0", results[0].EntityID)
	assert.Equal(t, 5, store.lastParams.Limit)
	assert.Nil(t, results[0].RerankScore)
}

func TestSearchRerankingPermutesRetrievedSet(t *testing.T) {
	t.Parallel()
	store := &fakeRetriever{hits: makeHits(30)}
	gw := &fakeGateway{rerank: []intelligence.RerankResult{
		{ID: "doc-7", Score: 0.99},
		{ID: "doc-2", Score: 0.98},
	}}
	ex := newTestExecutor(store, gw)

	results, err := ex.Search(context.Background(), Request{
		Query: "q", Limit: 5, UseHybrid: true, EnableReranking: true,
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	// retrieval widened to limit*3, floored at 20
	assert.Equal(t, 20, store.lastParams.Limit)
	// reranker winners float to the top and carry their scores
	assert.Equal(t, "doc-7", results[0].EntityID)
	require.NotNil(t, results[0].RerankScore)
	assert.InDelta(t, 0.99, *results[0].RerankScore, 1e-9)
	assert.Equal(t, "doc-2", results[1].EntityID)

	// every result came from the top limit*3 (15) of the retrieval order
	retrieved := map[string]bool{}
	for _, h := range makeHits(15) {
		retrieved[h.ID] = true
	}
	for _, r := range results {
		assert.True(t, retrieved[r.EntityID])
	}
}

func TestSearchRerankingMinimumRetrieval(t *testing.T) {
	t.Parallel()
	store := &fakeRetriever{hits: makeHits(30)}
	ex := newTestExecutor(store, &fakeGateway{})

	_, err := ex.Search(context.Background(), Request{Query: "q", Limit: 3, EnableReranking: true})
	require.NoError(t, err)
	assert.Equal(t, 20, store.lastParams.Limit)
}

func TestSearchRerankFailureDegrades(t *testing.T) {
	t.Parallel()
	store := &fakeRetriever{hits: makeHits(30)}
	gw := &fakeGateway{rerankErr: errors.New("boom")}
	ex := newTestExecutor(store, gw)

	results, err := ex.Search(context.Background(), Request{Query: "q", Limit: 5, EnableReranking: true})
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "doc-0", results[0].EntityID)
}

func TestSearchBreakerOpensAfterThreeFailures(t *testing.T) {
	t.Parallel()
	store := &fakeRetriever{hits: makeHits(30)}
	gw := &fakeGateway{rerankErr: errors.New("down")}
	ex := newTestExecutor(store, gw)

	req := Request{Query: "q", Limit: 5, EnableReranking: true}
	for i := 0; i < 3; i++ {
		_, err := ex.Search(context.Background(), req)
		require.NoError(t, err)
	}
	assert.False(t, ex.breaker.Allow())
}

func TestSearchTranslationAndExpansion(t *testing.T) {
	t.Parallel()
	store := &fakeRetriever{hits: makeHits(5)}
	gw := &fakeGateway{analysis: intelligence.QueryAnalysis{
		DetectedLanguage: "es",
		OriginalIntent:   "search",
		Entities:         []string{"gatos"},
		ExpandedTerms:    []string{"felines", "kittens"},
		TranslatedQuery:  "purring cats",
	}}
	ex := newTestExecutor(store, gw)

	_, err := ex.Search(context.Background(), Request{
		Query: "gatos ronroneando", Limit: 5, UseHybrid: true,
		EnableQueryAnalysis: true, EnableQueryExpansion: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "purring cats", store.lastParams.QueryText)
	assert.Equal(t, []string{"gatos"}, store.lastParams.Entities)
	assert.Equal(t, "es", store.lastParams.QueryLanguage)
}

func TestSearchNonsenseIntentSuppressesExpansion(t *testing.T) {
	t.Parallel()
	store := &fakeRetriever{hits: makeHits(5)}
	gw := &fakeGateway{analysis: intelligence.QueryAnalysis{
		DetectedLanguage: "en",
		OriginalIntent:   "nonsense",
		ExpandedTerms:    []string{"should", "not", "appear"},
	}}
	ex := newTestExecutor(store, gw)

	_, err := ex.Search(context.Background(), Request{
		Query: "asdf qwerty", Limit: 5, UseHybrid: true,
		EnableQueryAnalysis: true, EnableQueryExpansion: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "asdf qwerty", store.lastParams.QueryText)
}

func TestEmbedQueryCached(t *testing.T) {
	t.Parallel()
	store := &fakeRetriever{hits: makeHits(5)}
	gw := &fakeGateway{}
	ex := newTestExecutor(store, gw)

	req := Request{Query: "same query", Limit: 5, UseHybrid: true}
	_, err := ex.Search(context.Background(), req)
	require.NoError(t, err)
	_, err = ex.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.embedCalls)
}

func TestRerankBreakerProbe(t *testing.T) {
	t.Parallel()
	b := newRerankBreaker()
	now := time.Unix(0, 0)
	b.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		b.Failure()
	}
	assert.False(t, b.Allow())

	now = now.Add(probeInterval)
	assert.True(t, b.Allow(), "half-open probe after interval")
	assert.False(t, b.Allow(), "only one probe per interval")

	b.Success()
	assert.True(t, b.Allow())
}
