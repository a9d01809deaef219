package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseParams() QueryParams {
	return QueryParams{
		QueryText:       "purring cats",
		Vector:          []float32{0.1, 0.2},
		Limit:           5,
		UseHybrid:       true,
		MinScore:        25,
		VectorThreshold: 0.65,
		ReturnChunks:    true,
		SortBy:          SortRelevancy,
	}
}

// walk the built query as generic JSON so assertions match the wire shape
func asJSON(t *testing.T, q map[string]any) map[string]any {
	t.Helper()
	data, err := json.Marshal(q)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestBuildQueryRelevancy(t *testing.T) {
	t.Parallel()
	q := asJSON(t, BuildQuery(baseParams()))

	assert.EqualValues(t, 5, q["size"])
	assert.EqualValues(t, 25, q["min_score"])

	boolQ := q["query"].(map[string]any)["bool"].(map[string]any)
	filters := boolQ["filter"].([]any)
	require.Len(t, filters, 1)
	statusTerm := filters[0].(map[string]any)["term"].(map[string]any)
	assert.Equal(t, "ready", statusTerm["status"])

	should := boolQ["should"].([]any)
	require.GreaterOrEqual(t, len(should), 3)

	// title phrase bonus comes first
	cs := should[0].(map[string]any)["constant_score"].(map[string]any)
	assert.EqualValues(t, 50, cs["boost"])
	assert.Equal(t, "title_proximity_bonus", cs["_name"])

	mm := should[1].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "and", mm["operator"])
	assert.Equal(t, "most_fields", mm["type"])
}

func TestBuildQueryNestedKNN(t *testing.T) {
	t.Parallel()
	q := asJSON(t, BuildQuery(baseParams()))

	boolQ := q["query"].(map[string]any)["bool"].(map[string]any)
	var nested map[string]any
	for _, clause := range boolQ["should"].([]any) {
		if n, ok := clause.(map[string]any)["nested"]; ok {
			nested = n.(map[string]any)
		}
	}
	require.NotNil(t, nested, "nested chunk clause missing")
	assert.Equal(t, "chunks", nested["path"])
	assert.Equal(t, "max", nested["score_mode"])

	innerHits := nested["inner_hits"].(map[string]any)
	assert.EqualValues(t, 1, innerHits["size"])

	chunkShould := nested["query"].(map[string]any)["bool"].(map[string]any)["should"].([]any)
	require.Len(t, chunkShould, 2)
	knn := chunkShould[1].(map[string]any)["knn"].(map[string]any)
	assert.Equal(t, "chunks.vector", knn["field"])
	assert.EqualValues(t, 100, knn["num_candidates"])
	assert.EqualValues(t, 0.65, knn["similarity"])
	assert.EqualValues(t, 25, knn["boost"])
}

func TestBuildQueryHybridOffDropsKNN(t *testing.T) {
	t.Parallel()
	p := baseParams()
	p.UseHybrid = false
	q := asJSON(t, BuildQuery(p))

	data, _ := json.Marshal(q)
	assert.NotContains(t, string(data), "knn")
}

func TestBuildQueryRecencyIgnoresMinScore(t *testing.T) {
	t.Parallel()
	p := baseParams()
	p.SortBy = SortRecency
	q := asJSON(t, BuildQuery(p))

	_, hasMinScore := q["min_score"]
	assert.False(t, hasMinScore)

	sorts := q["sort"].([]any)
	require.Len(t, sorts, 1)
	pub := sorts[0].(map[string]any)["published_at"].(map[string]any)
	assert.Equal(t, "desc", pub["order"])
	assert.Equal(t, "_last", pub["missing"])
}

func TestBuildQueryBalancedFunctionScore(t *testing.T) {
	t.Parallel()
	p := baseParams()
	p.SortBy = SortBalanced
	q := asJSON(t, BuildQuery(p))

	fs := q["query"].(map[string]any)["function_score"].(map[string]any)
	assert.Equal(t, "sum", fs["score_mode"])
	assert.Equal(t, "sum", fs["boost_mode"])

	fns := fs["functions"].([]any)
	require.Len(t, fns, 1)
	fn := fns[0].(map[string]any)
	assert.EqualValues(t, 15, fn["weight"])
	decay := fn["exp"].(map[string]any)["published_at"].(map[string]any)
	assert.Equal(t, "now", decay["origin"])
	assert.Equal(t, "7d", decay["scale"])
	assert.EqualValues(t, 0.5, decay["decay"])
}

func TestBuildQueryFiltersAliased(t *testing.T) {
	t.Parallel()
	p := baseParams()
	p.Filters = map[string]any{"author": "jane", "duration": 120, "custom": "x", "source_app": "blog"}
	q := asJSON(t, BuildQuery(p))

	boolQ := q["query"].(map[string]any)["bool"].(map[string]any)
	filters := boolQ["filter"].([]any)
	require.Len(t, filters, 5)

	fields := map[string]bool{}
	for _, f := range filters {
		for k := range f.(map[string]any)["term"].(map[string]any) {
			fields[k] = true
		}
	}
	assert.True(t, fields["blog.author"])
	assert.True(t, fields["video.duration"])
	assert.True(t, fields["metadata.custom"])
	assert.True(t, fields["source_app"])
	assert.True(t, fields["status"])
}

func TestBuildQueryEntityAndLanguageBoosts(t *testing.T) {
	t.Parallel()
	p := baseParams()
	p.Entities = []string{"Alice"}
	p.QueryLanguage = "en"
	q := asJSON(t, BuildQuery(p))

	data, _ := json.Marshal(q)
	assert.Contains(t, string(data), `"entity_match"`)
	assert.Contains(t, string(data), `"language"`)
}

func TestMapFilterField(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "status", MapFilterField("status"))
	assert.Equal(t, "video.duration", MapFilterField("duration"))
	assert.Equal(t, "blog.tags", MapFilterField("tags"))
	assert.Equal(t, "metadata.anything", MapFilterField("anything"))
}

func TestMappingShape(t *testing.T) {
	t.Parallel()
	m := Mapping(768)
	assert.Equal(t, "strict", m["dynamic"])

	props := m["properties"].(map[string]any)
	chunks := props["chunks"].(map[string]any)
	assert.Equal(t, "nested", chunks["type"])

	vector := chunks["properties"].(map[string]any)["vector"].(map[string]any)
	assert.Equal(t, 768, vector["dims"])
	assert.Equal(t, "cosine", vector["similarity"])
	assert.Equal(t, true, vector["index"])

	assert.Equal(t, "flattened", props["metadata"].(map[string]any)["type"])
	assert.Equal(t, "date", props["published_at"].(map[string]any)["type"])
}
