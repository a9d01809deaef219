package intelligence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSummaryArticleSchema(t *testing.T) {
	t.Parallel()
	raw := `{"title":"T","overview":"the overview","key_concepts":["a","b"],"entities":["X"],"language":"en"}`
	s := parseSummary(raw)
	assert.Equal(t, "the overview", s.Summary)
	assert.Equal(t, []string{"a", "b"}, s.KeyConcepts)
	assert.Equal(t, []string{"X"}, s.Entities)
	assert.Equal(t, "en", s.Language)
	assert.Empty(t, s.ParseError)
}

func TestParseSummaryVideoSchema(t *testing.T) {
	t.Parallel()
	raw := `{"topic":"t","summary":"narrative","key_moments":["m1","m2"]}`
	s := parseSummary(raw)
	assert.Equal(t, "narrative", s.Summary)
	assert.Equal(t, []string{"m1", "m2"}, s.KeyConcepts)
}

func TestParseSummaryFencedJSON(t *testing.T) {
	t.Parallel()
	raw := "```json\n{\"summary\":\"fenced\",\"main_topics\":[\"x\"]}\n```"
	s := parseSummary(raw)
	assert.Equal(t, "fenced", s.Summary)
	assert.Equal(t, []string{"x"}, s.KeyConcepts)
}

func TestParseSummaryDegradesOnGarbage(t *testing.T) {
	t.Parallel()
	raw := "this is not json at all"
	s := parseSummary(raw)
	assert.Equal(t, raw, s.Summary)
	assert.Equal(t, "json_parse_failed", s.ParseError)
}

func TestStripFences(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences(`{"a":1}`))
}

func TestSummarySystemPromptSelection(t *testing.T) {
	t.Parallel()
	require.Contains(t, summarySystemPrompt("video_transcript"), "key_moments")
	require.Contains(t, summarySystemPrompt("blog_post"), "key_concepts")
	require.Contains(t, summarySystemPrompt("anything-else"), "main_topics")
}
