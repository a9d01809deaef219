package textsplit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRespectsChunkSize(t *testing.T) {
	t.Parallel()
	s := NewSplitter(10, 2)
	text := strings.Repeat("alpha beta gamma delta epsilon. ", 20)

	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, CountTokens(c), 10, "chunk %d too large", i)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	t.Parallel()
	s := NewSplitter(500, 50)
	chunks := s.Split("Hi there.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hi there.", chunks[0])
}

func TestSplitEmpty(t *testing.T) {
	t.Parallel()
	s := NewSplitter(500, 50)
	assert.Nil(t, s.Split("   \n\t "))
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	t.Parallel()
	s := NewSplitter(8, 0)
	text := "one two three four.\n\nfive six seven eight."
	chunks := s.Split(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, "one two three four.", chunks[0])
	assert.Equal(t, "five six seven eight.", chunks[1])
}

func TestOverlapClamped(t *testing.T) {
	t.Parallel()
	s := NewSplitter(5, 50)
	assert.Equal(t, 4, s.ChunkOverlap)

	s = NewSplitter(5, -1)
	assert.Equal(t, 0, s.ChunkOverlap)
}

func TestCountTokens(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, CountTokens(""))
	assert.Equal(t, 1, CountTokens("word"))
	assert.Equal(t, 3, CountTokens("Hi there."))
	assert.Equal(t, 2, CountTokens("a b"))
}

func TestAtomSentences(t *testing.T) {
	t.Parallel()
	s := NewSplitter(50, 5)
	atoms := s.AtomSentences("First sentence. Second one! Third? Done")
	require.Len(t, atoms, 4)
	assert.Equal(t, "First sentence.", atoms[0])
	assert.Equal(t, "Third?", atoms[2])
}

func TestGroupSemanticBreakpoints(t *testing.T) {
	t.Parallel()
	atoms := []string{"cats purr", "cats meow", "stocks fell", "markets closed"}
	vectors := [][]float32{
		{1, 0},
		{0.98, 0.05},
		{0, 1},
		{0.05, 0.99},
	}
	groups := GroupSemantic(atoms, vectors, 90)
	require.Len(t, groups, 2)
	assert.Equal(t, "cats purr cats meow", groups[0])
	assert.Equal(t, "stocks fell markets closed", groups[1])
}

func TestRefineOversized(t *testing.T) {
	t.Parallel()
	s := NewSplitter(4, 0)
	big := strings.Repeat("word ", 20)
	groups := s.RefineOversized([]string{"small group", big})
	assert.Equal(t, "small group", groups[0])
	assert.Greater(t, len(groups), 2)
	for _, g := range groups[1:] {
		assert.LessOrEqual(t, CountTokens(g), 4)
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{1, 2}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}))
}
