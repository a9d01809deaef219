// Package textsplit implements the chunking strategies used by the ingestion
// pipeline: a token-aware recursive splitter and semantic grouping over
// sentence-atom embeddings.
package textsplit

import (
	"regexp"
	"strings"
)

// sentenceEndRe / clauseEndRe split after terminal punctuation followed by
// whitespace, keeping the punctuation attached to the preceding piece.
var (
	sentenceEndRe = regexp.MustCompile(`([.!?]+)\s+`)
	clauseEndRe   = regexp.MustCompile(`([,;:])\s+`)
)

// Splitter breaks text into chunks of at most ChunkSize tokens with
// ChunkOverlap tokens carried between consecutive chunks.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewSplitter builds a splitter, clamping overlap below chunk size.
func NewSplitter(chunkSize, chunkOverlap int) Splitter {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return Splitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

type splitFunc func(string) []string

// Separator ladder: blank line, newline, sentence end, clause end, space,
// then individual runes as the last resort.
var separators = []splitFunc{
	splitAfterLiteral("\n\n"),
	splitAfterLiteral("\n"),
	splitAfterPattern(sentenceEndRe),
	splitAfterPattern(clauseEndRe),
	splitAfterLiteral(" "),
	splitRunes,
}

// Split breaks text into chunks. Chunks are trimmed and never empty.
func (s Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	atoms := s.atomize(text, 0, s.ChunkSize)
	return s.merge(atoms)
}

// atomize recursively splits text until every piece fits in maxTokens.
func (s Splitter) atomize(text string, level, maxTokens int) []string {
	if CountTokens(text) <= maxTokens || level >= len(separators) {
		return []string{text}
	}
	parts := separators[level](text)
	if len(parts) <= 1 {
		return s.atomize(text, level+1, maxTokens)
	}
	var atoms []string
	for _, p := range parts {
		if CountTokens(p) > maxTokens {
			atoms = append(atoms, s.atomize(p, level+1, maxTokens)...)
		} else {
			atoms = append(atoms, p)
		}
	}
	return atoms
}

// merge packs atoms into chunks up to ChunkSize tokens, seeding each new
// chunk with trailing atoms of the previous one up to ChunkOverlap tokens.
func (s Splitter) merge(atoms []string) []string {
	var chunks []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(current, ""))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		// Carry the overlap tail into the next chunk.
		var tail []string
		tailTokens := 0
		for i := len(current) - 1; i >= 0; i-- {
			n := CountTokens(current[i])
			if tailTokens+n > s.ChunkOverlap {
				break
			}
			tail = append([]string{current[i]}, tail...)
			tailTokens += n
		}
		current = tail
		currentTokens = tailTokens
	}

	for _, atom := range atoms {
		n := CountTokens(atom)
		if currentTokens+n > s.ChunkSize && currentTokens > 0 {
			flush()
			// Drop carried overlap that would push this chunk past ChunkSize.
			for len(current) > 0 && currentTokens+n > s.ChunkSize {
				currentTokens -= CountTokens(current[0])
				current = current[1:]
			}
		}
		current = append(current, atom)
		currentTokens += n
	}
	if len(current) > 0 {
		chunk := strings.TrimSpace(strings.Join(current, ""))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// AtomSentences pre-splits text into sentence-sized atoms for semantic
// grouping. Atoms are bounded at five times the chunk size so a pathological
// wall of text still embeds.
func (s Splitter) AtomSentences(text string) []string {
	atom := Splitter{ChunkSize: s.ChunkSize * 5, ChunkOverlap: 0}
	var atoms []string
	for _, piece := range atom.atomize(text, 0, atom.ChunkSize) {
		for _, sent := range splitAfterPattern(sentenceEndRe)(piece) {
			sent = strings.TrimSpace(sent)
			if sent != "" {
				atoms = append(atoms, sent)
			}
		}
	}
	return atoms
}

func splitAfterLiteral(sep string) splitFunc {
	return func(text string) []string {
		parts := strings.SplitAfter(text, sep)
		return dropEmpty(parts)
	}
}

func splitAfterPattern(re *regexp.Regexp) splitFunc {
	return func(text string) []string {
		locs := re.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			return []string{text}
		}
		var parts []string
		prev := 0
		for _, loc := range locs {
			parts = append(parts, text[prev:loc[1]])
			prev = loc[1]
		}
		if prev < len(text) {
			parts = append(parts, text[prev:])
		}
		return dropEmpty(parts)
	}
}

func splitRunes(text string) []string {
	runes := []rune(text)
	parts := make([]string, 0, len(runes))
	for _, r := range runes {
		parts = append(parts, string(r))
	}
	return parts
}

func dropEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
