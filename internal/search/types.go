// Package search implements the document-store side of the platform: index
// mapping, pass-1/pass-2 document writes, the composite hybrid query and the
// search executor that fuses analysis, retrieval and reranking.
package search

// Request is the body of POST /search.
type Request struct {
	Query                string         `json:"query"`
	Limit                int            `json:"limit"`
	Filters              map[string]any `json:"filters,omitempty"`
	IndexName            string         `json:"index_name,omitempty"`
	UseHybrid            bool           `json:"use_hybrid"`
	MinScore             float64        `json:"min_score"`
	VectorThreshold      float64        `json:"vector_threshold"`
	ReturnChunks         bool           `json:"return_chunks"`
	SortBy               string         `json:"sort_by"`
	EnableQueryExpansion bool           `json:"enable_query_expansion"`
	EnableQueryAnalysis  bool           `json:"enable_query_analysis"`
	EnableReranking      bool           `json:"enable_reranking"`
	Debug                bool           `json:"debug"`
}

// ApplyDefaults fills the zero-value fields the JSON decoder cannot default.
func (r *Request) ApplyDefaults() {
	if r.Limit <= 0 {
		r.Limit = 10
	}
	if r.MinScore == 0 {
		r.MinScore = 25.0
	}
	if r.VectorThreshold == 0 {
		r.VectorThreshold = 0.65
	}
	if r.SortBy == "" {
		r.SortBy = SortRelevancy
	}
}

// Sort modes for the compose step.
const (
	SortRelevancy = "relevancy"
	SortRecency   = "recency"
	SortBalanced  = "balanced"
)

// Result is one shaped search hit returned to callers.
type Result struct {
	Score        float64        `json:"score"`
	RerankScore  *float64       `json:"rerank_score,omitempty"`
	Title        string         `json:"title"`
	Summary      string         `json:"summary"`
	Metadata     map[string]any `json:"metadata"`
	EntityID     string         `json:"entity_id"`
	SourceApp    string         `json:"source_app"`
	Entities     []string       `json:"entities"`
	KeyConcepts  []string       `json:"key_concepts"`
	Language     string         `json:"language"`
	MatchedChunk string         `json:"matched_chunk,omitempty"`
	Debug        []string       `json:"debug,omitempty"`
}

// Chunk is one nested chunk of an indexed document.
type Chunk struct {
	TextChunk string    `json:"text_chunk"`
	Vector    []float32 `json:"vector"`
}

// Document statuses. Search only ever sees ready documents.
const (
	StatusProcessingVectors = "processing_vectors"
	StatusReady             = "ready"
)

// QueryParams feed the composite query builder.
type QueryParams struct {
	QueryText       string
	Vector          []float32
	Limit           int
	Filters         map[string]any
	UseHybrid       bool
	MinScore        float64
	VectorThreshold float64
	ReturnChunks    bool
	SortBy          string
	Entities        []string
	QueryLanguage   string
}

// Hit is a raw retrieval hit before shaping.
type Hit struct {
	ID             string
	Score          float64
	Source         Source
	MatchedChunk   string
	MatchedQueries []string
}

// Source mirrors the indexed document fields the executor reads back.
type Source struct {
	Title       string         `json:"title"`
	Summary     string         `json:"summary"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata"`
	EntityID    string         `json:"entity_id"`
	SourceApp   string         `json:"source_app"`
	Entities    []string       `json:"entities"`
	KeyConcepts []string       `json:"key_concepts"`
	Language    string         `json:"language"`
	Chunks      []Chunk        `json:"chunks"`
}
