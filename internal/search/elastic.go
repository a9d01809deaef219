package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog/log"

	"contentcore/internal/config"
)

// Manager owns index lifecycle and document writes in the document store.
// One index per tenant; the default name comes from config.
type Manager struct {
	client *elasticsearch.Client
	index  string
	dims   int
}

// NewManager connects to the document store.
func NewManager(cfg config.ElasticConfig) (*Manager, error) {
	esCfg := elasticsearch.Config{Addresses: []string{cfg.Host}}
	if cfg.User != "" && cfg.Password != "" {
		esCfg.Username = cfg.User
		esCfg.Password = cfg.Password
	}
	if strings.HasPrefix(cfg.Host, "https://") {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &Manager{client: client, index: cfg.IndexName, dims: cfg.EmbeddingDims}, nil
}

func (m *Manager) indexFor(name string) string {
	if name != "" {
		return name
	}
	return m.index
}

// EnsureIndex creates the index with the canonical mapping when absent.
func (m *Manager) EnsureIndex(ctx context.Context, name string) error {
	index := m.indexFor(name)
	res, err := m.client.Indices.Exists([]string{index}, m.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(map[string]any{"mappings": Mapping(m.dims)})
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	createRes, err := m.client.Indices.Create(index,
		m.client.Indices.Create.WithBody(bytes.NewReader(body)),
		m.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("create index %s: %s", index, readError(createRes.Body))
	}
	log.Info().Str("index", index).Msg("initialized index")
	return nil
}

// UpsertText writes the pass-1 document by entity id, creating the index
// first when needed. Replaying the same submission overwrites by primary key.
func (m *Manager) UpsertText(ctx context.Context, indexName, entityID string, doc map[string]any) error {
	index := m.indexFor(indexName)
	if err := m.EnsureIndex(ctx, index); err != nil {
		return err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", entityID, err)
	}
	res, err := m.client.Index(index, bytes.NewReader(payload),
		m.client.Index.WithDocumentID(entityID),
		m.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index document %s: %w", entityID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index document %s: %s", entityID, readError(res.Body))
	}
	return nil
}

// UpdateDocument applies a partial update (pass-2 vectors plus structured
// fields, status flip to ready).
func (m *Manager) UpdateDocument(ctx context.Context, indexName, entityID string, fields map[string]any) error {
	index := m.indexFor(indexName)
	payload, err := json.Marshal(map[string]any{"doc": fields})
	if err != nil {
		return fmt.Errorf("marshal update %s: %w", entityID, err)
	}
	res, err := m.client.Update(index, entityID, bytes.NewReader(payload),
		m.client.Update.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("update document %s: %w", entityID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("update document %s: %s", entityID, readError(res.Body))
	}
	return nil
}

type esHit struct {
	ID             string   `json:"_id"`
	Score          float64  `json:"_score"`
	Source         Source   `json:"_source"`
	MatchedQueries []string `json:"matched_queries"`
	InnerHits      map[string]struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	} `json:"inner_hits"`
}

type esSearchResponse struct {
	Hits struct {
		MaxScore float64 `json:"max_score"`
		Hits     []esHit `json:"hits"`
	} `json:"hits"`
}

// Search runs the composite query and returns raw hits with any matched
// chunk snippet extracted from inner hits.
func (m *Manager) Search(ctx context.Context, indexName string, p QueryParams) ([]Hit, error) {
	index := m.indexFor(indexName)
	body, err := json.Marshal(BuildQuery(p))
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := m.client.Search(
		m.client.Search.WithContext(ctx),
		m.client.Search.WithIndex(index),
		m.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", index, readError(res.Body))
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hit := Hit{
			ID:             h.ID,
			Score:          h.Score,
			Source:         h.Source,
			MatchedQueries: h.MatchedQueries,
			MatchedChunk:   extractMatchedChunk(h),
		}
		hits = append(hits, hit)
	}

	for i, h := range hits {
		if i >= 3 {
			break
		}
		log.Debug().
			Str("entityId", h.Source.EntityID).
			Float64("score", h.Score).
			Strs("signals", h.MatchedQueries).
			Msg("search hit audit")
	}
	return hits, nil
}

// extractMatchedChunk pulls the best chunk snippet: nested inner hit first,
// first stored chunk as fallback.
func extractMatchedChunk(h esHit) string {
	if mc, ok := h.InnerHits["matched_chunks"]; ok && len(mc.Hits.Hits) > 0 {
		var chunk struct {
			TextChunk string `json:"text_chunk"`
		}
		if err := json.Unmarshal(mc.Hits.Hits[0].Source, &chunk); err == nil && chunk.TextChunk != "" {
			return chunk.TextChunk
		}
	}
	if len(h.Source.Chunks) > 0 {
		return h.Source.Chunks[0].TextChunk
	}
	return ""
}

func readError(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 2048))
	return string(b)
}
