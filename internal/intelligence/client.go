// Package intelligence is the outbound adapter for the AI gateway: embedding,
// chat, query analysis and reranking. The gateway is a remote, idempotent,
// rate-limited upstream; every call carries the shared service API key.
package intelligence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"contentcore/internal/config"
)

// embedBatchSize bounds how many texts go to the gateway per request.
const embedBatchSize = 20

// Client talks to the intelligence gateway.
type Client struct {
	baseURL        string
	apiKey         string
	summaryModel   string
	embeddingModel string
	rerankModel    string
	http           *http.Client
}

// NewClient builds a gateway client with a tuned transport.
func NewClient(cfg config.AIConfig) *Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 7 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   7 * time.Second,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   50,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		summaryModel:   cfg.SummaryModel,
		embeddingModel: cfg.EmbeddingModel,
		rerankModel:    cfg.RerankModel,
		http:           &http.Client{Transport: tr, Timeout: 90 * time.Second},
	}
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data [][]float32 `json:"data"`
}

// Embed generates embeddings for the given texts, batching requests to the
// gateway. The returned slice is parallel to the input.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	for i := 0; i < len(texts); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		var resp embeddingResponse
		if err := c.post(ctx, "/v1/embeddings", embeddingRequest{Input: batch, Model: c.embeddingModel}, &resp); err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", i/embedBatchSize+1, err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(resp.Data), len(batch))
		}
		out = append(out, resp.Data...)
	}
	return out, nil
}

type chatRequest struct {
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Model  string `json:"model,omitempty"`
}

type chatResponse struct {
	Content  string `json:"content"`
	Provider string `json:"provider"`
}

// Chat runs a single completion against the gateway and returns the raw text.
func (c *Client) Chat(ctx context.Context, system, prompt, model string) (string, error) {
	if model == "" {
		model = c.summaryModel
	}
	var resp chatResponse
	if err := c.post(ctx, "/v1/chat/completions", chatRequest{Prompt: prompt, System: system, Model: model}, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// QueryAnalysis is the gateway's structured read of a search query.
type QueryAnalysis struct {
	DetectedLanguage string   `json:"detected_language"`
	OriginalIntent   string   `json:"original_intent"`
	Entities         []string `json:"entities"`
	ExpandedTerms    []string `json:"expanded_terms"`
	TranslatedQuery  string   `json:"translated_query"`
}

// AnalyzeQuery asks the gateway to classify a search query. Failures degrade
// to a neutral analysis so search keeps working without the gateway.
func (c *Client) AnalyzeQuery(ctx context.Context, query string) QueryAnalysis {
	var resp QueryAnalysis
	if err := c.post(ctx, "/v1/query/analyze", map[string]string{"query": query}, &resp); err != nil {
		log.Error().Err(err).Msg("query analysis failed")
		return QueryAnalysis{
			DetectedLanguage: "en",
			OriginalIntent:   "search",
			TranslatedQuery:  query,
		}
	}
	return resp
}

// RerankDoc is one candidate handed to the cross-encoder.
type RerankDoc struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RerankResult carries the cross-encoder score for one candidate.
type RerankResult struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type rerankRequest struct {
	Query     string      `json:"query"`
	Documents []RerankDoc `json:"documents"`
}

// RerankResponse is the gateway reranker reply.
type RerankResponse struct {
	Query     string         `json:"query"`
	Results   []RerankResult `json:"results"`
	LatencyMS int64          `json:"latency_ms"`
}

// Rerank scores documents against the query with the gateway cross-encoder.
func (c *Client) Rerank(ctx context.Context, query string, docs []RerankDoc) (RerankResponse, error) {
	var resp RerankResponse
	if err := c.post(ctx, "/v1/rerank/rerank", rerankRequest{Query: query, Documents: docs}, &resp); err != nil {
		return RerankResponse{}, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("intelligence %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("intelligence %s: status %d: %s", path, resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
