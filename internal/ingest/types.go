// Package ingest implements pass 1: accept a submission, make it lexically
// searchable immediately, and queue the asynchronous enrichment work.
package ingest

import (
	"errors"
	"fmt"
	"time"
)

// Operations accepted on a submission.
const OperationIndex = "index"

// Submission is the contract accepted by POST /ingest and carried on the
// ingest request topic. Identity is (index_name, entity_id).
type Submission struct {
	TraceID          string         `json:"trace_id"`
	SourceApp        string         `json:"source_app"`
	EntityID         string         `json:"entity_id"`
	EntityType       string         `json:"entity_type"`
	Operation        string         `json:"operation"`
	Timestamp        time.Time      `json:"timestamp"`
	Payload          map[string]any `json:"payload"`
	Enrichments      []string       `json:"enrichments"`
	IndexName        string         `json:"index_name,omitempty"`
	ChunkingStrategy string         `json:"chunking_strategy"`
	ChunkSize        int            `json:"chunk_size"`
	ChunkOverlap     int            `json:"chunk_overlap"`
}

// ApplyDefaults fills fields the JSON decoder leaves zero.
func (s *Submission) ApplyDefaults() {
	if s.EntityType == "" {
		s.EntityType = "article"
	}
	if s.Operation == "" {
		s.Operation = OperationIndex
	}
	if s.ChunkingStrategy == "" {
		s.ChunkingStrategy = "recursive"
	}
	if s.ChunkSize <= 0 {
		s.ChunkSize = 500
	}
	if s.ChunkOverlap < 0 {
		s.ChunkOverlap = 50
	}
}

// Validate rejects malformed submissions before they reach the bus.
func (s *Submission) Validate() error {
	if s.TraceID == "" {
		return errors.New("trace_id is required")
	}
	if s.SourceApp == "" {
		return errors.New("source_app is required")
	}
	if s.EntityID == "" {
		return errors.New("entity_id is required")
	}
	if s.Operation == OperationIndex && s.Text() == "" {
		return fmt.Errorf("index operation for %s requires payload.text or payload.content", s.EntityID)
	}
	return nil
}

// Text returns the raw content body, preferring payload.text.
func (s *Submission) Text() string {
	if v, ok := s.Payload["text"].(string); ok && v != "" {
		return v
	}
	if v, ok := s.Payload["content"].(string); ok {
		return v
	}
	return ""
}

// Title returns payload.title when present.
func (s *Submission) Title() string {
	if v, ok := s.Payload["title"].(string); ok {
		return v
	}
	return ""
}

// Metadata returns the free-form payload.metadata object.
func (s *Submission) Metadata() map[string]any {
	if v, ok := s.Payload["metadata"].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}
