package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"contentcore/internal/ingest"
	"contentcore/internal/search"
)

// handleIngest validates a submission and forwards it to the bus.
// Fire-and-forget for producers: processing happens downstream.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var sub ingest.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed submission: " + err.Error()})
		return
	}
	sub.ApplyDefaults()
	if err := sub.Validate(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	topic := s.ingestTopic
	if sub.SourceApp == "openstream" {
		topic = s.openstreamTopic
	}

	if err := s.producer.PublishJSON(r.Context(), topic, sub.EntityID, sub); err != nil {
		s.metrics.UpstreamFailures.WithLabelValues("kafka").Inc()
		log.Error().Err(err).Str("entityId", sub.EntityID).Msg("ingest publish failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not queue submission"})
		return
	}

	log.Info().Str("entityId", sub.EntityID).Str("topic", topic).Msg("submission queued")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "queued",
		"trace_id": sub.TraceID,
		"topic":    topic,
	})
}

// handleSearch runs the hybrid search pipeline.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed search request: " + err.Error()})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "query is required"})
		return
	}

	results, err := s.searcher.Search(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("query", req.Query).Msg("search failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal search engine error"})
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
