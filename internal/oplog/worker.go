package oplog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"contentcore/internal/bus"
	"contentcore/internal/intelligence"
	"contentcore/internal/observability"
	"contentcore/internal/search"
	"contentcore/internal/textsplit"
)

// semanticBreakpointPercentile places chunk boundaries at the sharpest 5% of
// consecutive sentence-embedding distances.
const semanticBreakpointPercentile = 95

// Queue is the claim surface of the store.
type Queue interface {
	Claim(ctx context.Context, limit int) ([]Entry, error)
	Complete(ctx context.Context, id int64) error
	Fail(ctx context.Context, e Entry, jobErr error) error
}

// DocUpdater applies pass-2 fields onto the indexed document.
type DocUpdater interface {
	UpdateDocument(ctx context.Context, indexName, entityID string, fields map[string]any) error
}

// Gateway is the slice of the intelligence client the worker needs.
type Gateway interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	GenerateSummary(ctx context.Context, text, entityType string) (intelligence.Summary, error)
}

// Worker drains the oplog: claim a batch, enrich each row concurrently,
// write vectors and structured fields back to the document store, emit a
// result event. Failures reschedule with exponential backoff.
type Worker struct {
	queue       Queue
	docs        DocUpdater
	ai          Gateway
	producer    bus.Producer
	metrics     *observability.Metrics
	resultTopic string

	BatchSize    int
	PollInterval time.Duration
	// Dims, when set, rejects gateway embeddings of the wrong width before
	// they reach the index mapping.
	Dims int
}

// NewWorker wires a pass-2 worker.
func NewWorker(queue Queue, docs DocUpdater, ai Gateway, producer bus.Producer, metrics *observability.Metrics, resultTopic string) *Worker {
	return &Worker{
		queue:        queue,
		docs:         docs,
		ai:           ai,
		producer:     producer,
		metrics:      metrics,
		resultTopic:  resultTopic,
		BatchSize:    10,
		PollInterval: 5 * time.Second,
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()
	for {
		if err := w.ProcessBatch(ctx); err != nil {
			log.Error().Err(err).Msg("oplog batch failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessBatch claims one batch and runs every row to completion. Rows
// progress independently; one failure never blocks its siblings.
func (w *Worker) ProcessBatch(ctx context.Context) error {
	entries, err := w.queue.Claim(ctx, w.BatchSize)
	if err != nil {
		w.metrics.UpstreamFailures.WithLabelValues("postgres").Inc()
		return fmt.Errorf("claim batch: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	log.Info().Int("count", len(entries)).Msg("processing oplog batch")

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e Entry) {
			defer wg.Done()
			start := time.Now()
			if err := w.executeJob(ctx, e); err != nil {
				log.Error().Err(err).Int64("id", e.ID).Str("entityId", e.EntityID).Msg("oplog job failed")
				w.metrics.IngestJobs.WithLabelValues("failure").Inc()
				w.metrics.IngestRetries.Inc()
				if ferr := w.queue.Fail(ctx, e, err); ferr != nil {
					log.Error().Err(ferr).Int64("id", e.ID).Msg("could not reschedule oplog row")
				}
				return
			}
			w.metrics.IngestJobSeconds.Observe(time.Since(start).Seconds())
			w.metrics.IngestJobs.WithLabelValues("success").Inc()
			if cerr := w.queue.Complete(ctx, e.ID); cerr != nil {
				log.Error().Err(cerr).Int64("id", e.ID).Msg("could not complete oplog row")
			}
		}(e)
	}
	wg.Wait()
	return nil
}

// executeJob runs one enrichment: chunk if needed, embed, summarize, write
// the document to ready, emit the result event.
func (w *Worker) executeJob(ctx context.Context, e Entry) error {
	if e.TaskType != TaskEmbed && e.TaskType != TaskEnrich {
		return fmt.Errorf("unknown task type %q", e.TaskType)
	}

	chunks := e.Payload.Chunks
	if len(chunks) == 0 && e.Payload.Text != "" {
		var err error
		chunks, err = w.chunk(ctx, e.Payload)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", e.EntityID, err)
		}
	}

	fields := map[string]any{"status": search.StatusReady}

	if len(chunks) > 0 {
		w.metrics.IntelligenceCalls.WithLabelValues("embed").Inc()
		vectors, err := w.ai.Embed(ctx, chunks)
		if err != nil {
			w.metrics.UpstreamFailures.WithLabelValues("intelligence").Inc()
			return fmt.Errorf("embed %s: %w", e.EntityID, err)
		}
		nested := make([]search.Chunk, len(chunks))
		for i := range chunks {
			if w.Dims > 0 && len(vectors[i]) != w.Dims {
				return fmt.Errorf("embedding for %s has %d dims, want %d", e.EntityID, len(vectors[i]), w.Dims)
			}
			nested[i] = search.Chunk{TextChunk: chunks[i], Vector: vectors[i]}
		}
		fields["chunks"] = nested
		log.Info().Str("entityId", e.EntityID).Int("chunks", len(nested)).Msg("generated embeddings")
	}

	var summary *intelligence.Summary
	if contains(e.Payload.Enrichments, "summary") && e.Payload.Text != "" {
		w.metrics.IntelligenceCalls.WithLabelValues("summary").Inc()
		s, err := w.ai.GenerateSummary(ctx, e.Payload.Text, e.Payload.EntityType)
		if err != nil {
			w.metrics.UpstreamFailures.WithLabelValues("intelligence").Inc()
			return fmt.Errorf("summarize %s: %w", e.EntityID, err)
		}
		summary = &s
		if s.Summary != "" {
			fields["summary"] = s.Summary
		}
		if len(s.KeyConcepts) > 0 {
			fields["key_concepts"] = s.KeyConcepts
		}
		if len(s.Entities) > 0 {
			fields["entities"] = s.Entities
		}
		if s.Language != "" {
			fields["language"] = s.Language
		}
	}

	if err := w.docs.UpdateDocument(ctx, e.TargetIndex, e.EntityID, fields); err != nil {
		w.metrics.UpstreamFailures.WithLabelValues("elastic").Inc()
		return fmt.Errorf("update document %s: %w", e.EntityID, err)
	}

	return w.emitResult(ctx, e, summary)
}

// chunk computes chunks the consumer deferred: semantic grouping over
// sentence-atom embeddings, refined recursively, or a plain recursive split.
func (w *Worker) chunk(ctx context.Context, p Payload) ([]string, error) {
	splitter := textsplit.NewSplitter(p.ChunkSize, p.ChunkOverlap)
	if p.ChunkingStrategy != "semantic" {
		return splitter.Split(p.Text), nil
	}

	atoms := splitter.AtomSentences(p.Text)
	if len(atoms) <= 1 {
		return splitter.Split(p.Text), nil
	}
	vectors, err := w.ai.Embed(ctx, atoms)
	if err != nil {
		log.Error().Err(err).Msg("semantic chunking embed failed, falling back to recursive")
		return splitter.Split(p.Text), nil
	}
	groups := textsplit.GroupSemantic(atoms, vectors, semanticBreakpointPercentile)
	return splitter.RefineOversized(groups), nil
}

// emitResult publishes the pass-2 completion event. Only enrichments that
// produced a summary emit; plain embeds finish silently.
func (w *Worker) emitResult(ctx context.Context, e Entry, summary *intelligence.Summary) error {
	if summary == nil || summary.Summary == "" {
		return nil
	}
	event := map[string]any{
		"entity_id":   e.EntityID,
		"entity_type": e.Payload.EntityType,
		"summary":     summary.Summary,
		"index_name":  e.TargetIndex,
		"status":      "completed",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	if err := w.producer.PublishJSON(ctx, w.resultTopic, e.EntityID, event); err != nil {
		// The document is already ready; a lost event is not worth a retry
		// cycle that would redo the embedding work.
		w.metrics.UpstreamFailures.WithLabelValues("kafka").Inc()
		log.Error().Err(err).Str("entityId", e.EntityID).Msg("failed to emit result event")
	}
	return nil
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
