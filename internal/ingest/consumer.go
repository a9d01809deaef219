package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"contentcore/internal/observability"
	"contentcore/internal/oplog"
	"contentcore/internal/sanitize"
	"contentcore/internal/search"
	"contentcore/internal/textsplit"
)

// DocStore is the pass-1 write surface of the document store.
type DocStore interface {
	UpsertText(ctx context.Context, indexName, entityID string, doc map[string]any) error
}

// TaskQueue enqueues the pass-2 enrichment work.
type TaskQueue interface {
	Enqueue(ctx context.Context, entityID, taskType string, payload oplog.Payload, targetIndex string) error
}

// Consumer is the pass-1 loop: one record at a time, manual commit only
// after both the document upsert and the oplog insert succeed.
type Consumer struct {
	reader  *kafka.Reader
	docs    DocStore
	queue   TaskQueue
	metrics *observability.Metrics
}

// NewConsumer wires the pass-1 consumer.
func NewConsumer(reader *kafka.Reader, docs DocStore, queue TaskQueue, metrics *observability.Metrics) *Consumer {
	return &Consumer{reader: reader, docs: docs, queue: queue, metrics: metrics}
}

// Run fetches and processes records until the context is cancelled.
// Malformed records are logged, committed and dropped; on a transient handler
// failure the same record is retried, its offset uncommitted until it succeeds.
func (c *Consumer) Run(ctx context.Context) error {
	log.Info().Msg("ingestion consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			c.metrics.UpstreamFailures.WithLabelValues("kafka").Inc()
			log.Error().Err(err).Msg("fetch failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		for {
			err := c.Handle(ctx, msg.Value)
			if err == nil {
				break
			}
			var bad *badRecordError
			if errors.As(err, &bad) {
				log.Error().Err(err).Int64("offset", msg.Offset).Msg("dropping malformed record")
				break
			}
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("handler failed, retrying before commit")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("commit failed")
		}
	}
}

// badRecordError marks per-record payload problems that should be dropped
// rather than replayed.
type badRecordError struct{ err error }

func (e *badRecordError) Error() string { return e.err.Error() }
func (e *badRecordError) Unwrap() error { return e.err }

// Handle processes one submission record. Idempotent under replay: the
// document upserts by primary key, the oplog insert dedupes on
// (entity_id, target_index, task_type, status != COMPLETED).
func (c *Consumer) Handle(ctx context.Context, value []byte) error {
	var sub Submission
	if err := json.Unmarshal(value, &sub); err != nil {
		return &badRecordError{fmt.Errorf("decode submission: %w", err)}
	}
	sub.ApplyDefaults()
	if err := sub.Validate(); err != nil {
		return &badRecordError{fmt.Errorf("invalid submission: %w", err)}
	}
	if sub.Operation != OperationIndex {
		return &badRecordError{fmt.Errorf("unsupported operation %q", sub.Operation)}
	}

	text := sanitize.CleanHTML(sub.Text())

	doc := map[string]any{
		"source_app": sub.SourceApp,
		"entity_id":  sub.EntityID,
		"title":      sub.Title(),
		"content":    text,
		"metadata":   sub.Metadata(),
		"status":     search.StatusProcessingVectors,
	}
	if err := c.docs.UpsertText(ctx, sub.IndexName, sub.EntityID, doc); err != nil {
		c.metrics.UpstreamFailures.WithLabelValues("elastic").Inc()
		return fmt.Errorf("pass 1 upsert %s: %w", sub.EntityID, err)
	}
	log.Info().Str("entityId", sub.EntityID).Str("index", sub.IndexName).Msg("pass 1 indexed text")

	if text == "" {
		return nil
	}

	// Recursive chunking is cheap enough to do inline; semantic chunking
	// needs embeddings and is deferred to the oplog worker.
	var chunks []string
	overlap := sub.ChunkOverlap
	if overlap >= sub.ChunkSize {
		overlap = sub.ChunkSize - 1
	}
	if sub.ChunkingStrategy != "semantic" {
		chunks = textsplit.NewSplitter(sub.ChunkSize, overlap).Split(text)
	}

	taskType := oplog.TaskEmbed
	if len(sub.Enrichments) > 0 {
		taskType = oplog.TaskEnrich
	}
	payload := oplog.Payload{
		EntityType:       sub.EntityType,
		Chunks:           chunks,
		Text:             text,
		Enrichments:      sub.Enrichments,
		ChunkSize:        sub.ChunkSize,
		ChunkOverlap:     overlap,
		ChunkingStrategy: sub.ChunkingStrategy,
	}
	if err := c.queue.Enqueue(ctx, sub.EntityID, taskType, payload, sub.IndexName); err != nil {
		c.metrics.UpstreamFailures.WithLabelValues("postgres").Inc()
		return fmt.Errorf("enqueue enrichment for %s: %w", sub.EntityID, err)
	}
	log.Info().Str("entityId", sub.EntityID).Str("taskType", taskType).Str("strategy", sub.ChunkingStrategy).Msg("pass 2 queued")
	return nil
}
