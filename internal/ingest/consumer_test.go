package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcore/internal/observability"
	"contentcore/internal/oplog"
	"contentcore/internal/search"
)

type fakeDocStore struct {
	docs map[string]map[string]any
}

func (f *fakeDocStore) UpsertText(_ context.Context, _, entityID string, doc map[string]any) error {
	if f.docs == nil {
		f.docs = make(map[string]map[string]any)
	}
	f.docs[entityID] = doc
	return nil
}

type fakeTaskQueue struct {
	rows []struct {
		EntityID    string
		TaskType    string
		Payload     oplog.Payload
		TargetIndex string
	}
}

func (f *fakeTaskQueue) Enqueue(_ context.Context, entityID, taskType string, payload oplog.Payload, targetIndex string) error {
	f.rows = append(f.rows, struct {
		EntityID    string
		TaskType    string
		Payload     oplog.Payload
		TargetIndex string
	}{entityID, taskType, payload, targetIndex})
	return nil
}

func newTestConsumer(docs *fakeDocStore, queue *fakeTaskQueue) *Consumer {
	return NewConsumer(nil, docs, queue, observability.NewMetrics())
}

func submissionJSON(t *testing.T, s Submission) []byte {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return data
}

func TestHandleIndexesAndQueues(t *testing.T) {
	t.Parallel()
	docs := &fakeDocStore{}
	queue := &fakeTaskQueue{}
	c := newTestConsumer(docs, queue)

	msg := submissionJSON(t, Submission{
		TraceID:    "t1",
		SourceApp:  "blog",
		EntityID:   "p1",
		EntityType: "blog_post",
		Operation:  "index",
		Timestamp:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Payload: map[string]any{
			"title":   "Hello <b>World</b>",
			"content": "<p>Hi there.</p>",
		},
	})
	require.NoError(t, c.Handle(context.Background(), msg))

	doc := docs.docs["p1"]
	require.NotNil(t, doc)
	assert.Equal(t, "Hello <b>World</b>", doc["title"])
	assert.Equal(t, "Hi there.", doc["content"])
	assert.Equal(t, search.StatusProcessingVectors, doc["status"])

	require.Len(t, queue.rows, 1)
	assert.Equal(t, oplog.TaskEmbed, queue.rows[0].TaskType)
	assert.Equal(t, "Hi there.", queue.rows[0].Payload.Text)
	assert.NotEmpty(t, queue.rows[0].Payload.Chunks)
}

func TestHandleEnrichmentsSelectEnrichTask(t *testing.T) {
	t.Parallel()
	docs := &fakeDocStore{}
	queue := &fakeTaskQueue{}
	c := newTestConsumer(docs, queue)

	msg := submissionJSON(t, Submission{
		TraceID:     "t2",
		SourceApp:   "blog",
		EntityID:    "p2",
		Operation:   "index",
		Payload:     map[string]any{"text": "plain body"},
		Enrichments: []string{"summary"},
	})
	require.NoError(t, c.Handle(context.Background(), msg))
	require.Len(t, queue.rows, 1)
	assert.Equal(t, oplog.TaskEnrich, queue.rows[0].TaskType)
}

func TestHandleSemanticDefersChunks(t *testing.T) {
	t.Parallel()
	docs := &fakeDocStore{}
	queue := &fakeTaskQueue{}
	c := newTestConsumer(docs, queue)

	msg := submissionJSON(t, Submission{
		TraceID:          "t3",
		SourceApp:        "blog",
		EntityID:         "p3",
		Operation:        "index",
		Payload:          map[string]any{"text": "some text body"},
		ChunkingStrategy: "semantic",
	})
	require.NoError(t, c.Handle(context.Background(), msg))
	require.Len(t, queue.rows, 1)
	assert.Nil(t, queue.rows[0].Payload.Chunks)
	assert.Equal(t, "semantic", queue.rows[0].Payload.ChunkingStrategy)
}

func TestHandleMissingContentDropped(t *testing.T) {
	t.Parallel()
	docs := &fakeDocStore{}
	queue := &fakeTaskQueue{}
	c := newTestConsumer(docs, queue)

	msg := submissionJSON(t, Submission{
		TraceID:   "t4",
		SourceApp: "blog",
		EntityID:  "p4",
		Operation: "index",
		Payload:   map[string]any{"title": "no body"},
	})
	err := c.Handle(context.Background(), msg)
	require.Error(t, err)

	var bad *badRecordError
	assert.ErrorAs(t, err, &bad)
	assert.Empty(t, docs.docs)
	assert.Empty(t, queue.rows)
}

func TestHandleGarbageDropped(t *testing.T) {
	t.Parallel()
	c := newTestConsumer(&fakeDocStore{}, &fakeTaskQueue{})
	err := c.Handle(context.Background(), []byte("{not json"))
	var bad *badRecordError
	assert.ErrorAs(t, err, &bad)
}

func TestHandleOverlapClamp(t *testing.T) {
	t.Parallel()
	docs := &fakeDocStore{}
	queue := &fakeTaskQueue{}
	c := newTestConsumer(docs, queue)

	msg := submissionJSON(t, Submission{
		TraceID:      "t5",
		SourceApp:    "blog",
		EntityID:     "p5",
		Operation:    "index",
		Payload:      map[string]any{"text": "aaa bbb ccc ddd eee fff"},
		ChunkSize:    4,
		ChunkOverlap: 10,
	})
	require.NoError(t, c.Handle(context.Background(), msg))
	require.Len(t, queue.rows, 1)
	assert.Equal(t, 3, queue.rows[0].Payload.ChunkOverlap)
}

func TestSubmissionDefaults(t *testing.T) {
	t.Parallel()
	s := Submission{}
	s.ApplyDefaults()
	assert.Equal(t, "article", s.EntityType)
	assert.Equal(t, OperationIndex, s.Operation)
	assert.Equal(t, "recursive", s.ChunkingStrategy)
	assert.Equal(t, 500, s.ChunkSize)
}
