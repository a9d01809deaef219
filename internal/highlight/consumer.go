package highlight

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"contentcore/internal/bus"
	"contentcore/internal/observability"
	"contentcore/internal/redislock"
)

// Topics groups the outcome topic names.
type Topics struct {
	Complete string
	Degraded string
	Failed   string
}

// Consumer drives highlight jobs off the request topic, one at a time.
// Per-video exclusivity comes from the distributed lock: a held lock means
// another worker owns the video, so the message is skipped and committed.
type Consumer struct {
	reader     *kafka.Reader
	producer   bus.Producer
	lock       *redislock.Lock
	runner     *Runner
	metrics    *observability.Metrics
	topics     Topics
	jobTimeout time.Duration
}

// NewConsumer wires the highlight consumer.
func NewConsumer(reader *kafka.Reader, producer bus.Producer, lock *redislock.Lock, runner *Runner, metrics *observability.Metrics, topics Topics, jobTimeout time.Duration) *Consumer {
	return &Consumer{
		reader:     reader,
		producer:   producer,
		lock:       lock,
		runner:     runner,
		metrics:    metrics,
		topics:     topics,
		jobTimeout: jobTimeout,
	}
}

// Run consumes requests until the context is cancelled. Offsets commit after
// the outcome event is emitted (or the message is skipped), never before.
func (c *Consumer) Run(ctx context.Context) error {
	log.Info().Msg("highlight consumer started")
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

		c.handleMessage(ctx, msg.Value)

		if ctx.Err() != nil {
			// Cancelled mid-job: leave the offset uncommitted so the
			// request replays elsewhere.
			return ctx.Err()
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("commit failed")
		}
	}
}

// handleMessage runs one request end to end: parse, lock, run with timeout,
// emit the outcome, release the lock.
func (c *Consumer) handleMessage(ctx context.Context, value []byte) {
	var payload JobPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		log.Error().Err(err).Msg("dropping malformed highlight request")
		return
	}
	if payload.VideoID == "" {
		log.Error().Msg("dropping highlight request without videoId")
		return
	}
	videoID := payload.VideoID
	log.Info().Str("videoId", videoID).Msg("received highlight request")

	acquired, err := c.lock.Acquire(ctx, videoID)
	if err != nil {
		c.metrics.UpstreamFailures.WithLabelValues("redis").Inc()
		log.Error().Err(err).Str("videoId", videoID).Msg("lock acquire failed, skipping")
		return
	}
	if !acquired {
		// Another worker owns this video; skip silently.
		return
	}
	defer c.lock.Release(ctx, videoID)

	jobCtx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	outcome, state := c.runner.Run(jobCtx, payload)

	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		c.metrics.HighlightJobs.WithLabelValues("timeout").Inc()
		log.Error().Str("videoId", videoID).Dur("timeout", c.jobTimeout).Msg("job timed out")
		c.emit(ctx, c.topics.Failed, Outcome{
			VideoID:  videoID,
			Error:    "job timed out after " + c.jobTimeout.String(),
			Warnings: []string{},
		})
		return
	}
	if ctx.Err() != nil {
		// Shutdown: release the lock and emit nothing; the uncommitted
		// offset replays the job on the next worker.
		return
	}

	switch state {
	case StateFailed:
		c.emit(ctx, c.topics.Failed, outcome)
	case StateDegraded:
		c.emit(ctx, c.topics.Degraded, outcome)
	default:
		// COMPLETE and EMPTY both publish completions; EMPTY just carries
		// clipCount 0.
		c.emit(ctx, c.topics.Complete, outcome)
	}
}

func (c *Consumer) emit(ctx context.Context, topic string, outcome Outcome) {
	if err := c.producer.PublishJSON(ctx, topic, outcome.VideoID, outcome); err != nil {
		c.metrics.UpstreamFailures.WithLabelValues("kafka").Inc()
		log.Error().Err(err).Str("topic", topic).Str("videoId", outcome.VideoID).Msg("failed to emit outcome")
		return
	}
	log.Info().Str("topic", topic).Str("videoId", outcome.VideoID).Int("clips", outcome.ClipCount).Msg("emitted outcome")
}
