package highlight

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
)

// ChatSpikeSignal detects bursts of chat activity by bucketing message
// timestamps and comparing bucket counts against the median.
type ChatSpikeSignal struct{}

func (s *ChatSpikeSignal) Name() string { return SignalChatSpike }

type chatMessage struct {
	OffsetSeconds   *float64 `json:"offset_seconds"`
	TimestampOffset *float64 `json:"timestamp_offset"`
}

func (m chatMessage) offset() float64 {
	if m.OffsetSeconds != nil {
		return *m.OffsetSeconds
	}
	if m.TimestampOffset != nil {
		return *m.TimestampOffset
	}
	return 0
}

// Detect loads the chat log and scores spiking buckets. Missing or
// malformed chat files are not errors; the signal simply contributes nothing.
func (s *ChatSpikeSignal) Detect(_ context.Context, cfg SignalConfig, in SignalInputs) (map[int]float64, error) {
	if in.ChatPath == "" {
		log.Info().Msg("chat: no chat log provided, skipping")
		return map[int]float64{}, nil
	}
	data, err := os.ReadFile(in.ChatPath)
	if err != nil {
		log.Info().Err(err).Msg("chat: chat log unreadable, skipping")
		return map[int]float64{}, nil
	}
	var messages []chatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		log.Warn().Err(err).Msg("chat: failed to parse chat log")
		return map[int]float64{}, nil
	}
	if len(messages) == 0 {
		log.Info().Msg("chat: empty chat log, skipping")
		return map[int]float64{}, nil
	}

	offsets := make([]float64, len(messages))
	for i, m := range messages {
		offsets[i] = m.offset()
	}
	return scoreChatBuckets(offsets, cfg.BucketSize, cfg.SpikeMultiplier), nil
}

// scoreChatBuckets buckets message offsets, finds buckets above
// spikeMultiplier x the median count, and spreads each spike's score across
// every second in its bucket.
func scoreChatBuckets(offsets []float64, bucketSize int, spikeMultiplier float64) map[int]float64 {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	buckets := map[int]int{}
	for _, ts := range offsets {
		bucket := int(ts) / bucketSize * bucketSize
		buckets[bucket]++
	}
	if len(buckets) == 0 {
		return map[int]float64{}
	}

	counts := make([]int, 0, len(buckets))
	maxCount := 1
	for _, c := range buckets {
		counts = append(counts, c)
		if c > maxCount {
			maxCount = c
		}
	}
	sort.Ints(counts)
	median := medianOf(counts)
	threshold := median * spikeMultiplier

	scores := map[int]float64{}
	for bucketStart, count := range buckets {
		if float64(count) > threshold {
			score := math.Min(1.0, float64(count)/float64(maxCount))
			for sec := bucketStart; sec < bucketStart+bucketSize; sec++ {
				scores[sec] = score
			}
		}
	}

	log.Info().Int("seconds", len(scores)).Float64("median", median).Float64("threshold", threshold).Msg("chat: spike seconds")
	return scores
}

func medianOf(sorted []int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
