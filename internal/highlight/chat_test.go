package highlight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCfg() SignalConfig {
	return SignalConfig{BucketSize: 10, SpikeMultiplier: 2.5}
}

func TestScoreChatBucketsSpike(t *testing.T) {
	t.Parallel()
	// Baseline buckets of 2 messages, one bucket of 20 at 60-69s.
	var offsets []float64
	for b := 0; b < 12; b++ {
		if b == 6 {
			for i := 0; i < 20; i++ {
				offsets = append(offsets, float64(60+i%10))
			}
			continue
		}
		offsets = append(offsets, float64(b*10), float64(b*10+5))
	}

	scores := scoreChatBuckets(offsets, 10, 2.5)
	require.NotEmpty(t, scores)

	// Every second of the spiking bucket carries the score.
	for sec := 60; sec < 70; sec++ {
		assert.InDelta(t, 1.0, scores[sec], 1e-9, "second %d", sec)
	}
	// Quiet buckets contribute nothing.
	assert.NotContains(t, scores, 5)
	assert.NotContains(t, scores, 30)
}

func TestScoreChatBucketsNoSpike(t *testing.T) {
	t.Parallel()
	offsets := []float64{1, 11, 21, 31, 41}
	scores := scoreChatBuckets(offsets, 10, 2.5)
	assert.Empty(t, scores)
}

func TestChatDetectMissingFile(t *testing.T) {
	t.Parallel()
	sig := &ChatSpikeSignal{}
	scores, err := sig.Detect(context.Background(), chatCfg(), SignalInputs{ChatPath: "/nonexistent/chat.json"})
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestChatDetectMalformedFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "chat.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	sig := &ChatSpikeSignal{}
	scores, err := sig.Detect(context.Background(), chatCfg(), SignalInputs{ChatPath: path})
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestChatDetectParsesOffsets(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "chat.json")
	content := `[
		{"offset_seconds": 5},
		{"timestamp_offset": 6},
		{"offset_seconds": 7},
		{"offset_seconds": 8},
		{"offset_seconds": 9},
		{"offset_seconds": 100},
		{"offset_seconds": 200}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sig := &ChatSpikeSignal{}
	scores, err := sig.Detect(context.Background(), chatCfg(), SignalInputs{ChatPath: path})
	require.NoError(t, err)

	// Bucket 0-9 holds 5 messages against a median of 1: a spike.
	assert.Contains(t, scores, 5)
	assert.NotContains(t, scores, 100)
}

func TestMedianOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 2.0, medianOf([]int{1, 2, 3}))
	assert.Equal(t, 2.5, medianOf([]int{1, 2, 3, 4}))
	assert.Equal(t, 0.0, medianOf(nil))
}
