package highlight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeScoresTemporalFusion(t *testing.T) {
	t.Parallel()
	outputs := map[string]map[int]float64{
		"audio_spike": {10: 0.8},
	}
	weights := map[string]float64{"audio_spike": 0.5}

	agg := ComputeScores(outputs, weights, 20)

	// The ±1s window pulls second 10's spike into 9 and 11 as well.
	for _, sec := range []int{9, 10, 11} {
		a, ok := agg[sec]
		require.True(t, ok, "second %d missing", sec)
		assert.InDelta(t, 0.4, a.Total, 1e-9)
		assert.Equal(t, 1, a.SigCount)
	}
	_, ok := agg[8]
	assert.False(t, ok)
	_, ok = agg[12]
	assert.False(t, ok)
}

func TestComputeScoresSigCountNeedsWindowAboveFloor(t *testing.T) {
	t.Parallel()
	outputs := map[string]map[int]float64{
		"a": {5: 0.05}, // below the 0.1 agreement floor
		"b": {5: 0.9},
	}
	weights := map[string]float64{"a": 1.0, "b": 1.0}

	agg := ComputeScores(outputs, weights, 10)
	a := agg[5]
	assert.Equal(t, 1, a.SigCount)
	assert.InDelta(t, 0.95, a.Total, 1e-9)
}

func TestComputeScoresDropsNoise(t *testing.T) {
	t.Parallel()
	outputs := map[string]map[int]float64{"a": {3: 0.009}}
	weights := map[string]float64{"a": 1.0}
	agg := ComputeScores(outputs, weights, 10)
	assert.Empty(t, agg)
}

func TestQualifySecondsRules(t *testing.T) {
	t.Parallel()
	agg := map[int]Aggregate{
		1: {Total: 0.40, SigCount: 2}, // threshold + agreement
		2: {Total: 0.40, SigCount: 1}, // threshold + strong single signal (>= 0.3)
		3: {Total: 0.20, SigCount: 3}, // below threshold
		4: {Total: 0.36, SigCount: 1}, // single signal, >= 0.3 total
	}
	q := QualifySeconds(agg, 0.35)
	assert.Contains(t, q, 1)
	assert.Contains(t, q, 2)
	assert.NotContains(t, q, 3)
	assert.Contains(t, q, 4)
}

// Happy-path fusion: four signals agreeing around second 60 produce exactly
// one clip containing it.
func TestScoringToConsolidationHappyPath(t *testing.T) {
	t.Parallel()
	outputs := map[string]map[int]float64{
		SignalAudioSpike:  {60: 0.9, 61: 0.9},
		SignalSceneChange: {60: 0.6},
		SignalChatSpike:   {58: 0.5, 59: 0.5, 60: 0.5, 61: 0.5, 62: 0.5, 63: 0.5, 64: 0.5, 65: 0.5, 66: 0.5, 67: 0.5, 68: 0.5},
		SignalVTTSemantic: {61: 0.4},
	}
	weights := map[string]float64{
		SignalAudioSpike:  0.30,
		SignalSceneChange: 0.25,
		SignalChatSpike:   0.20,
		SignalVTTSemantic: 0.10,
	}

	agg := ComputeScores(outputs, weights, 300)
	a := agg[60]
	assert.Equal(t, 4, a.SigCount)
	assert.GreaterOrEqual(t, a.Total, 0.35)

	qualified := QualifySeconds(agg, 0.35)
	require.Contains(t, qualified, 60)

	cfg := DefaultTuning().Scoring
	clips := ConsolidateClips(qualified, cfg)
	require.Len(t, clips, 1)

	clip := clips[0]
	assert.LessOrEqual(t, clip.Start, 60)
	assert.GreaterOrEqual(t, clip.End, 60)
	assert.Equal(t, 60, clip.PeakSecond)
	dur := clip.End - clip.Start
	assert.GreaterOrEqual(t, dur, cfg.MinClipDuration)
	assert.LessOrEqual(t, dur, cfg.MaxClipDuration)
}
