package highlight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoringCfg() ScoringConfig {
	return ScoringConfig{
		QualificationThreshold: 0.35,
		MaxClips:               5,
		MinClipDuration:        8,
		MaxClipDuration:        60,
		ContextBuffer:          3,
		MinGap:                 5,
	}
}

func TestConsolidateEmpty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, ConsolidateClips(nil, scoringCfg()))
	assert.Nil(t, ConsolidateClips(map[int]float64{}, scoringCfg()))
}

func TestConsolidateSingleCluster(t *testing.T) {
	t.Parallel()
	qualified := map[int]float64{100: 0.5, 101: 0.6, 103: 0.4}
	clips := ConsolidateClips(qualified, scoringCfg())
	require.Len(t, clips, 1)

	clip := clips[0]
	assert.Equal(t, 97, clip.Start)
	assert.Equal(t, 106, clip.End)
	assert.InDelta(t, 0.6, clip.Score, 1e-9)
	assert.Equal(t, 101, clip.PeakSecond)
}

func TestConsolidateSeparateClusters(t *testing.T) {
	t.Parallel()
	qualified := map[int]float64{10: 0.5, 100: 0.7}
	clips := ConsolidateClips(qualified, scoringCfg())
	require.Len(t, clips, 2)
	assert.Less(t, clips[0].Start, clips[1].Start)
}

func TestConsolidateMinDurationExpansion(t *testing.T) {
	t.Parallel()
	qualified := map[int]float64{50: 0.5}
	clips := ConsolidateClips(qualified, scoringCfg())
	require.Len(t, clips, 1)
	assert.Equal(t, 8, clips[0].End-clips[0].Start)
}

func TestConsolidateMaxDurationTrim(t *testing.T) {
	t.Parallel()
	qualified := map[int]float64{}
	for sec := 100; sec <= 200; sec++ {
		qualified[sec] = 0.5
	}
	clips := ConsolidateClips(qualified, scoringCfg())
	require.Len(t, clips, 1)
	assert.Equal(t, 60, clips[0].End-clips[0].Start)
}

func TestConsolidateNeverBelowZero(t *testing.T) {
	t.Parallel()
	qualified := map[int]float64{1: 0.5}
	clips := ConsolidateClips(qualified, scoringCfg())
	require.Len(t, clips, 1)
	assert.GreaterOrEqual(t, clips[0].Start, 0)
}

func TestConsolidateRanksAndCaps(t *testing.T) {
	t.Parallel()
	cfg := scoringCfg()
	cfg.MaxClips = 2
	qualified := map[int]float64{
		10:  0.3,
		100: 0.9,
		200: 0.5,
		300: 0.7,
	}
	clips := ConsolidateClips(qualified, cfg)
	require.Len(t, clips, 2)

	// top two by score (0.9 at 100, 0.7 at 300), re-sorted chronologically
	assert.Equal(t, 100, clips[0].PeakSecond)
	assert.Equal(t, 300, clips[1].PeakSecond)
	assert.Equal(t, 0, clips[0].Index)
	assert.Equal(t, 1, clips[1].Index)
}

func TestConsolidateClipsNonOverlapping(t *testing.T) {
	t.Parallel()
	cfg := scoringCfg()
	qualified := map[int]float64{}
	for _, sec := range []int{10, 11, 30, 31, 55, 90, 140, 141, 142, 200} {
		qualified[sec] = 0.5
	}
	clips := ConsolidateClips(qualified, cfg)
	require.NotEmpty(t, clips)

	totalBudget := cfg.MaxClips * cfg.MaxClipDuration
	total := 0
	for i, clip := range clips {
		total += clip.End - clip.Start
		if i > 0 {
			assert.Greater(t, clip.Start, clips[i-1].End, "clips %d and %d overlap", i-1, i)
		}
	}
	assert.LessOrEqual(t, total, totalBudget)
}
