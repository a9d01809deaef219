package highlight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTuning(t *testing.T) {
	t.Parallel()
	cfg := DefaultTuning()
	assert.InDelta(t, 0.35, cfg.Scoring.QualificationThreshold, 1e-9)
	assert.Equal(t, 5, cfg.Scoring.MaxClips)
	assert.Equal(t, 8, cfg.Scoring.MinClipDuration)
	assert.Equal(t, 60, cfg.Scoring.MaxClipDuration)
	assert.Equal(t, 3, cfg.Scoring.ContextBuffer)
	assert.Equal(t, 5, cfg.Scoring.MinGap)

	audio := cfg.Signals[SignalAudioSpike]
	assert.True(t, audio.Enabled)
	assert.InDelta(t, 0.5, audio.HopSize, 1e-9)
	assert.InDelta(t, 2.0, audio.ZScoreThreshold, 1e-9)

	ocr := cfg.Signals[SignalOCRKeyword]
	assert.False(t, ocr.Enabled)

	assert.Equal(t, 60, cfg.Governance.MaxCPUPercent)
	assert.Equal(t, 900, cfg.Governance.MaxMemoryMB)
	assert.Equal(t, 1800, cfg.Governance.JobTimeout)
}

func TestLoadTuningMissingFile(t *testing.T) {
	t.Parallel()
	cfg := LoadTuning("/nonexistent/highlight.yaml")
	assert.Equal(t, DefaultTuning().Scoring, cfg.Scoring)
}

func TestLoadTuningPartialFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "highlight.yaml")
	content := `
scoring:
  qualification_threshold: 0.5
  max_clips: 3
signals:
  audio_spike:
    enabled: true
    weight: 0.4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := LoadTuning(path)
	assert.InDelta(t, 0.5, cfg.Scoring.QualificationThreshold, 1e-9)
	assert.Equal(t, 3, cfg.Scoring.MaxClips)
	// unset scoring knobs backfill from defaults
	assert.Equal(t, 8, cfg.Scoring.MinClipDuration)
	// per-signal knobs backfill too
	audio := cfg.Signals[SignalAudioSpike]
	assert.InDelta(t, 0.4, audio.Weight, 1e-9)
	assert.InDelta(t, 0.5, audio.HopSize, 1e-9)
	assert.Equal(t, 2, audio.MinSpikeCount)
}

func TestLoadTuningGarbageFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "highlight.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{{{"), 0o644))
	cfg := LoadTuning(path)
	assert.Equal(t, DefaultTuning().Scoring, cfg.Scoring)
}

func TestOCRCandidates(t *testing.T) {
	t.Parallel()
	initial := map[int]Aggregate{
		2:   {Total: 0.05}, // below floor
		100: {Total: 0.2},
	}
	candidates := ocrCandidates(initial, 300)
	assert.Contains(t, candidates, 95)
	assert.Contains(t, candidates, 100)
	assert.Contains(t, candidates, 105)
	assert.NotContains(t, candidates, 94)
	assert.NotContains(t, candidates, 2)

	// edge clamping
	edge := ocrCandidates(map[int]Aggregate{1: {Total: 0.5}}, 300)
	assert.Contains(t, edge, 0)
	assert.NotContains(t, edge, -1)
}
