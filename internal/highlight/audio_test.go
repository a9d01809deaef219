package highlight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func audioCfg() SignalConfig {
	return SignalConfig{
		HopSize:          0.5,
		ZScoreThreshold:  2.0,
		TransientDeltaDB: 6.0,
		WindowSeconds:    2.0,
		MinSpikeCount:    2,
	}
}

func TestParseAstats(t *testing.T) {
	t.Parallel()
	stderr := `[Parsed_ametadata_1 @ 0x1] lavfi.astats.Overall.RMS_level=-34.2
[Parsed_ametadata_2 @ 0x2] lavfi.astats.Overall.Peak_level=-20.1
[Parsed_ametadata_1 @ 0x1] lavfi.astats.Overall.RMS_level=-30.0
[Parsed_ametadata_2 @ 0x2] lavfi.astats.Overall.Peak_level=-28.5
`
	samples := parseAstats(stderr, 0.5)
	require.Len(t, samples, 2)
	assert.InDelta(t, 0.0, samples[0].ts, 1e-9)
	assert.InDelta(t, -34.2, samples[0].rms, 1e-9)
	assert.InDelta(t, -20.1, samples[0].peak, 1e-9)
	assert.InDelta(t, 0.5, samples[1].ts, 1e-9)
}

func TestToDBClampsSilence(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, -40.0, toDB("-40.0"), 1e-9)
	assert.InDelta(t, silenceFloorDB, toDB("-inf"), 1e-9)
	assert.InDelta(t, silenceFloorDB, toDB("-300"), 1e-9)
	assert.InDelta(t, silenceFloorDB, toDB("garbage"), 1e-9)
}

func TestRollingZScoreIgnoresSilence(t *testing.T) {
	t.Parallel()
	// Mostly silence with a short active burst: the silence floor values
	// must not drag the baseline down.
	values := make([]float64, 40)
	for i := range values {
		values[i] = -90
	}
	for i := 20; i < 30; i++ {
		values[i] = -30
	}
	values[25] = -10 // the spike

	z := rollingZScore(values, 20, -50)
	assert.Greater(t, z[25], 2.0)
	// Pure silence windows yield zero z-scores.
	assert.Equal(t, 0.0, z[2])
}

func TestRollingZScoreFlatSignal(t *testing.T) {
	t.Parallel()
	values := make([]float64, 30)
	for i := range values {
		values[i] = -30 // active but flat: std below the 0.5 dB floor
	}
	z := rollingZScore(values, 10, -50)
	for _, v := range z {
		assert.Equal(t, 0.0, v)
	}
}

func TestAudioScoreWindowConfirmation(t *testing.T) {
	t.Parallel()
	sig := &AudioSpikeSignal{}
	cfg := audioCfg()

	// Two strong transient hops inside the 2s window confirm the second;
	// one isolated hop does not.
	records := []audioSample{
		{ts: 10.0, rms: -30, peak: -10},
		{ts: 10.5, rms: -30, peak: -10},
		{ts: 50.0, rms: -30, peak: -10},
	}
	z := []float64{0, 0, 0}

	scores := sig.score(records, z, nil, cfg)
	assert.Contains(t, scores, 10)
	assert.NotContains(t, scores, 50)
	assert.InDelta(t, 0.3, scores[10], 1e-9)
}

func TestAudioScoreZSpike(t *testing.T) {
	t.Parallel()
	sig := &AudioSpikeSignal{}
	cfg := audioCfg()

	records := []audioSample{
		{ts: 5.0, rms: -30, peak: -29},
		{ts: 5.5, rms: -30, peak: -29},
	}
	z := []float64{2.5, 2.5}

	scores := sig.score(records, z, nil, cfg)
	require.Contains(t, scores, 5)
	assert.InDelta(t, 0.6, scores[5], 1e-9)
}

func TestAudioScoreHighFreqBoost(t *testing.T) {
	t.Parallel()
	sig := &AudioSpikeSignal{}
	cfg := audioCfg()

	records := []audioSample{
		{ts: 7.0, rms: -30, peak: -10},
		{ts: 7.5, rms: -30, peak: -10},
	}
	z := []float64{0, 0}
	hf := map[int]bool{7: true}

	scores := sig.score(records, z, hf, cfg)
	require.Contains(t, scores, 7)
	// transient 0.3 + high-frequency 0.3
	assert.InDelta(t, 0.6, scores[7], 1e-9)
}
