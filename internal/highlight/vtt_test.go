package highlight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVTT = `WEBVTT

1
00:00:58.000 --> 00:01:00.500
wait wait watch this

2
00:01:01.000 --> 00:01:03.000
NO WAY that was amazing!!

3
00:02:00.000 --> 00:02:02.000
it was not amazing honestly

4
00:03:00.000 --> 00:03:02.000
just chatting about nothing
`

func vttCfg() SignalConfig {
	return SignalConfig{
		WindowSeconds:   3.0,
		RepetitionBoost: true,
		EscalationBoost: true,
		NegationFilter:  true,
	}
}

func TestParseVTT(t *testing.T) {
	t.Parallel()
	cues := parseVTT(sampleVTT)
	require.Len(t, cues, 4)
	assert.InDelta(t, 58.0, cues[0].start, 1e-9)
	assert.InDelta(t, 60.5, cues[0].end, 1e-9)
	assert.Equal(t, "wait wait watch this", cues[0].text)
}

func TestNormalizeCue(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "no way!!", normalizeCue("NO WAY!!!!"))
	assert.NotContains(t, normalizeCue("Hello, World."), ",")
	assert.NotContains(t, normalizeCue("Hello, World."), ".")
}

func TestScoreCueTextFamilies(t *testing.T) {
	t.Parallel()
	cases := []struct {
		text string
		min  float64
		max  float64
	}{
		{"that was amazing", 0.4, 0.4},
		{"what a clutch play", 0.5, 0.5},
		{"gg that's game", 0.6, 1.0},
		{"nothing interesting here", 0, 0},
	}
	for _, tc := range cases {
		s := scoreCueText(tc.text, false, false)
		assert.GreaterOrEqual(t, s, tc.min, tc.text)
		assert.LessOrEqual(t, s, tc.max, tc.text)
	}
}

func TestScoreCueTextRepetitionBoost(t *testing.T) {
	t.Parallel()
	base := scoreCueText("that was amazing", true, true)
	boosted := scoreCueText("that was amazing!! really!!", true, true)
	assert.Greater(t, boosted, base)
}

func TestScoreCueTextNegation(t *testing.T) {
	t.Parallel()
	plain := scoreCueText("that was amazing", false, false)
	negated := scoreCueText("that was not amazing", false, true)
	assert.InDelta(t, plain-0.3, negated, 1e-9)
}

func TestScoreVTTCuesEscalationAndWindow(t *testing.T) {
	t.Parallel()
	cues := parseVTT(sampleVTT)
	scores := scoreVTTCues(cues, vttCfg())

	// The excitement cue at 61s spans seconds 61-63 and scores on its own
	// (excitement, shock and the "!!" boost); "watch this" starts at 58s,
	// outside the 2s escalation look-back.
	require.Contains(t, scores, 61)
	assert.Greater(t, scores[61], 0.4)

	// The negated cue scores low; the neutral one not at all.
	assert.NotContains(t, scores, 180)
}

func TestScoreVTTCuesEscalationBoost(t *testing.T) {
	t.Parallel()
	cues := []vttCue{
		{start: 10, end: 10.5, text: "here we go"},
		{start: 11, end: 12, text: "that was amazing"},
	}
	scores := scoreVTTCues(cues, vttCfg())
	require.Contains(t, scores, 11)
	assert.InDelta(t, 0.6, scores[11], 1e-9)

	noBoost := vttCfg()
	noBoost.EscalationBoost = false
	scores = scoreVTTCues(cues, noBoost)
	assert.InDelta(t, 0.4, scores[11], 1e-9)
}

func TestScoreVTTCuesWindowAggregation(t *testing.T) {
	t.Parallel()
	cues := []vttCue{
		{start: 20, end: 21, text: "that was amazing"},
		{start: 22, end: 23, text: "what a clutch play"},
	}
	cfg := vttCfg()
	cfg.EscalationBoost = false
	scores := scoreVTTCues(cues, cfg)

	// The clutch cue at 22s falls in the first cue's trailing 3s window:
	// 0.4 + 0.5 = 0.9.
	require.Contains(t, scores, 20)
	assert.InDelta(t, 0.9, scores[20], 1e-9)
}

func TestVTTDetectMissingFileSkips(t *testing.T) {
	t.Parallel()
	sig := &VTTSemanticSignal{}
	scores, err := sig.Detect(t.Context(), vttCfg(), SignalInputs{VTTPath: ""})
	require.NoError(t, err)
	assert.Empty(t, scores)
}
