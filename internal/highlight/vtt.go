package highlight

import (
	"context"
	"math"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var vttTimeRe = regexp.MustCompile(
	`(\d{2}):(\d{2}):(\d{2})\.(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})\.(\d{3})`)

// Compiled pattern families. Scores accumulate per cue, then aggregate over
// a short trailing window.
var (
	excitementRe = regexp.MustCompile(`(?i)\b(amazing|incredible|unbelievable|insane|crazy|no\s+way|let'?s?\s+go|wow+|oh+\s+my+\s+god+|lets\s+go|omg)\b`)
	clutchRe     = regexp.MustCompile(`(?i)\b(clutch|last\s+(man|player|one)|1v[1-5]|match\s+point|overtime|this\s+is\s+it|sudden\s+death)\b`)
	shockRe      = regexp.MustCompile(`(?i)\b(what[!?]+|how[!?]+|are\s+you\s+serious|no\s+shot|that'?s\s+wild|ohhh+|no+\s+way)\b`)
	victoryRe    = regexp.MustCompile(`(?i)\b(win(s|ning|ner)?|victor(y|ious)|champion|we\s+got\s+it|that'?s\s+game|game\s+over|gg)\b`)
	negationRe   = regexp.MustCompile(`(?i)\b(not\s+amazing|not\s+good|no\s+hype|wasn'?t|not\s+even|boring)\b`)
	escalationRe = regexp.MustCompile(`(?i)\b(wait\s+wait|watch\s+this|look\s+at\s+this|right\s+now|here\s+we\s+go|oh\s+no)\b`)

	nonVTTCharRe = regexp.MustCompile(`[^a-z0-9!?\s']`)
)

// VTTSemanticSignal scores caption cues against excitement/clutch/shock/
// victory pattern families with negation and escalation modifiers.
type VTTSemanticSignal struct{}

func (s *VTTSemanticSignal) Name() string { return SignalVTTSemantic }

type vttCue struct {
	start float64
	end   float64
	text  string
}

func vttTime(h, m, sec, ms string) float64 {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(sec)
	mss, _ := strconv.Atoi(ms)
	return float64(hh)*3600 + float64(mm)*60 + float64(ss) + float64(mss)/1000
}

// normalizeCue lowercases, strips punctuation except ! and ?, and collapses
// characters repeated three or more times.
func normalizeCue(text string) string {
	text = strings.ToLower(text)
	text = nonVTTCharRe.ReplaceAllString(text, " ")
	var b strings.Builder
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run <= 2 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseVTT extracts cues with normalized text from WebVTT content.
func parseVTT(content string) []vttCue {
	var cues []vttCue
	currentStart, currentEnd := 0.0, 0.0
	for _, line := range splitLines(content) {
		trimmed := strings.TrimSpace(line)
		if m := vttTimeRe.FindStringSubmatch(trimmed); m != nil {
			currentStart = vttTime(m[1], m[2], m[3], m[4])
			currentEnd = vttTime(m[5], m[6], m[7], m[8])
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "WEBVTT") || isDigits(trimmed) {
			continue
		}
		cues = append(cues, vttCue{start: currentStart, end: currentEnd, text: normalizeCue(trimmed)})
	}
	return cues
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// scoreCueText scores one normalized cue against the pattern families.
func scoreCueText(text string, repetitionBoost, negationFilter bool) float64 {
	score := 0.0
	if excitementRe.MatchString(text) {
		score += 0.4
	}
	if clutchRe.MatchString(text) {
		score += 0.5
	}
	if shockRe.MatchString(text) {
		score += 0.4
	}
	if victoryRe.MatchString(text) {
		score += 0.6
	}
	if score == 0 {
		return 0
	}
	if repetitionBoost && strings.Count(text, "!") >= 2 {
		score += 0.2
	}
	if negationFilter && negationRe.MatchString(text) {
		score = math.Max(0, score-0.3)
	}
	return math.Min(1.0, score)
}

// Detect parses the VTT file and aggregates cue scores over the window.
func (s *VTTSemanticSignal) Detect(_ context.Context, cfg SignalConfig, in SignalInputs) (map[int]float64, error) {
	if in.VTTPath == "" {
		log.Info().Msg("vtt: no caption file, skipping")
		return map[int]float64{}, nil
	}
	content, err := os.ReadFile(in.VTTPath)
	if err != nil {
		log.Warn().Err(err).Msg("vtt: caption file unreadable")
		return map[int]float64{}, nil
	}

	cues := parseVTT(string(content))
	log.Info().Int("cues", len(cues)).Msg("vtt: parsed cues")
	return scoreVTTCues(cues, cfg), nil
}

// scoreVTTCues applies escalation boosts and sums scored cues whose start
// falls inside each cue's trailing window, assigning the capped total to
// every second the cue spans.
func scoreVTTCues(cues []vttCue, cfg SignalConfig) map[int]float64 {
	type scoredCue struct {
		start float64
		end   float64
		score float64
	}
	var scored []scoredCue

	for i, cue := range cues {
		s := scoreCueText(cue.text, cfg.RepetitionBoost, cfg.NegationFilter)
		if cfg.EscalationBoost && s > 0 {
			windowStart := cue.start - 2.0
			for _, prior := range cues {
				if prior.start >= windowStart && prior.start <= cue.start && escalationRe.MatchString(prior.text) {
					s = math.Min(1.0, s+0.2)
					break
				}
			}
		}
		if s > 0 {
			scored = append(scored, scoredCue{start: cue.start, end: cue.end, score: s})
		}
		// These scans are pure CPU; keep the scheduler breathing on big files.
		if i%4096 == 4095 {
			runtime.Gosched()
		}
	}

	scores := map[int]float64{}
	for i, c := range scored {
		windowEnd := c.start + cfg.WindowSeconds
		cumulative := c.score
		for j, other := range scored {
			if i != j && other.start >= c.start && other.start <= windowEnd {
				cumulative += other.score
			}
		}
		cumulative = math.Min(1.0, cumulative)
		for sec := int(c.start); sec <= int(c.end); sec++ {
			if cumulative > scores[sec] {
				scores[sec] = cumulative
			}
		}
	}

	log.Info().Int("seconds", len(scores)).Int("matchingCues", len(scored)).Msg("vtt: scored seconds")
	return scores
}
