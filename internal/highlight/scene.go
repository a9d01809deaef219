package highlight

import (
	"context"
	"math"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"
)

// The scdet filter runs at a very low threshold so near-all frames report a
// raw scene score; the actual trigger is adaptive (z-score over the
// distribution) rather than a static cutoff.
var (
	scdetRe = regexp.MustCompile(`lavfi\.scd\.score:\s*(\d+\.?\d*).*?lavfi\.scd\.time:\s*(\d+\.?\d*)`)
	meanYRe = regexp.MustCompile(`mean:\[(\d+)\s`)
)

// SceneChangeSignal detects cuts and flashes from scene scores plus frame
// brightness.
type SceneChangeSignal struct{}

func (s *SceneChangeSignal) Name() string { return SignalSceneChange }

type sceneFrame struct {
	ptsTime float64
	score   float64
	meanY   float64
}

// parseSceneFrames pairs scdet reports with the following showinfo
// brightness line.
func parseSceneFrames(stderr string) []sceneFrame {
	var frames []sceneFrame
	currentTime := 0.0
	currentScore := 0.0
	pending := false

	for _, line := range splitLines(stderr) {
		if m := scdetRe.FindStringSubmatch(line); m != nil {
			currentScore, _ = strconv.ParseFloat(m[1], 64)
			currentTime, _ = strconv.ParseFloat(m[2], 64)
			pending = true
			continue
		}
		if m := meanYRe.FindStringSubmatch(line); m != nil {
			meanY, _ := strconv.ParseFloat(m[1], 64)
			if pending && currentTime > 0 {
				frames = append(frames, sceneFrame{ptsTime: currentTime, score: currentScore, meanY: meanY})
				pending = false
			}
		}
	}
	return frames
}

func zscores(values []float64) []float64 {
	n := len(values)
	if n < 4 {
		return make([]float64, n)
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(n))
	if std < 1e-9 {
		return make([]float64, n)
	}
	out := make([]float64, n)
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}

// Detect collects scene scores via scdet+showinfo and scores events.
func (s *SceneChangeSignal) Detect(ctx context.Context, cfg SignalConfig, in SignalInputs) (map[int]float64, error) {
	stderr, err := runFFmpegStderr(ctx,
		"-i", in.ProxyPath,
		"-vf", "scale=160:-2,scdet=t=0.01,showinfo",
		"-f", "null", "-",
	)
	if err != nil {
		return nil, err
	}

	frames := parseSceneFrames(stderr)
	if len(frames) == 0 {
		log.Info().Msg("scene: no frames with scene scores detected")
		return map[int]float64{}, nil
	}

	maxScene := 0.0
	values := make([]float64, len(frames))
	for i, f := range frames {
		values[i] = f.score
		if f.score > maxScene {
			maxScene = f.score
		}
	}
	log.Info().Int("frames", len(frames)).Float64("maxScene", maxScene).Msg("scene: candidate frames")

	return s.score(frames, zscores(values), cfg), nil
}

// score walks frames in order applying the dynamic minimum interval, the
// z-or-raw trigger and the luminance boost.
func (s *SceneChangeSignal) score(frames []sceneFrame, z []float64, cfg SignalConfig) map[int]float64 {
	scores := map[int]float64{}
	lastTime := -999.0
	var prevMeanY *float64

	for i, f := range frames {
		graded := math.Min(1.0, f.score/0.6)

		minInterval := 2.0
		if cfg.DynamicInterval {
			minInterval = math.Max(1.0, 2.0-graded)
		}
		if f.ptsTime-lastTime < minInterval {
			y := f.meanY
			prevMeanY = &y
			continue
		}

		// Trigger: z-score spike OR raw value clearly high.
		if z[i] <= cfg.ZScoreThreshold && graded < 0.6 {
			y := f.meanY
			prevMeanY = &y
			continue
		}

		eventScore := graded * 0.4
		if z[i] > cfg.ZScoreThreshold {
			eventScore = 0.6
		}

		// Luminance boost: sudden brightness shift (flashbang, explosion).
		if cfg.LuminanceBoost && prevMeanY != nil {
			if math.Abs(f.meanY-*prevMeanY) > cfg.LuminanceDeltaThreshold {
				eventScore = math.Min(1.0, eventScore+0.3)
			}
		}

		eventScore = math.Min(1.0, eventScore)
		if eventScore > 0 {
			sec := int(f.ptsTime)
			if eventScore > scores[sec] {
				scores[sec] = eventScore
			}
			lastTime = f.ptsTime
		}
		y := f.meanY
		prevMeanY = &y
	}

	log.Info().Int("events", len(scores)).Float64("zThreshold", cfg.ZScoreThreshold).Msg("scene: events")
	return scores
}
