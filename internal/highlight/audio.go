package highlight

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Any dB value below this is treated as silence and clamped.
const silenceFloorDB = -90.0

// Samples below this level are excluded from the rolling baseline so
// steady silence cannot skew it.
const silenceThreshDB = -50.0

// Density control: at most this many confirmed spike seconds per rolling
// minute before scores get scaled down.
const maxSpikesPerMinute = 45

var (
	rmsRe  = regexp.MustCompile(`lavfi\.astats\.Overall\.RMS_level=(.*)`)
	peakRe = regexp.MustCompile(`lavfi\.astats\.Overall\.Peak_level=(.*)`)
)

// AudioSpikeSignal detects loudness transients with a rolling z-score over
// the RMS distribution, a peak-vs-RMS transient check and an optional
// high-passed second pass.
type AudioSpikeSignal struct{}

func (s *AudioSpikeSignal) Name() string { return SignalAudioSpike }

type audioSample struct {
	ts   float64
	rms  float64
	peak float64
}

func toDB(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return silenceFloorDB
	}
	return math.Max(v, silenceFloorDB)
}

// parseAstats extracts (ts, rms, peak) triples from ffmpeg ametadata output.
// Timestamps advance one hop per completed RMS+peak pair.
func parseAstats(stderr string, hop float64) []audioSample {
	var samples []audioSample
	currentTime := 0.0
	var rms, peak *float64

	for _, line := range strings.Split(stderr, "\n") {
		if m := rmsRe.FindStringSubmatch(line); m != nil {
			v := toDB(m[1])
			rms = &v
		}
		if m := peakRe.FindStringSubmatch(line); m != nil {
			v := toDB(m[1])
			peak = &v
		}
		if rms != nil && peak != nil {
			samples = append(samples, audioSample{ts: currentTime, rms: *rms, peak: *peak})
			currentTime += hop
			rms, peak = nil, nil
		}
	}
	return samples
}

// rollingZScore computes a centered-window z-score per sample, ignoring
// silence-floor samples when building the baseline. Windows with fewer than
// four active samples, or a std under 0.5 dB, yield zero.
func rollingZScore(values []float64, windowSize int, silenceThresh float64) []float64 {
	n := len(values)
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i - windowSize/2
		if start < 0 {
			start = 0
		}
		end := i + windowSize/2 + 1
		if end > n {
			end = n
		}

		var active []float64
		for _, v := range values[start:end] {
			if v >= silenceThresh {
				active = append(active, v)
			}
		}
		if len(active) < 4 {
			continue
		}
		mean := 0.0
		for _, v := range active {
			mean += v
		}
		mean /= float64(len(active))
		variance := 0.0
		for _, v := range active {
			variance += (v - mean) * (v - mean)
		}
		std := math.Sqrt(variance / float64(len(active)))
		if std < 0.5 {
			continue
		}
		z[i] = (values[i] - mean) / std
	}
	return z
}

// collectRMSSamples runs the astats+ametadata filter chain and parses the
// streamed key=value records off stderr.
func (s *AudioSpikeSignal) collectRMSSamples(ctx context.Context, proxyPath string, hop float64, extraAF string) ([]audioSample, error) {
	reset := int(math.Round(1.0 / hop))
	if reset < 1 {
		reset = 1
	}
	afFilter := fmt.Sprintf(
		"astats=metadata=1:reset=%d,"+
			"ametadata=print:key=lavfi.astats.Overall.RMS_level,"+
			"ametadata=print:key=lavfi.astats.Overall.Peak_level",
		reset)
	if extraAF != "" {
		afFilter = extraAF + "," + afFilter
	}

	stderr, err := runFFmpegStderr(ctx, "-i", proxyPath, "-af", afFilter, "-f", "null", "-")
	if err != nil {
		return nil, err
	}
	samples := parseAstats(stderr, hop)
	log.Info().Int("samples", len(samples)).Float64("hop", hop).Msg("audio: parsed astats blocks")
	return samples, nil
}

// Detect scores per-hop, confirms spikes with a short agreement window, then
// applies density control.
func (s *AudioSpikeSignal) Detect(ctx context.Context, cfg SignalConfig, in SignalInputs) (map[int]float64, error) {
	records, err := s.collectRMSSamples(ctx, in.ProxyPath, cfg.HopSize, "")
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		log.Warn().Msg("audio: no astats samples parsed, skipping")
		return map[int]float64{}, nil
	}

	rmsValues := make([]float64, len(records))
	for i, r := range records {
		rmsValues[i] = r.rms
	}
	samplesPerWindow := 60
	if cfg.HopSize > 0 {
		samplesPerWindow = int(30.0 / cfg.HopSize)
	}
	rmsZ := rollingZScore(rmsValues, samplesPerWindow, silenceThreshDB)

	// Optional high-frequency pass at a more inclusive threshold.
	hfSpikeSeconds := map[int]bool{}
	if cfg.HighFreqBoost {
		hfThreshold := cfg.ZScoreThreshold * 0.75
		hfRecords, err := s.collectRMSSamples(ctx, in.ProxyPath, cfg.HopSize, "highpass=f=2000")
		if err != nil {
			log.Debug().Err(err).Msg("audio: high-frequency pass failed (non-fatal)")
		} else if len(hfRecords) > 0 {
			hfRMS := make([]float64, len(hfRecords))
			for i, r := range hfRecords {
				hfRMS[i] = r.rms
			}
			hfZ := rollingZScore(hfRMS, samplesPerWindow, silenceThreshDB)
			for i, r := range hfRecords {
				if hfZ[i] > hfThreshold {
					hfSpikeSeconds[int(r.ts)] = true
				}
			}
			log.Info().Int("seconds", len(hfSpikeSeconds)).Msg("audio: high-frequency spike seconds")
		}
	}

	return s.score(records, rmsZ, hfSpikeSeconds, cfg), nil
}

// score turns per-hop evidence into confirmed per-second scores.
func (s *AudioSpikeSignal) score(records []audioSample, rmsZ []float64, hfSpikes map[int]bool, cfg SignalConfig) map[int]float64 {
	type hopScore struct {
		ts    float64
		score float64
	}
	var hopScores []hopScore
	for i, r := range records {
		score := 0.0
		if rmsZ[i] > cfg.ZScoreThreshold {
			score += 0.6
		}
		// Transient: peak much louder than sustained RMS.
		if math.Abs(r.peak-r.rms) > cfg.TransientDeltaDB {
			score += 0.3
		}
		if hfSpikes[int(r.ts)] {
			score += 0.3
		}
		if score > 0 {
			hopScores = append(hopScores, hopScore{ts: r.ts, score: math.Min(1.0, score)})
		}
	}

	// A second is confirmed only when enough scored hops land in its window.
	confirmed := map[int]float64{}
	for _, h := range hopScores {
		windowEnd := h.ts + cfg.WindowSeconds
		var best float64
		inWindow := 0
		for _, other := range hopScores {
			if other.ts >= h.ts && other.ts <= windowEnd {
				inWindow++
				if other.score > best {
					best = other.score
				}
			}
		}
		if inWindow >= cfg.MinSpikeCount {
			sec := int(h.ts)
			if best > confirmed[sec] {
				confirmed[sec] = best
			}
		}
	}

	// Density control: scale down past maxSpikesPerMinute per rolling minute.
	seconds := make([]int, 0, len(confirmed))
	for sec := range confirmed {
		seconds = append(seconds, sec)
	}
	sortInts(seconds)

	final := map[int]float64{}
	for _, sec := range seconds {
		recent := 0
		for s2, v := range final {
			if sec-60 < s2 && s2 <= sec && v > 0.1 {
				recent++
			}
		}
		scale := 1.0
		if recent > maxSpikesPerMinute {
			scale = math.Max(0.1, float64(maxSpikesPerMinute)/float64(recent))
		}
		final[sec] = confirmed[sec] * scale
	}

	high := 0
	for _, v := range final {
		if v > 0.1 {
			high++
		}
	}
	log.Info().Int("events", high).Float64("zThreshold", cfg.ZScoreThreshold).Msg("audio: confirmed spike events")
	return final
}
