package highlight

import (
	"math"
	"runtime"

	"github.com/rs/zerolog/log"
)

// ComputeScores fuses per-signal outputs into per-second aggregates with
// ±1s temporal fusion: each signal contributes its best score in the
// three-second window around the second, weighted, and counts toward
// cross-signal agreement when that window max clears 0.1.
func ComputeScores(outputs map[string]map[int]float64, weights map[string]float64, durationSeconds int) map[int]Aggregate {
	aggregate := map[int]Aggregate{}

	for sec := 0; sec < durationSeconds; sec++ {
		total := 0.0
		sigCount := 0
		for name, scores := range outputs {
			windowMax := math.Max(scores[sec-1], math.Max(scores[sec], scores[sec+1]))
			total += windowMax * weights[name]
			if windowMax > 0.1 {
				sigCount++
			}
		}
		if total > 0.01 {
			aggregate[sec] = Aggregate{Total: round4(total), SigCount: sigCount}
		}
		if sec%10000 == 9999 {
			runtime.Gosched()
		}
	}

	log.Info().Int("seconds", len(aggregate)).Msg("scoring: seconds scored with temporal fusion")
	return aggregate
}

// QualifySeconds keeps seconds meeting the threshold AND either multi-signal
// agreement or a strong enough total on their own.
func QualifySeconds(aggregate map[int]Aggregate, threshold float64) map[int]float64 {
	qualified := map[int]float64{}
	for sec, a := range aggregate {
		if a.Total < threshold {
			continue
		}
		if a.SigCount >= 2 || a.Total >= 0.3 {
			qualified[sec] = a.Total
		}
	}
	log.Info().
		Int("qualified", len(qualified)).
		Int("scored", len(aggregate)).
		Float64("threshold", threshold).
		Msg("qualification complete")
	return qualified
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
