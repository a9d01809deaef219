package highlight

import (
	"sort"

	"github.com/rs/zerolog/log"
)

// ConsolidateClips merges qualified seconds into non-overlapping clip
// windows: cluster, buffer, merge, enforce duration bounds, rank and cap.
func ConsolidateClips(qualified map[int]float64, cfg ScoringConfig) []Clip {
	if len(qualified) == 0 {
		return nil
	}

	seconds := make([]int, 0, len(qualified))
	for sec := range qualified {
		seconds = append(seconds, sec)
	}
	sort.Ints(seconds)

	// Cluster seconds within minGap of each other.
	var clusters [][]int
	current := []int{seconds[0]}
	for i := 1; i < len(seconds); i++ {
		if seconds[i]-seconds[i-1] <= cfg.MinGap {
			current = append(current, seconds[i])
		} else {
			clusters = append(clusters, current)
			current = []int{seconds[i]}
		}
	}
	clusters = append(clusters, current)

	// Expand clusters into raw clip windows.
	raw := make([]Clip, 0, len(clusters))
	for _, cluster := range clusters {
		start := cluster[0] - cfg.ContextBuffer
		if start < 0 {
			start = 0
		}
		end := cluster[len(cluster)-1] + cfg.ContextBuffer

		peakScore, peakSecond := 0.0, cluster[0]
		for _, s := range cluster {
			if qualified[s] > peakScore {
				peakScore = qualified[s]
				peakSecond = s
			}
		}
		raw = append(raw, Clip{
			Start:      start,
			End:        end,
			Score:      round4(peakScore),
			PeakSecond: peakSecond,
		})
	}

	// Merge windows whose gap is within minGap.
	sort.Slice(raw, func(i, j int) bool { return raw[i].Start < raw[j].Start })
	var merged []Clip
	for _, clip := range raw {
		if len(merged) > 0 && clip.Start <= merged[len(merged)-1].End+cfg.MinGap {
			last := &merged[len(merged)-1]
			if clip.End > last.End {
				last.End = clip.End
			}
			if clip.Score > last.Score {
				last.Score = clip.Score
				last.PeakSecond = clip.PeakSecond
			}
		} else {
			merged = append(merged, clip)
		}
	}

	// Enforce duration bounds: expand short clips symmetrically, trim long
	// ones from the end.
	for i := range merged {
		duration := merged[i].End - merged[i].Start
		if duration < cfg.MinClipDuration {
			expand := (cfg.MinClipDuration - duration) / 2
			merged[i].Start -= expand
			if merged[i].Start < 0 {
				merged[i].Start = 0
			}
			merged[i].End = merged[i].Start + cfg.MinClipDuration
		} else if duration > cfg.MaxClipDuration {
			merged[i].End = merged[i].Start + cfg.MaxClipDuration
		}
	}

	// Rank by score, cap, re-sort chronologically.
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > cfg.MaxClips {
		merged = merged[:cfg.MaxClips]
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Start < merged[j].Start })
	for i := range merged {
		merged[i].Index = i
	}

	log.Info().
		Int("clusters", len(clusters)).
		Int("clips", len(merged)).
		Int("maxClips", cfg.MaxClips).
		Msg("consolidation complete")
	return merged
}
