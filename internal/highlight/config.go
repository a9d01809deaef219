package highlight

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// TuningConfig is the YAML tuning file for the highlight pipeline. Missing
// files fall back to built-in defaults; missing sections inherit per-field
// defaults so partial files stay valid.
type TuningConfig struct {
	Scoring    ScoringConfig           `yaml:"scoring"`
	Signals    map[string]SignalConfig `yaml:"signals"`
	Governance GovernanceTuning        `yaml:"governance"`
	Extraction ExtractionConfig        `yaml:"extraction"`
}

type ScoringConfig struct {
	QualificationThreshold float64 `yaml:"qualification_threshold"`
	MaxClips               int     `yaml:"max_clips"`
	MinClipDuration        int     `yaml:"min_clip_duration"`
	MaxClipDuration        int     `yaml:"max_clip_duration"`
	ContextBuffer          int     `yaml:"context_buffer"`
	MinGap                 int     `yaml:"min_gap"`
}

// SignalConfig carries the union of all per-signal knobs; each signal reads
// the fields it understands.
type SignalConfig struct {
	Enabled bool    `yaml:"enabled"`
	Weight  float64 `yaml:"weight"`

	// audio_spike
	HopSize          float64 `yaml:"hop_size"`
	ZScoreThreshold  float64 `yaml:"zscore_threshold"`
	TransientDeltaDB float64 `yaml:"transient_delta_db"`
	HighFreqBoost    bool    `yaml:"highfreq_boost"`
	WindowSeconds    float64 `yaml:"window_seconds"`
	MinSpikeCount    int     `yaml:"min_spike_count"`

	// scene_change
	BaseThreshold           float64 `yaml:"base_threshold"`
	DynamicInterval         bool    `yaml:"dynamic_interval"`
	LuminanceBoost          bool    `yaml:"luminance_boost"`
	LuminanceDeltaThreshold float64 `yaml:"luminance_delta_threshold"`

	// chat_spike
	BucketSize      int     `yaml:"bucket_size"`
	SpikeMultiplier float64 `yaml:"spike_multiplier"`

	// vtt_semantic
	RepetitionBoost bool `yaml:"repetition_boost"`
	EscalationBoost bool `yaml:"escalation_boost"`
	NegationFilter  bool `yaml:"negation_filter"`

	// ocr_keyword
	ConfidenceThreshold int     `yaml:"confidence_threshold"`
	SampleInterval      float64 `yaml:"sample_interval"`
	MaxFrames           int     `yaml:"max_frames"`
}

type GovernanceTuning struct {
	MaxCPUPercent int `yaml:"max_cpu_percent"`
	MaxMemoryMB   int `yaml:"max_memory_mb"`
	PollInterval  int `yaml:"poll_interval"`
	JobTimeout    int `yaml:"job_timeout"`
	NicePriority  int `yaml:"nice_priority"`
}

type ExtractionConfig struct {
	StreamCopy      bool `yaml:"stream_copy"`
	ThumbnailWidth  int  `yaml:"thumbnail_width"`
	ThumbnailHeight int  `yaml:"thumbnail_height"`
}

// LoadTuning reads the YAML tuning file, falling back to built-in defaults
// when the file is missing or unreadable.
func LoadTuning(path string) TuningConfig {
	cfg := DefaultTuning()
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Str("path", path).Msg("highlight config not found, using built-in defaults")
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Error().Err(err).Str("path", path).Msg("highlight config unreadable, using built-in defaults")
		return DefaultTuning()
	}
	cfg.applyDefaults()
	log.Info().Str("path", path).Msg("loaded highlight config")
	return cfg
}

// DefaultTuning is the built-in fallback configuration.
func DefaultTuning() TuningConfig {
	return TuningConfig{
		Scoring: ScoringConfig{
			QualificationThreshold: 0.35,
			MaxClips:               5,
			MinClipDuration:        8,
			MaxClipDuration:        60,
			ContextBuffer:          3,
			MinGap:                 5,
		},
		Signals: map[string]SignalConfig{
			"audio_spike": {
				Enabled: true, Weight: 0.30,
				HopSize: 0.5, ZScoreThreshold: 2.0, TransientDeltaDB: 6.0,
				WindowSeconds: 2.0, MinSpikeCount: 2,
			},
			"scene_change": {
				Enabled: true, Weight: 0.25,
				BaseThreshold: 0.01, ZScoreThreshold: 2.0,
				DynamicInterval: true, LuminanceBoost: true, LuminanceDeltaThreshold: 20.0,
			},
			"chat_spike": {
				Enabled: true, Weight: 0.20,
				BucketSize: 10, SpikeMultiplier: 2.5,
			},
			"vtt_semantic": {
				Enabled: true, Weight: 0.10,
				WindowSeconds: 3.0, RepetitionBoost: true, EscalationBoost: true, NegationFilter: true,
			},
			"ocr_keyword": {
				Enabled: false, Weight: 0.15,
				ConfidenceThreshold: 60, SampleInterval: 1.0, MaxFrames: 450,
			},
		},
		Governance: GovernanceTuning{
			MaxCPUPercent: 60,
			MaxMemoryMB:   900,
			PollInterval:  10,
			JobTimeout:    1800,
			NicePriority:  15,
		},
		Extraction: ExtractionConfig{
			StreamCopy:      true,
			ThumbnailWidth:  640,
			ThumbnailHeight: 360,
		},
	}
}

// applyDefaults backfills zero-valued knobs after a partial YAML load.
func (c *TuningConfig) applyDefaults() {
	def := DefaultTuning()
	if c.Scoring.QualificationThreshold == 0 {
		c.Scoring.QualificationThreshold = def.Scoring.QualificationThreshold
	}
	if c.Scoring.MaxClips == 0 {
		c.Scoring.MaxClips = def.Scoring.MaxClips
	}
	if c.Scoring.MinClipDuration == 0 {
		c.Scoring.MinClipDuration = def.Scoring.MinClipDuration
	}
	if c.Scoring.MaxClipDuration == 0 {
		c.Scoring.MaxClipDuration = def.Scoring.MaxClipDuration
	}
	if c.Scoring.ContextBuffer == 0 {
		c.Scoring.ContextBuffer = def.Scoring.ContextBuffer
	}
	if c.Scoring.MinGap == 0 {
		c.Scoring.MinGap = def.Scoring.MinGap
	}
	if c.Governance.MaxCPUPercent == 0 {
		c.Governance.MaxCPUPercent = def.Governance.MaxCPUPercent
	}
	if c.Governance.MaxMemoryMB == 0 {
		c.Governance.MaxMemoryMB = def.Governance.MaxMemoryMB
	}
	if c.Governance.PollInterval == 0 {
		c.Governance.PollInterval = def.Governance.PollInterval
	}
	if c.Governance.JobTimeout == 0 {
		c.Governance.JobTimeout = def.Governance.JobTimeout
	}
	if c.Governance.NicePriority == 0 {
		c.Governance.NicePriority = def.Governance.NicePriority
	}
	if c.Extraction.ThumbnailWidth == 0 {
		c.Extraction.ThumbnailWidth = def.Extraction.ThumbnailWidth
	}
	if c.Extraction.ThumbnailHeight == 0 {
		c.Extraction.ThumbnailHeight = def.Extraction.ThumbnailHeight
	}
	if c.Signals == nil {
		c.Signals = def.Signals
	}
	for name, sig := range c.Signals {
		d, ok := def.Signals[name]
		if !ok {
			continue
		}
		if sig.HopSize == 0 {
			sig.HopSize = d.HopSize
		}
		if sig.ZScoreThreshold == 0 {
			sig.ZScoreThreshold = d.ZScoreThreshold
		}
		if sig.TransientDeltaDB == 0 {
			sig.TransientDeltaDB = d.TransientDeltaDB
		}
		if sig.WindowSeconds == 0 {
			sig.WindowSeconds = d.WindowSeconds
		}
		if sig.MinSpikeCount == 0 {
			sig.MinSpikeCount = d.MinSpikeCount
		}
		if sig.BaseThreshold == 0 {
			sig.BaseThreshold = d.BaseThreshold
		}
		if sig.LuminanceDeltaThreshold == 0 {
			sig.LuminanceDeltaThreshold = d.LuminanceDeltaThreshold
		}
		if sig.BucketSize == 0 {
			sig.BucketSize = d.BucketSize
		}
		if sig.SpikeMultiplier == 0 {
			sig.SpikeMultiplier = d.SpikeMultiplier
		}
		if sig.ConfidenceThreshold == 0 {
			sig.ConfidenceThreshold = d.ConfidenceThreshold
		}
		if sig.SampleInterval == 0 {
			sig.SampleInterval = d.SampleInterval
		}
		if sig.MaxFrames == 0 {
			sig.MaxFrames = d.MaxFrames
		}
		c.Signals[name] = sig
	}
}

// String renders the scoring block for log audit lines.
func (c ScoringConfig) String() string {
	return fmt.Sprintf("threshold=%.2f clips=%d dur=[%d,%d] buffer=%d gap=%d",
		c.QualificationThreshold, c.MaxClips, c.MinClipDuration, c.MaxClipDuration, c.ContextBuffer, c.MinGap)
}
