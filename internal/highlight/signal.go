package highlight

import "context"

// SignalInputs carries everything a detector may need for one job.
type SignalInputs struct {
	ProxyPath     string
	ChatPath      string
	VTTPath       string
	Duration      float64
	TargetSeconds []int // OCR second pass only
}

// Signal produces a sparse second→score map from one observable.
type Signal interface {
	Name() string
	Detect(ctx context.Context, cfg SignalConfig, in SignalInputs) (map[int]float64, error)
}

// Signal kinds. The registry is a closed set: unknown names in the tuning
// file are skipped.
const (
	SignalAudioSpike  = "audio_spike"
	SignalSceneChange = "scene_change"
	SignalChatSpike   = "chat_spike"
	SignalVTTSemantic = "vtt_semantic"
	SignalOCRKeyword  = "ocr_keyword"
)

// NewSignal resolves a signal kind to its detector.
func NewSignal(kind string) (Signal, bool) {
	switch kind {
	case SignalAudioSpike:
		return &AudioSpikeSignal{}, true
	case SignalSceneChange:
		return &SceneChangeSignal{}, true
	case SignalChatSpike:
		return &ChatSpikeSignal{}, true
	case SignalVTTSemantic:
		return &VTTSemanticSignal{}, true
	case SignalOCRKeyword:
		return &OCRKeywordSignal{}, true
	default:
		return nil, false
	}
}
