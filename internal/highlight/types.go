// Package highlight implements the video highlight-generation pipeline: a
// lock-guarded, resource-governed worker that fuses independent per-second
// signals into ranked, non-overlapping clips.
package highlight

// JobPayload is the Kafka request for one highlight job.
type JobPayload struct {
	VideoID          string `json:"videoId"`
	Proxy480pPath    string `json:"proxy480pPath"`
	SourceVideoPath  string `json:"sourceVideoPath"`
	ChatPath         string `json:"chatPath,omitempty"`
	ConfigPath       string `json:"configPath,omitempty"`
	VideoTitle       string `json:"videoTitle,omitempty"`
	VideoDescription string `json:"videoDescription,omitempty"`
	VideoCategory    string `json:"videoCategory,omitempty"`
	OwnerID          string `json:"ownerId"`
}

// Clip is one consolidated highlight window.
type Clip struct {
	Index        int                `json:"index"`
	Start        int                `json:"start"`
	End          int                `json:"end"`
	Score        float64            `json:"score"`
	PeakSecond   int                `json:"peak_second"`
	Title        string             `json:"title,omitempty"`
	Signals      map[string]float64 `json:"signals,omitempty"`
	ClipURL      string             `json:"clipUrl"`
	ThumbnailURL string             `json:"thumbnailUrl"`

	ClipPath      string `json:"-"`
	ThumbnailPath string `json:"-"`
}

// Outcome is the completion/degraded/failed event body.
type Outcome struct {
	VideoID            string   `json:"videoId"`
	ClipCount          int      `json:"clipCount"`
	HighlightsJSONPath string   `json:"highlightsJsonPath"`
	DurationMS         int64    `json:"durationMs"`
	VTTUsed            bool     `json:"vttUsed"`
	Warnings           []string `json:"warnings"`
	Error              string   `json:"error,omitempty"`
}

// Aggregate is the fused per-second score: weighted total plus how many
// signals agreed above the noise floor.
type Aggregate struct {
	Total    float64
	SigCount int
}

// Job states, in pipeline order.
type State string

const (
	StateReceived     State = "RECEIVED"
	StateLocked       State = "LOCKED"
	StateProbing      State = "PROBING"
	StateSignalPass1  State = "SIGNAL_PASS_1"
	StateSignalPass2  State = "SIGNAL_PASS_2"
	StateScoring      State = "SCORING"
	StateConsolidated State = "CONSOLIDATED"
	StateEmpty        State = "EMPTY"
	StateExtracting   State = "EXTRACTING"
	StateEnriching    State = "ENRICHING"
	StateUploading    State = "UPLOADING"
	StateComplete     State = "COMPLETE"
	StateDegraded     State = "DEGRADED"
	StateFailed       State = "FAILED"
)
