package highlight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"contentcore/internal/observability"
)

// ocrCandidateBuffer widens each flagged second by this many seconds on
// both sides when selecting the OCR second-pass frame set. Independent of
// the consolidation context buffer.
const ocrCandidateBuffer = 5

// ocrCandidateFloor is the initial fused score a second must reach to seed
// an OCR candidate window.
const ocrCandidateFloor = 0.1

// Runner executes highlight jobs. One job runs at a time per process; the
// consumer enforces per-video exclusivity with the distributed lock.
type Runner struct {
	tuning  TuningConfig
	storage *Storage
	ai      Chatter
	metrics *observability.Metrics
}

// NewRunner builds a job runner with the process-wide tuning config.
func NewRunner(tuning TuningConfig, storage *Storage, ai Chatter, metrics *observability.Metrics) *Runner {
	return &Runner{tuning: tuning, storage: storage, ai: ai, metrics: metrics}
}

// Run executes one highlight job through the pipeline states. The returned
// state is one of the terminal states: EMPTY, COMPLETE, DEGRADED or FAILED.
func (r *Runner) Run(ctx context.Context, payload JobPayload) (Outcome, State) {
	start := time.Now()
	videoID := payload.VideoID
	warnings := []string{}
	state := StateReceived

	log.Info().Str("videoId", videoID).Msg("starting highlight job")

	tuning := r.tuning
	if payload.ConfigPath != "" {
		tuning = LoadTuning(payload.ConfigPath)
	}

	governor := NewGovernor(tuning.Governance, r.metrics)
	governor.ApplyNice()

	outcome := func(clipCount int, manifestPath string, vttUsed bool, err error) Outcome {
		o := Outcome{
			VideoID:            videoID,
			ClipCount:          clipCount,
			HighlightsJSONPath: manifestPath,
			DurationMS:         time.Since(start).Milliseconds(),
			VTTUsed:            vttUsed,
			Warnings:           warnings,
		}
		if err != nil {
			o.Error = err.Error()
		}
		return o
	}

	fail := func(err error) (Outcome, State) {
		log.Error().Err(err).Str("videoId", videoID).Str("state", string(state)).Msg("highlight job failed")
		r.metrics.HighlightJobs.WithLabelValues("error").Inc()
		return outcome(0, "", false, err), StateFailed
	}

	// Resolve inputs. The proxy is mandatory; the source degrades to the
	// proxy when missing.
	if err := governor.WaitUntilSafe(ctx); err != nil {
		return fail(err)
	}
	downloadDir, err := os.MkdirTemp("", fmt.Sprintf("highlight_%s_dl_", videoID))
	if err != nil {
		return fail(fmt.Errorf("create download dir: %w", err))
	}
	defer os.RemoveAll(downloadDir)

	proxyPath, err := r.resolveVideo(ctx, payload.Proxy480pPath, filepath.Join(downloadDir, "proxy.mp4"))
	if err != nil {
		return fail(fmt.Errorf("no proxy video available: %w", err))
	}
	sourcePath, err := r.resolveVideo(ctx, payload.SourceVideoPath, filepath.Join(downloadDir, "source.mp4"))
	if err != nil {
		log.Warn().Err(err).Msg("source video unavailable, cutting from proxy")
		sourcePath = proxyPath
	}

	// PROBING
	state = StateProbing
	duration, err := ProbeDuration(ctx, proxyPath)
	if err != nil || duration <= 0 {
		return fail(fmt.Errorf("invalid video duration: %v (%.1fs)", err, duration))
	}

	vttPath := r.storage.FindVTT(ctx, videoID)
	r.metrics.VTTUsed.WithLabelValues(fmt.Sprint(vttPath != "")).Inc()

	inputs := SignalInputs{
		ProxyPath: proxyPath,
		ChatPath:  payload.ChatPath,
		VTTPath:   vttPath,
		Duration:  duration,
	}

	// SIGNAL_PASS_1: every enabled signal except the expensive OCR pass.
	state = StateSignalPass1
	signalOutputs := map[string]map[int]float64{}
	signalWeights := map[string]float64{}
	for name, sigCfg := range tuning.Signals {
		if !sigCfg.Enabled || name == SignalOCRKeyword {
			continue
		}
		sig, ok := NewSignal(name)
		if !ok {
			continue
		}
		signalWeights[name] = sigCfg.Weight
		if err := governor.WaitUntilSafe(ctx); err != nil {
			return fail(err)
		}
		sigStart := time.Now()
		result, err := sig.Detect(ctx, sigCfg, inputs)
		r.metrics.SignalSeconds.WithLabelValues(name).Observe(time.Since(sigStart).Seconds())
		if err != nil {
			r.metrics.SignalFailures.WithLabelValues(name).Inc()
			log.Error().Err(err).Str("signal", name).Msg("pass 1 signal failed")
			continue
		}
		signalOutputs[name] = result
		log.Info().Str("signal", name).Dur("took", time.Since(sigStart)).Msg("pass 1 signal complete")
	}

	// SIGNAL_PASS_2: OCR only on the seconds the cheap signals flagged.
	if ocrCfg, ok := tuning.Signals[SignalOCRKeyword]; ok && ocrCfg.Enabled {
		state = StateSignalPass2
		initial := ComputeScores(signalOutputs, signalWeights, int(duration))
		candidates := ocrCandidates(initial, int(duration))

		signalWeights[SignalOCRKeyword] = ocrCfg.Weight
		sig, _ := NewSignal(SignalOCRKeyword)
		if err := governor.WaitUntilSafe(ctx); err != nil {
			return fail(err)
		}
		ocrInputs := inputs
		ocrInputs.TargetSeconds = candidates
		sigStart := time.Now()
		result, err := sig.Detect(ctx, ocrCfg, ocrInputs)
		r.metrics.SignalSeconds.WithLabelValues(SignalOCRKeyword).Observe(time.Since(sigStart).Seconds())
		if err != nil {
			r.metrics.SignalFailures.WithLabelValues(SignalOCRKeyword).Inc()
			log.Error().Err(err).Msg("pass 2 OCR failed")
		} else {
			signalOutputs[SignalOCRKeyword] = result
			log.Info().Int("candidates", len(candidates)).Dur("took", time.Since(sigStart)).Msg("pass 2 OCR complete")
		}
	}

	// SCORING
	state = StateScoring
	aggregate := ComputeScores(signalOutputs, signalWeights, int(duration))
	qualified := QualifySeconds(aggregate, tuning.Scoring.QualificationThreshold)
	if len(qualified) == 0 {
		log.Info().Str("videoId", videoID).Msg("no qualifying seconds, zero clips")
		r.metrics.HighlightJobs.WithLabelValues("empty").Inc()
		return outcome(0, "", vttPath != "", nil), StateEmpty
	}

	// CONSOLIDATED
	state = StateConsolidated
	clips := ConsolidateClips(qualified, tuning.Scoring)
	if len(clips) == 0 {
		r.metrics.HighlightJobs.WithLabelValues("empty").Inc()
		return outcome(0, "", vttPath != "", nil), StateEmpty
	}

	// EXTRACTING
	state = StateExtracting
	if err := governor.WaitUntilSafe(ctx); err != nil {
		return fail(err)
	}
	tempDir, err := os.MkdirTemp("", fmt.Sprintf("highlight_%s_", videoID))
	if err != nil {
		return fail(fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(tempDir)

	extracted := ExtractAll(ctx, sourcePath, clips, tempDir, tuning.Extraction)
	if len(extracted) == 0 {
		return fail(fmt.Errorf("no clips could be extracted"))
	}
	if len(extracted) < len(clips) {
		warnings = append(warnings, fmt.Sprintf("extraction skipped %d of %d clips", len(clips)-len(extracted), len(clips)))
	}

	// Sample each signal at the clip's peak second for the manifest.
	for i := range extracted {
		signals := map[string]float64{}
		for name, scores := range signalOutputs {
			signals[name] = scores[extracted[i].PeakSecond]
		}
		extracted[i].Signals = signals
	}

	// ENRICHING
	state = StateEnriching
	vttContent := ""
	if vttPath != "" {
		if data, err := os.ReadFile(vttPath); err == nil {
			vttContent = string(data)
		}
	}
	videoTitle := payload.VideoTitle
	if videoTitle == "" {
		videoTitle = "Untitled Video"
	}
	videoCategory := payload.VideoCategory
	if videoCategory == "" {
		videoCategory = "Unknown"
	}
	extracted, enrichErr := EnrichClips(ctx, r.ai, extracted, videoTitle, payload.VideoDescription, videoCategory, vttContent)
	if enrichErr != nil {
		warnings = append(warnings, fmt.Sprintf("enrichment partial failure: %v", enrichErr))
	}
	r.metrics.IntelligenceCalls.WithLabelValues("title_gen").Add(float64(len(extracted)))

	// UPLOADING
	state = StateUploading
	uploaded, err := r.storage.UploadClips(ctx, videoID, extracted)
	if err != nil {
		return fail(fmt.Errorf("upload clips: %w", err))
	}
	manifestPath, err := r.storage.UploadManifest(ctx, videoID, uploaded)
	if err != nil {
		return fail(fmt.Errorf("upload manifest: %w", err))
	}

	r.metrics.ClipsGenerated.Add(float64(len(uploaded)))
	r.metrics.HighlightSeconds.Observe(time.Since(start).Seconds())

	final := StateComplete
	if len(warnings) > 0 {
		final = StateDegraded
		r.metrics.HighlightJobs.WithLabelValues("degraded").Inc()
	} else {
		r.metrics.HighlightJobs.WithLabelValues("success").Inc()
	}

	log.Info().
		Str("videoId", videoID).
		Int("clips", len(uploaded)).
		Dur("took", time.Since(start)).
		Str("state", string(final)).
		Msg("highlight job finished")
	return outcome(len(uploaded), manifestPath, vttPath != "", nil), final
}

// resolveVideo makes a payload video path usable locally: URL and absolute
// paths pass through, volume-relative paths resolve against the mount, and
// anything else downloads from the blob store.
func (r *Runner) resolveVideo(ctx context.Context, storagePath, downloadTo string) (string, error) {
	if storagePath == "" {
		return "", fmt.Errorf("no path in payload")
	}
	resolved := r.storage.ResolvePath(storagePath)
	if isURL(resolved) {
		return resolved, nil
	}
	if info, err := os.Stat(resolved); err == nil && !info.IsDir() {
		return resolved, nil
	}
	return r.storage.FetchVideo(ctx, storagePath, downloadTo)
}

func isURL(p string) bool {
	return len(p) > 7 && (p[:7] == "http://" || (len(p) > 8 && p[:8] == "https://"))
}

// ocrCandidates selects the union of ±ocrCandidateBuffer windows around
// every second whose initial fused total reached the floor.
func ocrCandidates(initial map[int]Aggregate, duration int) []int {
	set := map[int]bool{}
	for sec, a := range initial {
		if a.Total < ocrCandidateFloor {
			continue
		}
		lo := sec - ocrCandidateBuffer
		if lo < 0 {
			lo = 0
		}
		hi := sec + ocrCandidateBuffer
		if hi > duration {
			hi = duration
		}
		for s := lo; s <= hi; s++ {
			set[s] = true
		}
	}
	out := make([]int, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sortInts(out)
	return out
}
