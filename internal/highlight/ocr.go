package highlight

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Compiled OCR pattern families. Killfeed and PvP patterns match the raw
// text (casing matters for player names); everything else matches the
// normalized text.
var (
	ocrCombatRe    = regexp.MustCompile(`(?i)\b(kill(ed|ing)?|eliminat(ed|ion|e)?|slain|defeat(ed)?|down(ed)?|knock(ed)?|finish(ed)?|head\s?shot|ace|clutch)\b`)
	ocrVictoryRe   = regexp.MustCompile(`(?i)\b(victor(y|ious)?|win(s|ner|ning)?|defeat(ed)?|champion|game\s+over|round\s+win|mvp|flawless|match\s+complete)\b`)
	ocrIntensityRe = regexp.MustCompile(`(?i)\b(1v[1-5]|last\s+player|overtime|sudden\s+death|match\s+point|ultimate|critical|first\s+blood|penta|multi\s?kill)\b`)
	ocrSportsRe    = regexp.MustCompile(`(?i)\b(goal|scor(ed|ing)?|touchdown|home\s+run|hat\s+trick|strike)\b`)
	ocrKillfeedRe  = regexp.MustCompile(`(\b[A-Z][a-zA-Z0-9_]{2,15}\b\s*[^a-zA-Z0-9\s]{1,4}\s*\b[A-Z][a-zA-Z0-9_]{2,15}\b|\[[a-zA-Z0-9_]+\]\s*[^a-zA-Z0-9\s]{1,4}\s*\[[a-zA-Z0-9_]+\])`)
	ocrPvPKillRe   = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9]{2,12})\b\s*([^a-zA-Z0-9\s]{1,3})\s*\b([A-Z][a-zA-Z0-9]{2,12})\b`)

	ocrStripRe = regexp.MustCompile(`[^a-z0-9\s]`)
)

type ocrPattern struct {
	name   string
	re     *regexp.Regexp
	weight float64
	raw    bool
}

var ocrPatterns = []ocrPattern{
	{"combat", ocrCombatRe, 0.6, false},
	{"victory", ocrVictoryRe, 0.8, false},
	{"intensity", ocrIntensityRe, 0.5, false},
	{"sports", ocrSportsRe, 0.5, false},
	{"killfeed", ocrKillfeedRe, 0.6, true},
}

// NormalizeOCRText maps common OCR confusions (0→o, 1→l, 5→s), lowercases
// and strips punctuation before pattern matching.
func NormalizeOCRText(text string) string {
	text = strings.ToLower(text)
	text = strings.NewReplacer("0", "o", "1", "l", "5", "s").Replace(text)
	return ocrStripRe.ReplaceAllString(text, " ")
}

// ScoreOCRText scores a frame's extracted text against the pattern
// families, checking raw and normalized forms as each pattern requires.
// Returns the capped score and the matched family names.
func ScoreOCRText(rawText, normText string) (float64, []string) {
	score := 0.0
	var matched []string
	for _, p := range ocrPatterns {
		text := normText
		if p.raw {
			text = rawText
		}
		if p.re.MatchString(text) {
			score += p.weight
			matched = append(matched, p.name)
		}
	}
	if ocrPvPKillRe.MatchString(rawText) {
		score += 0.5
		matched = append(matched, "pvp_kill")
	}
	return math.Min(1.0, score), matched
}

// OCRKeywordSignal runs event-triggered OCR over candidate frames. It is a
// second-pass signal: the job hands it the seconds the cheap signals flagged.
type OCRKeywordSignal struct{}

func (s *OCRKeywordSignal) Name() string { return SignalOCRKeyword }

// Detect extracts the candidate frames, OCRs text-like regions (full frame
// when none are found) and scores the recognized text.
func (s *OCRKeywordSignal) Detect(ctx context.Context, cfg SignalConfig, in SignalInputs) (map[int]float64, error) {
	if in.TargetSeconds != nil && len(in.TargetSeconds) == 0 {
		return map[int]float64{}, nil
	}
	if _, err := exec.LookPath("tesseract"); err != nil {
		log.Warn().Err(err).Msg("ocr: tesseract not available, skipping")
		return map[int]float64{}, nil
	}

	frameDir, err := os.MkdirTemp("", "ocr_frames_")
	if err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	defer os.RemoveAll(frameDir)

	sampleInterval := cfg.SampleInterval
	var fpsFilter string
	targets := append([]int(nil), in.TargetSeconds...)
	sortInts(targets)

	if len(targets) > 0 {
		exprs := make([]string, len(targets))
		for i, sec := range targets {
			exprs[i] = fmt.Sprintf("eq(n,%d)", sec)
		}
		fpsFilter = fmt.Sprintf("fps=1,select='%s'", strings.Join(exprs, "+"))
		log.Info().Int("candidates", len(targets)).Msg("ocr: target pass over candidate seconds")
	} else {
		// Untargeted fallback: stretch the interval on long videos so the
		// frame count stays bounded.
		if in.Duration > float64(cfg.MaxFrames) {
			sampleInterval = math.Max(sampleInterval, in.Duration/float64(cfg.MaxFrames))
			log.Info().Float64("interval", sampleInterval).Msg("ocr: long video, adaptive sample interval")
		}
		fpsFilter = fmt.Sprintf("fps=1/%g", sampleInterval)
	}

	// Pre-scale and boost contrast in ffmpeg so tesseract sees clean input.
	vfFilter := "scale=426:240,format=gray,eq=contrast=1.4:brightness=0.05"
	if err := runFFmpeg(ctx, "-y",
		"-i", in.ProxyPath,
		"-vf", fpsFilter+","+vfFilter,
		"-q:v", "3",
		filepath.Join(frameDir, "frame_%06d.jpg"),
	); err != nil {
		return nil, fmt.Errorf("ocr frame extraction: %w", err)
	}

	frames, err := filepath.Glob(filepath.Join(frameDir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(frames)
	log.Info().Int("frames", len(frames)).Msg("ocr: processing frames")

	scores := map[int]float64{}
	recentPatterns := map[string][]float64{}

	for i, framePath := range frames {
		var second int
		if len(targets) > 0 {
			if i >= len(targets) {
				break
			}
			second = targets[i]
		} else {
			second = int(float64(i) * sampleInterval)
		}

		frameScore, framePatterns := s.scanFrame(ctx, framePath, cfg.ConfidenceThreshold)

		// Temporal boost: a family firing twice within 3s means a real
		// on-screen event rather than a misread.
		for _, name := range framePatterns {
			times := recentPatterns[name]
			times = append(times, float64(second))
			kept := times[:0]
			for _, t := range times {
				if float64(second)-t <= 3.0 {
					kept = append(kept, t)
				}
			}
			recentPatterns[name] = kept
			if len(kept) >= 2 {
				frameScore = math.Min(1.0, frameScore+0.2)
			}
		}

		if frameScore > 0 {
			if frameScore > scores[second] {
				scores[second] = frameScore
			}
		}
		runtime.Gosched()
	}

	log.Info().Int("matches", len(scores)).Int("frames", len(frames)).Msg("ocr: complete")
	return scores, nil
}

// scanFrame OCRs one frame: detected text regions first, full frame when
// region OCR comes back empty or no regions were found.
func (s *OCRKeywordSignal) scanFrame(ctx context.Context, framePath string, confThreshold int) (float64, []string) {
	var texts []string

	img, err := loadGray(framePath)
	if err != nil {
		log.Debug().Err(err).Str("frame", framePath).Msg("ocr: frame unreadable")
		return 0, nil
	}

	regions := DetectTextRegions(img)
	if len(regions) > 0 {
		for _, r := range regions {
			crop, err := cropGray(img, r, 4)
			if err != nil {
				continue
			}
			text := runTesseract(ctx, crop, "6", confThreshold)
			os.Remove(crop)
			if text != "" {
				texts = append(texts, text)
			}
		}
	}
	if len(texts) == 0 {
		// Full-frame sparse-text fallback.
		if text := runTesseract(ctx, framePath, "11", confThreshold); text != "" {
			texts = append(texts, text)
		}
	}

	frameScore := 0.0
	var patterns []string
	for _, raw := range texts {
		score, matched := ScoreOCRText(raw, NormalizeOCRText(raw))
		if score > frameScore {
			frameScore = score
		}
		patterns = append(patterns, matched...)
	}
	return frameScore, patterns
}

func loadGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, err
	}
	if gray, ok := img.(*image.Gray); ok {
		return gray, nil
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray, nil
}

// cropGray writes a padded crop of the region to a temp JPEG for tesseract.
func cropGray(img *image.Gray, r Region, pad int) (string, error) {
	b := img.Bounds()
	x1 := maxInt(b.Min.X, b.Min.X+r.X-pad)
	y1 := maxInt(b.Min.Y, b.Min.Y+r.Y-pad)
	x2 := b.Min.X + r.X + r.W + pad
	y2 := b.Min.Y + r.Y + r.H + pad
	if x2 > b.Max.X {
		x2 = b.Max.X
	}
	if y2 > b.Max.Y {
		y2 = b.Max.Y
	}
	crop := img.SubImage(image.Rect(x1, y1, x2, y2))

	f, err := os.CreateTemp("", "ocr_crop_*.jpg")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := jpeg.Encode(f, crop, &jpeg.Options{Quality: 90}); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// runTesseract invokes the tesseract CLI in TSV mode and keeps words at or
// above the confidence threshold.
func runTesseract(ctx context.Context, imagePath, psm string, confThreshold int) string {
	cmd := exec.CommandContext(ctx, "tesseract", imagePath, "stdout",
		"--oem", "1", "--psm", psm,
		"-c", "load_system_dawg=0", "-c", "load_freq_dawg=0",
		"tsv",
	)
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return parseTesseractTSV(string(out), confThreshold)
}

// parseTesseractTSV filters the TSV word rows by confidence.
func parseTesseractTSV(tsv string, confThreshold int) string {
	var words []string
	lines := splitLines(tsv)
	for i, line := range lines {
		if i == 0 {
			continue // header
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < float64(confThreshold) {
			continue
		}
		words = append(words, word)
	}
	return strings.Join(words, " ")
}
