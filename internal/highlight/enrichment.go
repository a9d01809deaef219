package highlight

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"contentcore/internal/intelligence"
)

const titleMaxChars = 60

const titleSystemPrompt = `You are a world-class content curator and video editor.
Your task is to generate short, attention-grabbing titles (max 60 chars) for a series of highlight clips.

### ADAPTATION RULES:
1. TONE: Identify the content type from the Video Title/Description/Category (e.g., Gaming, Vlog, Tutorial, Music, Podcast).
2. STYLE:
   - For GAMING: Action-oriented, hype-focused (but no generic "Epic"/"Insane"). Use specific game terminology.
   - For EDUCATIONAL/TUTORIAL: Informative, highlighting the specific concept, tool, or "lightbulb" moment.
   - For VLOGS/TALK/PODCASTS: Use quotes, emotional anchors, or the main topic discussed.
3. SPECIFICITY: Always prioritize specific details (names, tools, locations, or key phrases) over generic summaries.

### CONSTRAINTS:
- DO NOT use generic buzzwords: 'Epic Showdown', 'Intense Moment', 'Boldest Move', 'Game Changer', 'Momentous Comeback', 'Action-packed'.
- Ensure every title is unique from the others in the batch.
- If the context contains spoken words, use them as inspiration.
- Do not use quotes in your titles.
- Respond ONLY with a valid JSON object.

Example Output:
{
  "0": "Clutch 1v3 with Vandal on A-Site",
  "1": "How to center a div with TailWind",
  "2": "The moment he realized his mic was muted"
}`

// Chatter is the one gateway call title enrichment needs.
type Chatter interface {
	Chat(ctx context.Context, system, prompt, model string) (string, error)
}

// buildTitleContext assembles the per-clip context handed to the model:
// transcript snippet and active signal names. Recognized OCR text is not
// included; an active OCR signal appears only by its signal name.
func buildTitleContext(clip Clip, vttContent string) string {
	var parts []string
	if vttContent != "" {
		snippet := vttContent
		if len(snippet) > 2000 {
			snippet = snippet[:2000]
		}
		parts = append(parts, "TRANSCRIPT SNIPPET: "+snippet)
	}
	var active []string
	for name, v := range clip.Signals {
		if v > 0 {
			active = append(active, name)
		}
	}
	if len(active) > 0 {
		sort.Strings(active)
		parts = append(parts, "SYSTEM SIGNALS: "+strings.Join(active, ", "))
	}
	return strings.Join(parts, "\n")
}

// buildTitleBatchPrompt formats the one-shot batch request for all clips.
func buildTitleBatchPrompt(videoTitle, videoDescription, videoCategory string, clips []Clip, vttContent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Video Title: %s\n", videoTitle)
	fmt.Fprintf(&b, "Video Category: %s\n", videoCategory)
	fmt.Fprintf(&b, "Video Description: %s\n\n", videoDescription)
	b.WriteString("Here are the clips you need to name. Use the context and detected events to give each a unique ACTIONABLE title:\n\n")
	for _, clip := range clips {
		ctx := buildTitleContext(clip, vttContent)
		if len(ctx) > 1000 {
			ctx = ctx[:1000]
		}
		fmt.Fprintf(&b, "--- Clip Index: %d ---\n%s\n\n", clip.Index, ctx)
	}
	return b.String()
}

// defaultTitle names a clip when the model has nothing better.
func defaultTitle(index int) string {
	return fmt.Sprintf("Highlight #%d", index+1)
}

// EnrichClips fills every clip's title from one batched gateway call.
// Failures fall back to default titles and are reported so the job can
// record a warning; enrichment never fails a job.
func EnrichClips(ctx context.Context, ai Chatter, clips []Clip, videoTitle, videoDescription, videoCategory, vttContent string) ([]Clip, error) {
	if len(clips) == 0 {
		return clips, nil
	}

	titles := map[int]string{}
	prompt := buildTitleBatchPrompt(videoTitle, videoDescription, videoCategory, clips, vttContent)
	raw, chatErr := ai.Chat(ctx, titleSystemPrompt, prompt, "fast")
	if chatErr != nil {
		log.Error().Err(chatErr).Msg("batch title generation failed, using defaults")
	} else {
		titles = parseTitleBatch(raw)
		if len(titles) == 0 {
			chatErr = fmt.Errorf("title batch returned no parseable titles")
		}
	}

	for i := range clips {
		title, ok := titles[clips[i].Index]
		if !ok || title == "" {
			title = defaultTitle(clips[i].Index)
		}
		if len(title) > titleMaxChars {
			title = title[:titleMaxChars]
		}
		clips[i].Title = title
	}
	return clips, chatErr
}

// parseTitleBatch decodes the strict-JSON {index: title} reply, tolerating
// markdown fences and non-integer keys.
func parseTitleBatch(raw string) map[int]string {
	cleaned := intelligence.StripFences(raw)
	if cleaned == "" {
		return map[int]string{}
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		log.Error().Err(err).Str("raw", truncate(raw, 200)).Msg("title batch JSON parse failed")
		return map[int]string{}
	}
	titles := map[int]string{}
	for k, v := range decoded {
		idx, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		if s, ok := v.(string); ok {
			titles[idx] = strings.TrimSpace(s)
		}
	}
	return titles
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
