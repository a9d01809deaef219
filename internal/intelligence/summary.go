package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Summary is the normalized structured summary written onto a document.
// The gateway's schemas vary by content type (topic/summary/key_moments for
// video, title/overview/key_concepts/entities/language for articles); this
// flattens them into one shape. When the gateway's reply is not valid JSON,
// Summary carries the raw text and ParseError is set.
type Summary struct {
	Summary     string
	KeyConcepts []string
	Entities    []string
	Language    string
	ParseError  string
}

// GenerateSummary asks the gateway for a structured summary of the content.
func (c *Client) GenerateSummary(ctx context.Context, text, entityType string) (Summary, error) {
	raw, err := c.Chat(ctx, summarySystemPrompt(entityType), summaryUserPrompt(text, entityType), c.summaryModel)
	if err != nil {
		return Summary{}, fmt.Errorf("generate summary: %w", err)
	}
	return parseSummary(raw), nil
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// StripFences removes markdown code fences around a JSON payload, returning
// the inner content when fenced and the trimmed input otherwise.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// parseSummary decodes the gateway reply, degrading to a raw-text summary
// when the JSON cannot be parsed.
func parseSummary(raw string) Summary {
	cleaned := StripFences(raw)

	var fields map[string]any
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		log.Warn().Err(err).Msg("summary JSON parse failed, degrading to raw text")
		return Summary{Summary: raw, ParseError: "json_parse_failed"}
	}

	out := Summary{}
	// "summary" mirrors "overview" when only the latter is present.
	out.Summary = firstString(fields, "summary", "overview")
	out.KeyConcepts = firstStrings(fields, "key_concepts", "key_moments", "main_topics")
	out.Entities = firstStrings(fields, "entities")
	out.Language = firstString(fields, "language")
	return out
}

func firstString(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := fields[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func firstStrings(fields map[string]any, keys ...string) []string {
	for _, k := range keys {
		items, ok := fields[k].([]any)
		if !ok {
			continue
		}
		var out []string
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
