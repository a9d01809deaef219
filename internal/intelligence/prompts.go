package intelligence

import "fmt"

const videoSummarySystemPrompt = `You are an expert video content analyzer. Analyze the video transcript and return a structured JSON object.

OUTPUT FORMAT (Return ONLY valid JSON, no markdown formatting):
{
  "topic": "Primary subject of the video",
  "summary": "Narrative summary of the discussion or presentation",
  "key_moments": ["Key topic 1", "Key topic 2", "Key topic 3", "Key topic 4", "Key topic 5"]
}

RULES:
- Ignore filler words and focus on substantive content
- Preserve specific terminology and entity names exactly
- Ensure key_moments contains exactly 5 distinct topics
- Return ONLY the JSON object (no markdown code blocks, no additional text)`

const articleSummarySystemPrompt = `You are an expert content analyzer. Analyze the article and return a structured JSON object optimized for search.

OUTPUT FORMAT (Return ONLY valid JSON, no markdown formatting):
{
  "title": "Representative title for the article",
  "overview": "Concise paragraph summarizing the main thesis",
  "key_concepts": ["Concept 1", "Concept 2", "Concept 3", "Concept 4", "Concept 5"],
  "entities": ["Entity 1", "Entity 2", "Entity 3"],
  "language": "en"
}

RULES:
- Preserve specific terminology and key entities exactly as written
- key_concepts must contain exactly 5 important concepts or arguments
- entities should include people, places, organizations, or important proper nouns (max 10)
- language should be ISO 639-1 code (en, es, fr, de, etc.)
- Return ONLY the JSON object (no markdown code blocks, no additional text)`

const defaultSummarySystemPrompt = `You are a content summarization expert. Analyze the text and return a structured JSON object.

OUTPUT FORMAT (Return ONLY valid JSON, no markdown formatting):
{
  "summary": "5 concise sentences expressing the key ideas",
  "main_topics": ["Topic 1", "Topic 2", "Topic 3"]
}

RULES:
- Each sentence in summary must express a distinct key idea
- Avoid repetition, speculation, or adding information not in the text
- main_topics should contain 3-5 primary subjects discussed
- Return ONLY the JSON object (no markdown code blocks, no additional text)`

// summarySystemPrompt picks the structured-summary prompt for a content type.
func summarySystemPrompt(entityType string) string {
	switch entityType {
	case "video_transcript", "video":
		return videoSummarySystemPrompt
	case "blog_post", "article":
		return articleSummarySystemPrompt
	default:
		return defaultSummarySystemPrompt
	}
}

const summaryMaxChars = 12000

// summaryUserPrompt formats the content to analyze, truncating long inputs.
func summaryUserPrompt(text, entityType string) string {
	if len(text) > summaryMaxChars {
		return fmt.Sprintf("Analyze the following %s (truncated to %d characters):\n\n%s\n\n[Content truncated for token limits]",
			entityType, summaryMaxChars, text[:summaryMaxChars])
	}
	return fmt.Sprintf("Analyze the following %s:\n\n%s", entityType, text)
}
