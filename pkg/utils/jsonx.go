package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON parses a JSON document out of an LLM response, tolerating
// markdown code fences and output truncated by a max-tokens limit.
func ExtractJSON(text string, v any) error {
	stripped := StripCodeFences(text)

	if err := json.Unmarshal([]byte(stripped), v); err == nil {
		return nil
	}

	repaired := RepairTruncatedJSON(stripped)
	if repaired == "" {
		return fmt.Errorf("response is not valid JSON (%d chars)", len(text))
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("failed to parse JSON after repair: %w", err)
	}
	return nil
}

// StripCodeFences removes surrounding markdown code fences from a response.
// The closing fence is located from the end because the JSON payload itself
// may contain nested fenced blocks.
func StripCodeFences(text string) string {
	switch {
	case strings.Contains(text, "```json"):
		start := strings.Index(text, "```json") + len("```json")
		end := strings.LastIndex(text, "```")
		if end > start {
			return strings.TrimSpace(text[start:end])
		}
		return strings.TrimSpace(text[start:])
	case strings.Contains(text, "```"):
		start := strings.Index(text, "```") + len("```")
		end := strings.LastIndex(text, "```")
		if end > start {
			return strings.TrimSpace(text[start:end])
		}
		return strings.TrimSpace(text[start:])
	default:
		return strings.TrimSpace(text)
	}
}

// RepairTruncatedJSON attempts a best-effort repair of a JSON object cut off
// mid-stream: closes an unterminated string, then any open brackets/braces.
// Returns "" when the input does not look like a JSON object at all.
func RepairTruncatedJSON(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return ""
	}

	inString := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\\' && inString {
			i++ // skip escaped char
			continue
		}
		if c == '"' {
			inString = !inString
		}
	}
	if inString {
		text += `"`
	}

	openBraces := strings.Count(text, "{") - strings.Count(text, "}")
	openBrackets := strings.Count(text, "[") - strings.Count(text, "]")
	text += strings.Repeat("]", max(0, openBrackets))
	text += strings.Repeat("}", max(0, openBraces))

	return text
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
