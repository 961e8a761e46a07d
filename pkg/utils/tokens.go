// Package utils provides token counting and LLM response parsing helpers.
package utils

import (
	"fmt"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter provides approximate token counting for prompt budgeting.
// All supported providers are approximated with the GPT-4 encoding, which is
// close enough for trimming context summaries to a budget.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter. The model name is accepted for
// future per-model encodings; today everything maps to the GPT-4 codec.
func NewTokenCounter(model string) (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in the given text.
// Falls back to character-based estimation (4 chars ≈ 1 token) on error.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// TrimToTokens cuts text at a whole-line boundary so that it fits within the
// given token budget. Lines are dropped from the end.
func (tc *TokenCounter) TrimToTokens(text string, budget int) string {
	if budget <= 0 || tc.CountTokens(text) <= budget {
		return text
	}

	lines := splitLines(text)
	for len(lines) > 1 {
		lines = lines[:len(lines)-1]
		candidate := joinLines(lines)
		if tc.CountTokens(candidate) <= budget {
			return candidate
		}
	}
	// Single oversized line: hard character cut as a last resort.
	return Truncate(text, budget*4)
}

// Truncate cuts s to at most limit bytes without splitting a UTF-8 rune;
// the cut point backs up to the nearest rune boundary.
func Truncate(s string, limit int) string {
	if limit >= len(s) {
		return s
	}
	if limit < 0 {
		limit = 0
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
