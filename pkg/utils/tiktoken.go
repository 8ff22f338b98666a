package utils

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// fallbackCharsPerToken is used when no codec is available (4 chars ≈ 1 token).
const fallbackCharsPerToken = 4

// TokenCounter provides token counting and truncation for budgeting
// oracle context. All supported chat models are approximated with the
// GPT-4 encoding.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter using the GPT-4 encoding.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in the given text, falling
// back to a character-based estimate if encoding fails.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / fallbackCharsPerToken
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / fallbackCharsPerToken
	}
	return count
}

// Truncate returns text capped to at most maxTokens tokens. If the text
// already fits it is returned unchanged. On encoding errors the text is
// capped by the character-based estimate instead.
func (tc *TokenCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if tc == nil || tc.codec == nil {
		return truncateByChars(text, maxTokens)
	}

	ids, _, err := tc.codec.Encode(text)
	if err != nil {
		return truncateByChars(text, maxTokens)
	}
	if len(ids) <= maxTokens {
		return text
	}

	truncated, err := tc.codec.Decode(ids[:maxTokens])
	if err != nil {
		return truncateByChars(text, maxTokens)
	}
	return truncated
}

func truncateByChars(text string, maxTokens int) string {
	maxChars := maxTokens * fallbackCharsPerToken
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}
