// Package budget provides token budget estimation and history trimming for
// prompt composition. Because the model hierarchy spans several model
// families with different tokenizers, this package uses a conservative
// character-based heuristic: 1 token ≈ 4 characters (English prose). This
// deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

import (
	"github.com/nexusai/nexus/internal/store"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit the lightest models in the hierarchy while
	// leaving room for the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// conversation messages, summing role + content for each message.
func EstimateMessages(msgs []store.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimHistory removes the oldest messages from history until fixedTokens plus
// the history estimate fits within maxTokens. fixedTokens covers the parts of
// the prompt that must not be trimmed (system instruction, document context,
// current question).
//
// Returns the trimmed history slice. If even an empty history exceeds the
// budget, the empty slice is returned; the fixed prompt parts are never
// dropped here.
func TrimHistory(history []store.Message, fixedTokens, maxTokens int) []store.Message {
	// History is typically ≤20 messages; a linear scan dropping oldest-first
	// is clear and correct.
	for len(history) > 0 {
		if fixedTokens+EstimateMessages(history) <= maxTokens {
			break
		}
		history = history[1:]
	}
	return history
}
