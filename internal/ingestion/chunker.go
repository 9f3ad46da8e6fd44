package ingestion

import (
	"strings"
)

// Default chunking parameters. Sized so a batch of embedded chunks stays well
// under the vector store's per-request payload ceiling.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// SplitText splits text into chunks of at most size runes, with overlap runes
// carried from the end of each chunk into the next. Cut points prefer a
// paragraph break, then a sentence end, near the size limit; a chunk is never
// split inside a multi-byte character because all indexing is rune-based.
// Returns nil for whitespace-only input.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 10
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []string

	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		if cut := boundaryBefore(runes, start, end); cut > start {
			end = cut
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// boundaryBefore looks backwards from end for a natural cut point, searching
// at most the last quarter of the window. Paragraph breaks win over sentence
// ends. Returns the rune index just after the boundary, or 0 when none was
// found in range.
func boundaryBefore(runes []rune, start, end int) int {
	limit := end - (end-start)/4
	if limit < start {
		limit = start
	}

	for i := end - 1; i > limit; i-- {
		if runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i > limit; i-- {
		if isSentenceEnd(runes, i) {
			return i + 1
		}
	}
	return 0
}

// isSentenceEnd reports whether the rune at i terminates a sentence: a
// terminator followed by whitespace or end of text.
func isSentenceEnd(runes []rune, i int) bool {
	switch runes[i] {
	case '.', '!', '?':
	default:
		return false
	}
	if i+1 >= len(runes) {
		return true
	}
	next := runes[i+1]
	return next == ' ' || next == '\n' || next == '\t'
}
