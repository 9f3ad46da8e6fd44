// Package fallback implements the cascading multi-model generation
// orchestrator. Models are tried strictly in hierarchy order from most
// capable to lightest; rate-limited models are skipped, transient failures
// are retried in place, and a full cascade failure marks the whole service
// exhausted until a reset window elapses.
package fallback

import (
	"os"
	"strings"
)

// ModelDescriptor identifies one rung of the fallback ladder.
type ModelDescriptor struct {
	// Rank is the position in the hierarchy; 0 is the most capable model.
	Rank int
	// ID is the model identifier sent to the backend.
	ID string
	// DisplayName is the human-readable label shown to users.
	DisplayName string
}

// defaultHierarchy is the built-in ladder, ordered most capable to lightest.
// All entries are served by the same API credential, so exhausting one rung
// usually means the next is close behind; the ladder trades capability for
// a separate per-model quota pool.
var defaultHierarchy = []string{
	"gemini-flash-latest",
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-flash-lite-latest",
	"gemini-2.5-flash-lite",
	"gemini-2.0-flash-lite",
	"gemma-3-27b",
	"gemma-3-12b",
}

// displayNames maps model identifiers to user-facing labels.
var displayNames = map[string]string{
	"gemini-flash-latest":      "Gemini Flash Latest",
	"gemini-2.5-flash":         "Gemini 2.5 Flash",
	"gemini-2.0-flash":         "Gemini 2.0 Flash",
	"gemini-flash-lite-latest": "Gemini Flash Lite Latest",
	"gemini-2.5-flash-lite":    "Gemini 2.5 Flash Lite",
	"gemini-2.0-flash-lite":    "Gemini 2.0 Flash Lite",
	"gemma-3-27b":              "Gemma 3 27B",
	"gemma-3-12b":              "Gemma 3 12B",
	"gemma-3-4b":               "Gemma 3 4B",
}

// DefaultHierarchy returns the built-in model ladder.
func DefaultHierarchy() []ModelDescriptor {
	return descriptors(defaultHierarchy)
}

// HierarchyFromEnv returns the ladder from the GEMINI_MODELS env var
// (comma-separated model IDs, most capable first), or the built-in default
// when the variable is unset or empty.
func HierarchyFromEnv() []ModelDescriptor {
	raw := os.Getenv("GEMINI_MODELS")
	if raw == "" {
		return DefaultHierarchy()
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return DefaultHierarchy()
	}
	return descriptors(ids)
}

// descriptors converts an ordered ID list into ModelDescriptors.
func descriptors(ids []string) []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(ids))
	for i, id := range ids {
		out = append(out, ModelDescriptor{Rank: i, ID: id, DisplayName: DisplayName(id)})
	}
	return out
}

// DisplayName converts a model identifier to its user-facing label,
// returning the identifier itself for unknown models.
func DisplayName(id string) string {
	if name, ok := displayNames[id]; ok {
		return name
	}
	return id
}
