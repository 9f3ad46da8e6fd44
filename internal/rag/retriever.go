package rag

import (
	"context"
	"fmt"
	"strings"
)

// DefaultTopK is the number of chunks returned when the caller passes 0.
const DefaultTopK = 5

// SessionRetriever implements the Retriever interface by combining an
// Embedder and a VectorStore. It embeds the query at retrieval time and
// delegates the session-filtered similarity search to the store.
type SessionRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a SessionRetriever from the given Embedder and
// VectorStore. defaultTopK sets the fallback result count when Retrieve is
// called with topK=0.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*SessionRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &SessionRetriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds the query and returns the top-k most relevant chunks from
// the given session. An empty result is a normal answer, not an error.
func (r *SessionRetriever) Retrieve(ctx context.Context, sessionID, query string, topK int) ([]Chunk, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	chunks, err := r.store.Search(ctx, embeddings[0], sessionID, topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	return chunks, nil
}

// MaxContextChars bounds the rendered document-context block. Five default
// chunks fit well under it; the ceiling guards against oversized chunks
// blowing the prompt budget.
const MaxContextChars = 16000

// ContextBlock renders retrieved chunks as a document-context block for
// inclusion in a model prompt. Chunks are grouped under their source document
// name in retrieval order; chunks past the MaxContextChars ceiling are
// dropped, lowest-scored first. Returns "" when chunks is empty.
func ContextBlock(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("[DOCUMENT CONTEXT]\n")
	lastDoc := ""
	for _, c := range chunks {
		if b.Len()+len(c.Text) > MaxContextChars {
			break
		}
		if c.DocumentName != lastDoc {
			fmt.Fprintf(&b, "--- From %s ---\n", c.DocumentName)
			lastDoc = c.DocumentName
		}
		b.WriteString(c.Text)
		b.WriteString("\n")
	}
	b.WriteString("[END DOCUMENT CONTEXT]")
	return b.String()
}

// DocumentNames returns the distinct source document names across chunks, in
// first-seen order. Used for answer citations.
func DocumentNames(chunks []Chunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	names := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.DocumentName == "" {
			continue
		}
		if _, ok := seen[c.DocumentName]; ok {
			continue
		}
		seen[c.DocumentName] = struct{}{}
		names = append(names, c.DocumentName)
	}
	return names
}
