// Package rag defines the interfaces for retrieval-augmented generation
// components: vector storage, session-scoped retrieval, and embedding.
// Concrete implementations (Qdrant, etc.) satisfy these interfaces so the
// serving layer never depends on a specific backend.
package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Chunk represents one stored or retrieved slice of an uploaded document.
type Chunk struct {
	// ID is the unique point identifier for this chunk (UUID).
	ID string

	// SessionID scopes the chunk to the conversation that uploaded it.
	SessionID string

	// DocumentID identifies the parent document.
	DocumentID string

	// DocumentName is the original upload filename, kept for citations.
	DocumentName string

	// Index is the zero-based position of this chunk within its document.
	Index int

	// Text is the chunk content.
	Text string

	// Score is the similarity score assigned during retrieval (0.0-1.0).
	// Zero value means the score was not computed.
	Score float32
}

// PointID derives the stable point identifier for a chunk from its parent
// document and position. Re-ingesting the same document overwrites its points
// instead of duplicating them.
func PointID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s-%d", documentID, index))).String()
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of chunks with their pre-computed
	// embeddings. The embeddings slice must be parallel to chunks:
	// embeddings[i] is the vector for chunks[i].
	Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Search performs a similarity search restricted to one session and
	// returns the top-k most relevant chunks for the query embedding.
	Search(ctx context.Context, queryEmbedding []float32, sessionID string, topK int) ([]Chunk, error)

	// DeleteBySession removes every chunk belonging to the session.
	DeleteBySession(ctx context.Context, sessionID string) error

	// DeleteByDocument removes every chunk belonging to the document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the serving layer to fetch
// relevant context for a query within one session.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant chunks for the query,
	// restricted to the given session. An empty slice means no relevant
	// content exists; it is not an error.
	Retrieve(ctx context.Context, sessionID, query string, topK int) ([]Chunk, error)
}
