package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Default embedding settings. The dimension must match the vector store
// collection; 768 keeps payloads small while retaining retrieval quality.
const (
	// DefaultEmbeddingModel is the embedding model used when none is configured.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultDimensions is the default output vector size.
	DefaultDimensions = 768
)

// Embedder converts text into dense vectors via the GenAI embeddings API.
// It implements rag.Embedder and is safe for concurrent use.
type Embedder struct {
	// client is the underlying GenAI SDK client.
	client *genai.Client
	// model is the embedding model name.
	model string
	// dimensions is the requested output vector size.
	dimensions int
}

// EmbedderConfig holds the settings for constructing an Embedder.
type EmbedderConfig struct {
	// Model is the embedding model name (default: gemini-embedding-001).
	Model string
	// Dimensions is the output vector size (default: 768).
	Dimensions int
}

// NewEmbedder constructs an Embedder sharing the given client's connection.
func NewEmbedder(c *Client, cfg *EmbedderConfig) *Embedder {
	if cfg == nil {
		cfg = &EmbedderConfig{}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &Embedder{
		client:     c.SDK(),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Dimensions returns the output vector size this embedder produces. The
// vector store collection must be created with the same size or retrieval
// silently degrades to noise.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Embed converts a batch of texts into their embeddings. The returned slice
// is parallel to the input slice.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: t}}})
	}

	res, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(e.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: embed content: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: expected %d embeddings, got %d", len(texts), len(res.Embeddings))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}
