package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/nexusai/nexus/internal/gemini"
	"github.com/nexusai/nexus/internal/rag"
)

// buildGeminiClient constructs the shared GenAI client from GEMINI_API_KEY.
func buildGeminiClient(ctx context.Context) (*gemini.Client, error) {
	client, err := gemini.NewClient(ctx, os.Getenv("GEMINI_API_KEY"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialise Gemini client: %w", err)
	}
	return client, nil
}

// buildEmbedder constructs the embedder sharing the given client's
// connection, honouring EMBEDDING_MODEL and EMBEDDING_DIMENSIONS overrides.
func buildEmbedder(client *gemini.Client) *gemini.Embedder {
	return gemini.NewEmbedder(client, &gemini.EmbedderConfig{
		Model:      os.Getenv("EMBEDDING_MODEL"),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", gemini.DefaultDimensions),
	})
}

// buildVectorStore connects to Qdrant using the QDRANT_* env vars, creating
// the collection sized for the given embedding dimensions if it is missing.
func buildVectorStore(ctx context.Context, dimensions int) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)

	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "nexus-docs"),
		VectorSize: uint64(dimensions), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return store, nil
}

// getEnvOrDefault returns the named environment variable, or fallback if it
// is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
