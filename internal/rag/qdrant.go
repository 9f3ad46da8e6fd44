package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Payload field names used in Qdrant points.
const (
	fieldSessionID    = "session_id"
	fieldDocumentID   = "document_id"
	fieldDocumentName = "document_name"
	fieldChunkIndex   = "chunk_index"
	fieldText         = "text"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection and
// its payload indexes exist (creating them if necessary), and returns a
// ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection and the keyword indexes on
// the session and document fields if they do not already exist. The indexes
// back the filters used by Search and the two delete operations.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}

	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
		}
	}

	for _, field := range []string{fieldSessionID, fieldDocumentID} {
		_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.cfg.Collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to index field %q: %w", field, err)
		}
	}

	return nil
}

// Upsert stores or updates a batch of chunks with their embeddings.
// Each chunk's embedding must be pre-computed; this method never calls the
// Embedder.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("qdrant: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				fieldSessionID:    c.SessionID,
				fieldDocumentID:   c.DocumentID,
				fieldDocumentName: c.DocumentName,
				fieldChunkIndex:   int64(c.Index),
				fieldText:         c.Text,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search restricted to sessionID and
// returns the top-k results.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, sessionID string, topK int) ([]Chunk, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(fieldSessionID, sessionID),
			},
		},
		Limit:       &limit,
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		c := Chunk{
			ID:    r.Id.GetUuid(),
			Score: r.Score,
		}
		if p := r.Payload; p != nil {
			if v, ok := p[fieldSessionID]; ok {
				c.SessionID = v.GetStringValue()
			}
			if v, ok := p[fieldDocumentID]; ok {
				c.DocumentID = v.GetStringValue()
			}
			if v, ok := p[fieldDocumentName]; ok {
				c.DocumentName = v.GetStringValue()
			}
			if v, ok := p[fieldChunkIndex]; ok {
				c.Index = int(v.GetIntegerValue())
			}
			if v, ok := p[fieldText]; ok {
				c.Text = v.GetStringValue()
			}
		}
		chunks = append(chunks, c)
	}

	return chunks, nil
}

// DeleteBySession removes every chunk whose session_id matches sessionID.
func (s *QdrantStore) DeleteBySession(ctx context.Context, sessionID string) error {
	return s.deleteByField(ctx, fieldSessionID, sessionID)
}

// DeleteByDocument removes every chunk whose document_id matches documentID.
func (s *QdrantStore) DeleteByDocument(ctx context.Context, documentID string) error {
	return s.deleteByField(ctx, fieldDocumentID, documentID)
}

func (s *QdrantStore) deleteByField(ctx context.Context, field, value string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(field, value),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete by %s failed: %w", field, err)
	}
	return nil
}

// Client exposes the underlying Qdrant client for health probes that need
// the raw HealthCheck RPC.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
