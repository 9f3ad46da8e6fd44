// Package ingestion implements the document ingestion pipeline.
// It chunks an uploaded document's extracted text, embeds each chunk, and
// upserts the results into the vector store in size-bounded batches.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nexusai/nexus/internal/logging"
	"github.com/nexusai/nexus/internal/rag"
)

const (
	// embedBatchSize bounds how many chunks are embedded per API call.
	embedBatchSize = 10

	// upsertBatchSize bounds how many points are written per upsert call,
	// chosen so the worst-case serialized batch stays under the store's
	// per-request payload ceiling.
	upsertBatchSize = 50

	// maxEmbedFailureRatio is the fraction of chunks allowed to fail
	// embedding before the whole document is abandoned.
	maxEmbedFailureRatio = 0.5
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of runes per document chunk.
	// Defaults to DefaultChunkSize if zero.
	ChunkSize int

	// ChunkOverlap is the number of runes to overlap between consecutive
	// chunks. Defaults to DefaultChunkOverlap if negative or zero.
	ChunkOverlap int
}

// Result reports the outcome of ingesting one document.
type Result struct {
	// ChunksWritten is the number of chunks persisted to the vector store.
	ChunksWritten int

	// ChunksFailed is the number of chunks that failed embedding or were
	// abandoned after an aborted batch write.
	ChunksFailed int

	// Aborted is true when a batch write failed and the remaining batches
	// were not attempted.
	Aborted bool

	// NoContent is true when the document produced zero chunks. This is a
	// success, not an error.
	NoContent bool
}

// AbortError reports a failed batch write. Batches are written in index order
// so everything before BatchIndex is known to be persisted.
type AbortError struct {
	// BatchIndex is the zero-based index of the batch that failed.
	BatchIndex int

	// Written is the number of chunks persisted before the failure.
	Written int

	// Failed is the number of chunks not persisted, including the failed
	// batch and every batch after it.
	Failed int

	// Err is the underlying store error.
	Err error
}

// Error implements the error interface.
func (e *AbortError) Error() string {
	return fmt.Sprintf("ingestion: batch %d failed, %d chunks written, %d lost: %v",
		e.BatchIndex, e.Written, e.Failed, e.Err)
}

// Unwrap returns the underlying store error.
func (e *AbortError) Unwrap() error { return e.Err }

// Pipeline orchestrates the chunk, embed, and upsert flow for one document.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}, nil
}

// Ingest chunks fullText, embeds the chunks, and writes them to the vector
// store. A single chunk's embedding failure skips that chunk; a batch write
// failure aborts the remaining batches and returns an *AbortError alongside
// the partial accounting in Result. The Result is non-nil on every return.
func (p *Pipeline) Ingest(ctx context.Context, documentID, sessionID, documentName, fullText string) (*Result, error) {
	log := logging.FromContext(ctx).With(
		slog.String("document_id", documentID),
		slog.String("session_id", sessionID),
	)

	texts := SplitText(fullText, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if len(texts) == 0 {
		log.Info("document produced no chunks")
		return &Result{NoContent: true}, nil
	}
	log.Info("document chunked", slog.Int("chunks", len(texts)))

	chunks := make([]rag.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, rag.Chunk{
			ID:           rag.PointID(documentID, i),
			SessionID:    sessionID,
			DocumentID:   documentID,
			DocumentName: documentName,
			Index:        i,
			Text:         text,
		})
	}

	kept, vectors, failed, err := p.embedAll(ctx, log, chunks)
	if err != nil {
		return &Result{ChunksFailed: len(chunks), Aborted: true}, err
	}

	res := &Result{ChunksFailed: failed}
	for batchIndex := 0; batchIndex*upsertBatchSize < len(kept); batchIndex++ {
		lo := batchIndex * upsertBatchSize
		hi := lo + upsertBatchSize
		if hi > len(kept) {
			hi = len(kept)
		}

		if err := p.store.Upsert(ctx, kept[lo:hi], vectors[lo:hi]); err != nil {
			res.Aborted = true
			res.ChunksFailed += len(kept) - lo
			log.Error("batch write failed, aborting remaining batches",
				slog.Int("batch", batchIndex),
				slog.Int("written", res.ChunksWritten),
				slog.String("error", err.Error()),
			)
			return res, &AbortError{
				BatchIndex: batchIndex,
				Written:    res.ChunksWritten,
				Failed:     len(kept) - lo,
				Err:        err,
			}
		}
		res.ChunksWritten += hi - lo
	}

	log.Info("document ingested",
		slog.Int("written", res.ChunksWritten),
		slog.Int("failed", res.ChunksFailed),
	)
	return res, nil
}

// embedAll embeds chunks in fixed-size batches. A failed batch is skipped and
// its chunks counted as failed; when more than maxEmbedFailureRatio of the
// document fails, the document is abandoned. The returned kept and vectors
// slices are parallel and preserve chunk index order.
func (p *Pipeline) embedAll(ctx context.Context, log *slog.Logger, chunks []rag.Chunk) ([]rag.Chunk, [][]float32, int, error) {
	kept := make([]rag.Chunk, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	failed := 0

	for lo := 0; lo < len(chunks); lo += embedBatchSize {
		hi := lo + embedBatchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}
		batch := chunks[lo:hi]

		texts := make([]string, 0, len(batch))
		for _, c := range batch {
			texts = append(texts, c.Text)
		}

		embeddings, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			failed += len(batch)
			log.Warn("embedding batch failed, skipping",
				slog.Int("first_chunk", lo),
				slog.Int("size", len(batch)),
				slog.String("error", err.Error()),
			)
			if float64(failed) > maxEmbedFailureRatio*float64(len(chunks)) {
				return nil, nil, failed, fmt.Errorf(
					"ingestion: %d of %d chunks failed embedding, abandoning document: %w",
					failed, len(chunks), err)
			}
			continue
		}
		if len(embeddings) != len(batch) {
			return nil, nil, failed, fmt.Errorf(
				"ingestion: embedder returned %d vectors for %d chunks", len(embeddings), len(batch))
		}

		kept = append(kept, batch...)
		vectors = append(vectors, embeddings...)
	}

	return kept, vectors, failed, nil
}
