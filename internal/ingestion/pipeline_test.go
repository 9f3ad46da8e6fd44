package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nexusai/nexus/internal/rag"
)

// countingEmbedder returns fixed-size vectors and can fail selected calls.
type countingEmbedder struct {
	calls int
	// failCalls holds 1-based call numbers that should fail.
	failCalls map[int]bool
	// failAll makes every call fail.
	failAll bool
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.failAll || e.failCalls[e.calls] {
		return nil, errors.New("embed backend unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

// recordingStore records upsert batch sizes and can fail a selected batch.
type recordingStore struct {
	batches []int
	// failBatch is the zero-based upsert call number to fail, or -1.
	failBatch int
}

func newRecordingStore() *recordingStore { return &recordingStore{failBatch: -1} }

func (s *recordingStore) Upsert(_ context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return errors.New("chunks and embeddings out of sync")
	}
	if len(s.batches) == s.failBatch {
		return errors.New("store write failed")
	}
	s.batches = append(s.batches, len(chunks))
	return nil
}

func (s *recordingStore) Search(context.Context, []float32, string, int) ([]rag.Chunk, error) {
	return nil, nil
}
func (s *recordingStore) DeleteBySession(context.Context, string) error  { return nil }
func (s *recordingStore) DeleteByDocument(context.Context, string) error { return nil }
func (s *recordingStore) Close() error                                   { return nil }

// paragraphs builds text that splits into exactly n chunks under a chunk
// size of 8 with zero overlap: each paragraph is 6 runes plus a 2-rune
// separator, so every window ends on a paragraph break.
func paragraphs(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "abcde."
	}
	return strings.Join(parts, "\n\n")
}

// newFixedChunkPipeline builds a pipeline whose chunker emits one chunk per
// paragraph. ChunkOverlap equal to ChunkSize clamps to zero overlap.
func newFixedChunkPipeline(t *testing.T, emb rag.Embedder, store rag.VectorStore) *Pipeline {
	t.Helper()
	p, err := NewPipeline(emb, store, &Config{ChunkSize: 8, ChunkOverlap: 8})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func TestIngest_BatchSizesStayBounded(t *testing.T) {
	t.Parallel()

	store := newRecordingStore()
	p := newFixedChunkPipeline(t, &countingEmbedder{}, store)

	res, err := p.Ingest(context.Background(), "doc-1", "s1", "big.txt", paragraphs(237))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.ChunksWritten != 237 || res.ChunksFailed != 0 || res.Aborted {
		t.Errorf("result = %+v, want 237 written", res)
	}

	want := []int{50, 50, 50, 50, 37}
	if len(store.batches) != len(want) {
		t.Fatalf("batch sizes = %v, want %v", store.batches, want)
	}
	for i := range want {
		if store.batches[i] != want[i] {
			t.Fatalf("batch sizes = %v, want %v", store.batches, want)
		}
	}
}

func TestIngest_AbortsRemainingBatchesOnWriteFailure(t *testing.T) {
	t.Parallel()

	store := newRecordingStore()
	store.failBatch = 2
	p := newFixedChunkPipeline(t, &countingEmbedder{}, store)

	res, err := p.Ingest(context.Background(), "doc-1", "s1", "big.txt", paragraphs(237))
	if err == nil {
		t.Fatal("expected error")
	}

	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("error = %v, want *AbortError", err)
	}
	if abort.BatchIndex != 2 || abort.Written != 100 || abort.Failed != 137 {
		t.Errorf("abort = %+v, want batch 2, 100 written, 137 failed", abort)
	}
	if res.ChunksWritten != 100 || res.ChunksFailed != 137 || !res.Aborted {
		t.Errorf("result = %+v, want 100 written, 137 failed, aborted", res)
	}
	// Only the two successful batches were recorded; batches after the
	// failure were never attempted.
	if len(store.batches) != 2 {
		t.Errorf("store saw %d successful batches, want 2", len(store.batches))
	}
}

func TestIngest_EmptyDocumentIsNoContentSuccess(t *testing.T) {
	t.Parallel()

	emb := &countingEmbedder{}
	store := newRecordingStore()
	p := newFixedChunkPipeline(t, emb, store)

	res, err := p.Ingest(context.Background(), "doc-1", "s1", "empty.txt", "  \n \t ")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res.NoContent || res.ChunksWritten != 0 || res.Aborted {
		t.Errorf("result = %+v, want no-content success", res)
	}
	if emb.calls != 0 || len(store.batches) != 0 {
		t.Errorf("empty document reached the backends: %d embed calls, %d upserts", emb.calls, len(store.batches))
	}
}

func TestIngest_SkipsFailedEmbeddingBatch(t *testing.T) {
	t.Parallel()

	// 40 chunks embed in 4 calls of 10; the second call fails.
	emb := &countingEmbedder{failCalls: map[int]bool{2: true}}
	store := newRecordingStore()
	p := newFixedChunkPipeline(t, emb, store)

	res, err := p.Ingest(context.Background(), "doc-1", "s1", "doc.txt", paragraphs(40))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.ChunksWritten != 30 || res.ChunksFailed != 10 || res.Aborted {
		t.Errorf("result = %+v, want 30 written and 10 failed", res)
	}
}

func TestIngest_AbandonsDocumentPastFailureThreshold(t *testing.T) {
	t.Parallel()

	emb := &countingEmbedder{failAll: true}
	store := newRecordingStore()
	p := newFixedChunkPipeline(t, emb, store)

	res, err := p.Ingest(context.Background(), "doc-1", "s1", "doc.txt", paragraphs(40))
	if err == nil {
		t.Fatal("expected error")
	}
	if !res.Aborted || res.ChunksWritten != 0 {
		t.Errorf("result = %+v, want aborted with nothing written", res)
	}
	if len(store.batches) != 0 {
		t.Errorf("store saw %d upserts, want none", len(store.batches))
	}
}

func TestIngest_ChunkIdentityIsDeterministic(t *testing.T) {
	t.Parallel()

	type captured struct {
		ids      []string
		sessions []string
		indexes  []int
	}
	var got captured
	store := &chunkCaptureStore{onUpsert: func(chunks []rag.Chunk) {
		for _, c := range chunks {
			got.ids = append(got.ids, c.ID)
			got.sessions = append(got.sessions, c.SessionID)
			got.indexes = append(got.indexes, c.Index)
		}
	}}
	p := newFixedChunkPipeline(t, &countingEmbedder{}, store)

	if _, err := p.Ingest(context.Background(), "doc-1", "s1", "doc.txt", paragraphs(3)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(got.ids) != 3 {
		t.Fatalf("captured %d chunks, want 3", len(got.ids))
	}
	for i := range got.ids {
		if got.ids[i] != rag.PointID("doc-1", i) {
			t.Errorf("chunk %d id = %q, want the derived point id", i, got.ids[i])
		}
		if got.sessions[i] != "s1" {
			t.Errorf("chunk %d session = %q, want s1", i, got.sessions[i])
		}
		if got.indexes[i] != i {
			t.Errorf("chunk %d carries index %d", i, got.indexes[i])
		}
	}
}

// chunkCaptureStore invokes a callback with every upserted chunk.
type chunkCaptureStore struct {
	onUpsert func([]rag.Chunk)
}

func (s *chunkCaptureStore) Upsert(_ context.Context, chunks []rag.Chunk, _ [][]float32) error {
	s.onUpsert(chunks)
	return nil
}
func (s *chunkCaptureStore) Search(context.Context, []float32, string, int) ([]rag.Chunk, error) {
	return nil, nil
}
func (s *chunkCaptureStore) DeleteBySession(context.Context, string) error  { return nil }
func (s *chunkCaptureStore) DeleteByDocument(context.Context, string) error { return nil }
func (s *chunkCaptureStore) Close() error                                   { return nil }
