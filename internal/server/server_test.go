package server

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nexusai/nexus/internal/fallback"
	"github.com/nexusai/nexus/internal/ingestion"
	"github.com/nexusai/nexus/internal/rag"
	"github.com/nexusai/nexus/internal/store"
)

// fakeGenerator implements the generator interface for tests.
type fakeGenerator struct {
	result    *fallback.Result
	err       error
	available bool
	message   string
	// lastPrompt records the prompt of the most recent Generate call.
	lastPrompt string
	calls      int
}

func (f *fakeGenerator) Generate(_ context.Context, _, prompt, _ string) (*fallback.Result, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeGenerator) CheckAvailability() (bool, string) {
	return f.available, f.message
}

// fakeRetriever implements rag.Retriever for tests.
type fakeRetriever struct {
	chunks []rag.Chunk
	err    error
	calls  int
}

func (f *fakeRetriever) Retrieve(context.Context, string, string, int) ([]rag.Chunk, error) {
	f.calls++
	return f.chunks, f.err
}

// fakeIngester implements the ingester interface for tests.
type fakeIngester struct {
	result *ingestion.Result
	err    error
	calls  int
}

func (f *fakeIngester) Ingest(context.Context, string, string, string, string) (*ingestion.Result, error) {
	f.calls++
	if f.result == nil {
		return &ingestion.Result{}, f.err
	}
	return f.result, f.err
}

// fakeCleaner implements the cleaner interface for tests.
type fakeCleaner struct {
	err      error
	sessions []string
	docs     []string
}

func (f *fakeCleaner) DeleteSessionVectors(_ context.Context, id string) error {
	f.sessions = append(f.sessions, id)
	return f.err
}

func (f *fakeCleaner) DeleteDocumentVectors(_ context.Context, id string) error {
	f.docs = append(f.docs, id)
	return f.err
}

// testDeps bundles the fakes wired into a test server.
type testDeps struct {
	gen       *fakeGenerator
	retriever *fakeRetriever
	ingester  *fakeIngester
	cleaner   *fakeCleaner
	records   *store.Store
}

// newTestServer builds a Server over an in-memory record store and fresh
// metrics registry.
func newTestServer(t *testing.T, deps testDeps) (*Server, testDeps) {
	t.Helper()

	if deps.gen == nil {
		deps.gen = &fakeGenerator{result: &fallback.Result{
			Text:             "hello",
			ModelUsed:        "model-a",
			ModelDisplayName: "Model A",
		}}
	}
	if deps.retriever == nil {
		deps.retriever = &fakeRetriever{}
	}
	if deps.ingester == nil {
		deps.ingester = &fakeIngester{result: &ingestion.Result{ChunksWritten: 1}}
	}
	if deps.cleaner == nil {
		deps.cleaner = &fakeCleaner{}
	}
	if deps.records == nil {
		records, err := store.Open(":memory:")
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		t.Cleanup(func() { _ = records.Close() })
		deps.records = records
	}

	s, err := New(Deps{
		Generator: deps.gen,
		Retriever: deps.retriever,
		Ingester:  deps.ingester,
		Cleaner:   deps.cleaner,
		Records:   deps.records,
		Registry:  prometheus.NewRegistry(),
	}, &Config{Logger: slog.Default()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, deps
}

// newTestSession creates a session directly in the record store.
func newTestSession(t *testing.T, records *store.Store) *store.Session {
	t.Helper()
	sess, err := records.CreateSession(context.Background(), "test session")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}
