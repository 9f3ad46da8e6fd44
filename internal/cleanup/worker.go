// Package cleanup removes vector-store data left behind when a session or
// document is deleted. Cleanup is best-effort: the owning record's deletion
// must never be blocked by a vector-store failure.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/nexusai/nexus/internal/logging"
	"github.com/nexusai/nexus/internal/rag"
)

const (
	// DefaultAttempts is the number of delete attempts, including the first.
	DefaultAttempts = 3

	// DefaultDelay is the backoff before the first retry. It doubles on
	// each subsequent retry.
	DefaultDelay = time.Second
)

// Config tunes the worker. Zero values fall back to defaults.
type Config struct {
	// Attempts is the number of delete attempts per call.
	Attempts uint

	// Delay is the initial retry backoff.
	Delay time.Duration
}

// Worker deletes chunks from the vector store with bounded retry. When every
// attempt fails it logs the orphaned-vector condition for a later sweep and
// returns the error; callers proceed with their own deletion regardless.
type Worker struct {
	store    rag.VectorStore
	attempts uint
	delay    time.Duration
}

// NewWorker constructs a Worker around store.
func NewWorker(store rag.VectorStore, cfg Config) *Worker {
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	return &Worker{
		store:    store,
		attempts: cfg.Attempts,
		delay:    cfg.Delay,
	}
}

// DeleteSessionVectors removes every chunk belonging to the session.
func (w *Worker) DeleteSessionVectors(ctx context.Context, sessionID string) error {
	return w.deleteWithRetry(ctx, "session_id", sessionID, func() error {
		return w.store.DeleteBySession(ctx, sessionID)
	})
}

// DeleteDocumentVectors removes every chunk belonging to the document.
func (w *Worker) DeleteDocumentVectors(ctx context.Context, documentID string) error {
	return w.deleteWithRetry(ctx, "document_id", documentID, func() error {
		return w.store.DeleteByDocument(ctx, documentID)
	})
}

// deleteWithRetry runs del with exponential backoff. On exhaustion it logs
// the orphan with enough detail to find the vectors later.
func (w *Worker) deleteWithRetry(ctx context.Context, idKey, id string, del func() error) error {
	log := logging.FromContext(ctx)

	err := retry.Do(del,
		retry.Context(ctx),
		retry.Attempts(w.attempts),
		retry.Delay(w.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("vector delete failed, retrying",
				slog.String(idKey, id),
				slog.Uint64("attempt", uint64(n+1)),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		log.Error("vector cleanup failed, vectors orphaned",
			slog.String(idKey, id),
			slog.Uint64("attempts", uint64(w.attempts)),
			slog.String("error", err.Error()),
		)
		return err
	}

	return nil
}
