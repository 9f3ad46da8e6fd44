package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nexusai/nexus/internal/extract"
	"github.com/nexusai/nexus/internal/ingestion"
	"github.com/nexusai/nexus/internal/logging"
	"github.com/nexusai/nexus/internal/store"
)

// NewIngestCmd constructs the `nexus ingest` command, which indexes local
// files into a chat session's document context.
func NewIngestCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Index local files into a chat session",
		Long: `Extract text from local files, chunk and embed it, and write the chunks
into the Qdrant vector store scoped to a chat session. Supported formats
are .txt, .md, and .pdf.

When --session is omitted a new session is created and its ID printed, so
the files can be chatted about immediately via the API or a later command.

Required environment variables:
  GEMINI_API_KEY       Google AI Studio API key (for embeddings)
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: nexus-docs)

Examples:
  nexus ingest report.pdf
  nexus ingest --session 4f7c... notes.md appendix.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			client, err := buildGeminiClient(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			embedder := buildEmbedder(client)

			vectors, err := buildVectorStore(ctx, embedder.Dimensions())
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = vectors.Close() }()

			dbPath := os.Getenv("NEXUS_DB")
			if dbPath == "" {
				dbPath, err = store.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("ingest: could not resolve record store path: %w", err)
				}
			}
			records, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("ingest: failed to open record store: %w", err)
			}
			defer func() { _ = records.Close() }()

			if sessionID == "" {
				sess, err := records.CreateSession(ctx, "CLI ingest")
				if err != nil {
					return fmt.Errorf("ingest: failed to create session: %w", err)
				}
				sessionID = sess.ID
				fmt.Printf("created session %s\n", sessionID)
			} else if _, err := records.GetSession(ctx, sessionID); err != nil {
				return fmt.Errorf("ingest: session %s: %w", sessionID, err)
			}

			pipeline, err := ingestion.NewPipeline(embedder, vectors, &ingestion.Config{
				ChunkSize:    getEnvInt("INGEST_CHUNK_SIZE", 0),
				ChunkOverlap: getEnvInt("INGEST_CHUNK_OVERLAP", 0),
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			var failures int
			for _, path := range args {
				if err := ingestFile(ctx, records, pipeline, sessionID, path); err != nil {
					log.Error("file ingestion failed", slog.String("file", path), slog.Any("error", err))
					failures++
				}
			}
			if failures > 0 {
				return fmt.Errorf("ingest: %d of %d files failed", failures, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session ID to attach the documents to (default: create a new session)")

	return cmd
}

// ingestFile extracts, chunks, and indexes one file, recording the outcome
// on the session's document record.
func ingestFile(ctx context.Context, records *store.Store, pipeline *ingestion.Pipeline, sessionID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	name := filepath.Base(path)

	text, err := extract.Text(name, data)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	doc, err := records.CreateDocument(ctx, sessionID, name)
	if err != nil {
		return fmt.Errorf("create document record: %w", err)
	}

	res, ingestErr := pipeline.Ingest(ctx, doc.ID, sessionID, name, text)

	status := store.StatusReady
	switch {
	case res.Aborted:
		status = store.StatusFailed
		if res.ChunksWritten > 0 {
			status = store.StatusPartial
		}
	case res.ChunksFailed > 0:
		status = store.StatusPartial
	}
	if err := records.SetDocumentIngestion(ctx, doc.ID, status, res.ChunksWritten, res.ChunksFailed); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	if ingestErr != nil {
		return fmt.Errorf("pipeline: %w", ingestErr)
	}

	fmt.Printf("%s: %s (%d chunks", name, status, res.ChunksWritten)
	if res.ChunksFailed > 0 {
		fmt.Printf(", %d failed", res.ChunksFailed)
	}
	fmt.Println(")")
	return nil
}
