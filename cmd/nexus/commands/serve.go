package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nexusai/nexus/internal/cleanup"
	"github.com/nexusai/nexus/internal/fallback"
	"github.com/nexusai/nexus/internal/ingestion"
	"github.com/nexusai/nexus/internal/limiter"
	"github.com/nexusai/nexus/internal/logging"
	"github.com/nexusai/nexus/internal/rag"
	"github.com/nexusai/nexus/internal/server"
	"github.com/nexusai/nexus/internal/store"
)

// NewServeCmd constructs the `nexus serve` command, which starts the HTTP
// server exposing the chat, session, and document APIs.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Nexus HTTP server",
		Long: `Start the Nexus HTTP server on localhost.

The server exposes the chat, session, and document REST API, a Prometheus
/metrics endpoint, and health/readiness probes. Requires a reachable Qdrant
instance and a GEMINI_API_KEY.

Examples:
  nexus serve
  nexus serve --port 9090
  LIMIT_PER_MINUTE=20 nexus serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Env vars fill in whatever the flags left at their defaults,
			// so YAML/env config works without flags.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("SERVER_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("SERVER_PORT", port)
			}

			log.Info("serve starting")

			client, err := buildGeminiClient(ctx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			embedder := buildEmbedder(client)

			vectors, err := buildVectorStore(ctx, embedder.Dimensions())
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = vectors.Close() }()
			log.Info("vector store ready",
				slog.String("host", getEnvOrDefault("QDRANT_HOST", "localhost")),
				slog.String("collection", getEnvOrDefault("QDRANT_COLLECTION", "nexus-docs")))

			// Open the session/document/message record store. NEXUS_DB
			// overrides the default path (~/.nexus/nexus.db).
			dbPath := os.Getenv("NEXUS_DB")
			if dbPath == "" {
				dbPath, err = store.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("serve: could not resolve record store path: %w", err)
				}
			}
			records, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("serve: failed to open record store: %w", err)
			}
			defer func() { _ = records.Close() }()
			log.Info("record store opened", slog.String("path", dbPath))

			limits, stopLimiter := limiter.New(limiter.Config{
				PerMinute:      getEnvInt("LIMIT_PER_MINUTE", 0),
				PerHour:        getEnvInt("LIMIT_PER_HOUR", 0),
				GlobalInFlight: getEnvInt("LIMIT_GLOBAL_IN_FLIGHT", 0),
			}, log)
			defer stopLimiter()

			registry := prometheus.NewRegistry()

			orchestrator := fallback.New(client, limits, fallback.Config{
				Hierarchy: fallback.HierarchyFromEnv(),
			}, registry)

			retriever, err := rag.NewRetriever(embedder, vectors, rag.DefaultTopK)
			if err != nil {
				return fmt.Errorf("serve: failed to create retriever: %w", err)
			}

			pipeline, err := ingestion.NewPipeline(embedder, vectors, &ingestion.Config{
				ChunkSize:    getEnvInt("INGEST_CHUNK_SIZE", 0),
				ChunkOverlap: getEnvInt("INGEST_CHUNK_OVERLAP", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create ingestion pipeline: %w", err)
			}

			cleaner := cleanup.NewWorker(vectors, cleanup.Config{})

			srv, err := server.New(server.Deps{
				Generator: orchestrator,
				Retriever: retriever,
				Ingester:  pipeline,
				Cleaner:   cleaner,
				Records:   records,
				Registry:  registry,
			}, &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				Pingers: []server.Pinger{
					server.NewQdrantPinger(vectors.Client()),
					server.NewStorePinger(records.Ping),
				},
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
