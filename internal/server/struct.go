package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nexusai/nexus/internal/fallback"
	"github.com/nexusai/nexus/internal/ingestion"
	"github.com/nexusai/nexus/internal/rag"
	"github.com/nexusai/nexus/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// TopK is the number of passages retrieved per grounded chat turn.
	// Defaults to rag.DefaultTopK if zero.
	TopK int
}

// generator is the interface handleChat calls to produce a model response.
// *fallback.Orchestrator satisfies it; tests inject a fake.
type generator interface {
	// Generate runs the model cascade for one prompt on behalf of userID.
	Generate(ctx context.Context, userID, prompt, systemInstruction string) (*fallback.Result, error)
	// CheckAvailability reports whether the hierarchy is accepting requests.
	CheckAvailability() (bool, string)
}

// ingester is the interface the upload handler calls to index a document.
// *ingestion.Pipeline satisfies it; tests inject a fake.
type ingester interface {
	Ingest(ctx context.Context, documentID, sessionID, documentName, fullText string) (*ingestion.Result, error)
}

// cleaner is the interface the delete handlers call to remove vectors.
// *cleanup.Worker satisfies it; tests inject a fake.
type cleaner interface {
	DeleteSessionVectors(ctx context.Context, sessionID string) error
	DeleteDocumentVectors(ctx context.Context, documentID string) error
}

// Server is the HTTP server that exposes the document chat API.
type Server struct {
	// generator produces model responses with rate-limit fallback.
	generator generator
	// retriever fetches grounding passages for a session.
	retriever rag.Retriever
	// ingester indexes uploaded documents.
	ingester ingester
	// cleaner removes vectors for deleted sessions and documents.
	cleaner cleaner
	// records is the relational store for sessions, documents, and messages.
	records *store.Store
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// SessionID is the conversation to answer within.
	SessionID string `json:"sessionId"`
	// Message is the user's question.
	Message string `json:"message"`
}

// chatResponse is the JSON response for POST /api/chat.
type chatResponse struct {
	// Reply is the generated answer text.
	Reply string `json:"reply"`
	// Model is the display name of the model that answered.
	Model string `json:"model"`
	// Grounded is true when document context was injected into the prompt.
	Grounded bool `json:"grounded"`
	// Sources lists the document names that contributed context.
	Sources []string `json:"sources,omitempty"`
}

// availabilityResponse is the JSON response for GET /api/availability.
type availabilityResponse struct {
	// Available is false while the whole model hierarchy is rate-limited.
	Available bool `json:"available"`
	// Message is a user-presentable status line.
	Message string `json:"message"`
}

// createSessionRequest is the JSON body for POST /api/sessions.
type createSessionRequest struct {
	// Title is the display name for the new session.
	Title string `json:"title"`
}

// sessionResponse is the JSON shape of one session in API responses.
type sessionResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// documentResponse is the JSON shape of one document in API responses.
type documentResponse struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	ChunksWritten int       `json:"chunksWritten"`
	ChunksFailed  int       `json:"chunksFailed"`
	CreatedAt     time.Time `json:"createdAt"`
}

// errorResponse is the JSON body for error replies.
type errorResponse struct {
	// Error is a user-presentable description of what went wrong.
	Error string `json:"error"`
	// RetryAfterSeconds is set on rate-limit rejections.
	RetryAfterSeconds int `json:"retryAfterSeconds,omitempty"`
}
