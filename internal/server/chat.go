package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nexusai/nexus/internal/fallback"
	"github.com/nexusai/nexus/internal/limiter"
	"github.com/nexusai/nexus/internal/logging"
	"github.com/nexusai/nexus/internal/rag"
	"github.com/nexusai/nexus/internal/store"
)

// handleChat handles POST /api/chat. It retrieves grounding context when the
// session has documents, composes the prompt, and runs the model cascade.
// Messages are persisted only after a successful generation so a failed turn
// never leaves a user message without a reply.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if len([]rune(req.Message)) > maxMessageLength {
		writeError(w, http.StatusBadRequest, "message too long")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	if _, err := s.records.GetSession(r.Context(), req.SessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Error("session lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	history, err := s.records.RecentMessages(r.Context(), req.SessionID, historyMessages)
	if err != nil {
		log.Error("history lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Grounded mode only applies when the session has indexed content.
	var docNames []string
	var passages []rag.Chunk
	hasDocs, err := s.records.SessionHasDocuments(r.Context(), req.SessionID)
	if err != nil {
		log.Error("document lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if hasDocs {
		docs, err := s.records.ListDocuments(r.Context(), req.SessionID)
		if err != nil {
			log.Error("document list failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		for _, d := range docs {
			docNames = append(docNames, d.Name)
		}

		if s.retriever != nil {
			passages, err = s.retriever.Retrieve(r.Context(), req.SessionID, req.Message, s.cfg.TopK)
			if err != nil {
				// Retrieval failure degrades to ungrounded generation
				// rather than failing the turn.
				log.Warn("retrieval failed, answering without context", slog.Any("error", err))
				passages = nil
			}
		}
	}

	prompt := composePrompt(req.Message, history, docNames, passages)

	result, err := s.generator.Generate(r.Context(), userIDFor(r), prompt, "")
	if err != nil {
		outcome := s.writeGenerateError(w, log, err)
		s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		return
	}

	if err := s.records.AppendMessage(r.Context(), req.SessionID, store.RoleUser, req.Message, ""); err != nil {
		log.Error("persist user message failed", slog.Any("error", err))
	}
	if err := s.records.AppendMessage(r.Context(), req.SessionID, store.RoleAssistant, result.Text, result.ModelUsed); err != nil {
		log.Error("persist assistant message failed", slog.Any("error", err))
	}

	s.metrics.chatRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.chatDurationSeconds.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:    result.Text,
		Model:    result.ModelDisplayName,
		Grounded: len(passages) > 0,
		Sources:  rag.DocumentNames(passages),
	})
}

// writeGenerateError maps orchestration errors onto HTTP responses and
// returns the metric outcome label.
func (s *Server) writeGenerateError(w http.ResponseWriter, log *slog.Logger, err error) string {
	var rej *limiter.RejectionError
	if errors.As(err, &rej) {
		secs := int(rej.RetryAfter.Round(time.Second).Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:             rej.Message,
			RetryAfterSeconds: secs,
		})
		return "rejected"
	}

	if errors.Is(err, fallback.ErrAllModelsExhausted) {
		writeError(w, http.StatusServiceUnavailable,
			"All models are currently busy. Please try again in a few minutes.")
		return "exhausted"
	}

	log.Error("generation failed", slog.Any("error", err))
	writeError(w, http.StatusBadGateway, "generation failed")
	return "error"
}

// userIDFor derives the rate-limiting identity for a request: the X-User-ID
// header when present, otherwise the client IP.
func userIDFor(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
