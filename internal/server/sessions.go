package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nexusai/nexus/internal/logging"
	"github.com/nexusai/nexus/internal/store"
)

// handleSessionCreate handles POST /api/sessions.
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		req.Title = "New chat"
	}

	sess, err := s.records.CreateSession(r.Context(), req.Title)
	if err != nil {
		log.Error("create session failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// handleSessionList handles GET /api/sessions.
func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	sessions, err := s.records.ListSessions(r.Context())
	if err != nil {
		log.Error("list sessions failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionResponse(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSessionDelete handles DELETE /api/sessions/{id}. Vector cleanup runs
// first and is best-effort: its failure is logged by the cleanup worker but
// never blocks deletion of the session's own records.
func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	id := r.PathValue("id")

	if _, err := s.records.GetSession(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Error("session lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if s.cleaner != nil {
		if err := s.cleaner.DeleteSessionVectors(r.Context(), id); err != nil {
			log.Warn("session vector cleanup failed, continuing with delete",
				slog.String("session_id", id),
				slog.Any("error", err),
			)
		}
	}

	if err := s.records.DeleteSession(r.Context(), id); err != nil {
		log.Error("delete session failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleMessageList handles GET /api/sessions/{id}/messages.
func (s *Server) handleMessageList(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	id := r.PathValue("id")

	if _, err := s.records.GetSession(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Error("session lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	msgs, err := s.records.RecentMessages(r.Context(), id, 200)
	if err != nil {
		log.Error("list messages failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	type messageResponse struct {
		Role      string `json:"role"`
		Content   string `json:"content"`
		Model     string `json:"model,omitempty"`
		CreatedAt int64  `json:"createdAt"`
	}
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			Role:      string(m.Role),
			Content:   m.Content,
			Model:     m.ModelUsed,
			CreatedAt: m.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func toSessionResponse(sess *store.Session) sessionResponse {
	return sessionResponse{
		ID:        sess.ID,
		Title:     sess.Title,
		CreatedAt: sess.CreatedAt,
	}
}
