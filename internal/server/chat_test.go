package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nexusai/nexus/internal/fallback"
	"github.com/nexusai/nexus/internal/limiter"
	"github.com/nexusai/nexus/internal/rag"
	"github.com/nexusai/nexus/internal/store"
)

func postChat(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handleChat(w, req)
	return w
}

func TestHandleChat_MissingMessage(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, testDeps{})
	w := postChat(s, `{"sessionId":"abc"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, testDeps{})
	w := postChat(s, `not-json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_MessageTooLong(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, testDeps{})
	w := postChat(s, fmt.Sprintf(`{"sessionId":"abc","message":%q}`, strings.Repeat("x", 5001)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_UnknownSession(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, testDeps{})
	w := postChat(s, `{"sessionId":"no-such-session","message":"hi"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleChat_GeneralMode(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t, testDeps{})
	sess := newTestSession(t, deps.records)

	w := postChat(s, fmt.Sprintf(`{"sessionId":%q,"message":"hi there"}`, sess.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply != "hello" || resp.Model != "Model A" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Grounded {
		t.Error("turn without documents reported as grounded")
	}

	// A session with no documents never touches the retriever.
	if deps.retriever.calls != 0 {
		t.Errorf("retriever called %d times for a document-free session", deps.retriever.calls)
	}

	// Both turns were persisted after the successful generation.
	msgs, err := deps.records.RecentMessages(context.Background(), sess.ID, 10)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != store.RoleUser || msgs[1].Role != store.RoleAssistant {
		t.Errorf("persisted roles %s/%s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].ModelUsed != "model-a" {
		t.Errorf("assistant message model = %q", msgs[1].ModelUsed)
	}
}

func TestHandleChat_GroundedMode(t *testing.T) {
	t.Parallel()

	retriever := &fakeRetriever{chunks: []rag.Chunk{
		{DocumentName: "notes.txt", Text: "quarterly revenue grew"},
	}}
	s, deps := newTestServer(t, testDeps{retriever: retriever})
	sess := newTestSession(t, deps.records)

	doc, err := deps.records.CreateDocument(context.Background(), sess.ID, "notes.txt")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := deps.records.SetDocumentIngestion(context.Background(), doc.ID, store.StatusReady, 4, 0); err != nil {
		t.Fatalf("set ingestion: %v", err)
	}

	w := postChat(s, fmt.Sprintf(`{"sessionId":%q,"message":"what grew?"}`, sess.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Grounded {
		t.Error("grounded turn not reported as grounded")
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != "notes.txt" {
		t.Errorf("sources = %v", resp.Sources)
	}

	if !strings.Contains(deps.gen.lastPrompt, "[DOCUMENT CONTEXT]") {
		t.Error("prompt is missing the document context block")
	}
	if !strings.Contains(deps.gen.lastPrompt, "quarterly revenue grew") {
		t.Error("prompt is missing the retrieved passage")
	}
}

func TestHandleChat_RetrievalFailureDegradesGracefully(t *testing.T) {
	t.Parallel()

	retriever := &fakeRetriever{err: errors.New("qdrant unreachable")}
	s, deps := newTestServer(t, testDeps{retriever: retriever})
	sess := newTestSession(t, deps.records)

	doc, err := deps.records.CreateDocument(context.Background(), sess.ID, "notes.txt")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := deps.records.SetDocumentIngestion(context.Background(), doc.ID, store.StatusReady, 4, 0); err != nil {
		t.Fatalf("set ingestion: %v", err)
	}

	w := postChat(s, fmt.Sprintf(`{"sessionId":%q,"message":"hi"}`, sess.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 despite retrieval failure, got %d", w.Code)
	}

	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Grounded {
		t.Error("failed retrieval reported as grounded")
	}
}

func TestHandleChat_RateLimitRejection(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{err: &limiter.RejectionError{
		Tier:       limiter.TierPerMinute,
		RetryAfter: 12 * time.Second,
		Message:    "Too many requests. Please wait a moment before sending another message.",
	}}
	s, deps := newTestServer(t, testDeps{gen: gen})
	sess := newTestSession(t, deps.records)

	w := postChat(s, fmt.Sprintf(`{"sessionId":%q,"message":"hi"}`, sess.ID))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "12" {
		t.Errorf("Retry-After = %q, want 12", got)
	}

	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RetryAfterSeconds != 12 {
		t.Errorf("retryAfterSeconds = %d, want 12", resp.RetryAfterSeconds)
	}

	// Nothing is persisted for a rejected turn.
	msgs, err := deps.records.RecentMessages(context.Background(), sess.ID, 10)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("rejected turn persisted %d messages", len(msgs))
	}
}

func TestHandleChat_AllModelsExhausted(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{err: fallback.ErrAllModelsExhausted}
	s, deps := newTestServer(t, testDeps{gen: gen})
	sess := newTestSession(t, deps.records)

	w := postChat(s, fmt.Sprintf(`{"sessionId":%q,"message":"hi"}`, sess.ID))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestHandleChat_FatalGenerationError(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{err: errors.New("API key not valid")}
	s, deps := newTestServer(t, testDeps{gen: gen})
	sess := newTestSession(t, deps.records)

	w := postChat(s, fmt.Sprintf(`{"sessionId":%q,"message":"hi"}`, sess.ID))
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestHandleAvailability(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{available: false, message: "Service temporarily unavailable. Please try again in 90 seconds."}
	s, _ := newTestServer(t, testDeps{gen: gen})

	req := httptest.NewRequest(http.MethodGet, "/api/availability", nil)
	w := httptest.NewRecorder()
	s.handleAvailability(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp availabilityResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Available {
		t.Error("expected unavailable")
	}
	if !strings.Contains(resp.Message, "90 seconds") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestUserIDFor(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	r.RemoteAddr = "198.51.100.7:4431"
	if got := userIDFor(r); got != "198.51.100.7" {
		t.Errorf("userIDFor = %q, want the client IP", got)
	}

	r.Header.Set("X-User-ID", "user-42")
	if got := userIDFor(r); got != "user-42" {
		t.Errorf("userIDFor = %q, want the header value", got)
	}
}
