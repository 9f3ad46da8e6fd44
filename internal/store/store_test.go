package store

import (
	"context"
	"errors"
	"testing"
)

// openTestStore opens an in-memory Store for use in tests.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_SessionLifecycle(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "billing questions")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("session has empty id")
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Title != "billing questions" {
		t.Errorf("title: want %q, got %q", "billing questions", got.Title)
	}

	if err := s.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := s.GetSession(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted session: want ErrNotFound, got %v", err)
	}
}

func Test_Store_DeleteMissingSessionIsNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if err := s.DeleteSession(context.Background(), "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func Test_Store_DeleteSessionCascades(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "t")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	doc, err := s.CreateDocument(ctx, sess.ID, "notes.txt")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := s.AppendMessage(ctx, sess.ID, RoleUser, "hello", ""); err != nil {
		t.Fatalf("append message: %v", err)
	}

	if err := s.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	if _, err := s.GetDocument(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("document survived session delete: %v", err)
	}
	msgs, err := s.RecentMessages(ctx, sess.ID, 10)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages survived session delete: %d left", len(msgs))
	}
}

func Test_Store_DocumentIngestionOutcome(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "t")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	doc, err := s.CreateDocument(ctx, sess.ID, "report.pdf")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if doc.Status != StatusPending {
		t.Errorf("new document status: want %q, got %q", StatusPending, doc.Status)
	}

	if err := s.SetDocumentIngestion(ctx, doc.ID, StatusPartial, 90, 10); err != nil {
		t.Fatalf("set ingestion: %v", err)
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.Status != StatusPartial || got.ChunksWritten != 90 || got.ChunksFailed != 10 {
		t.Errorf("document = %+v, want partial with 90/10 chunks", got)
	}
}

func Test_Store_SessionHasDocuments(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "t")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	has, err := s.SessionHasDocuments(ctx, sess.ID)
	if err != nil {
		t.Fatalf("has documents: %v", err)
	}
	if has {
		t.Error("fresh session reports documents")
	}

	doc, err := s.CreateDocument(ctx, sess.ID, "a.txt")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	// A pending document with no chunks does not count as content.
	has, err = s.SessionHasDocuments(ctx, sess.ID)
	if err != nil {
		t.Fatalf("has documents: %v", err)
	}
	if has {
		t.Error("chunkless document counted as content")
	}

	if err := s.SetDocumentIngestion(ctx, doc.ID, StatusReady, 12, 0); err != nil {
		t.Fatalf("set ingestion: %v", err)
	}
	has, err = s.SessionHasDocuments(ctx, sess.ID)
	if err != nil {
		t.Fatalf("has documents: %v", err)
	}
	if !has {
		t.Error("ingested document not counted as content")
	}
}

func Test_Store_ListDocumentsScopedToSession(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.CreateSession(ctx, "a")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	b, err := s.CreateSession(ctx, "b")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := s.CreateDocument(ctx, a.ID, "a1.txt"); err != nil {
		t.Fatalf("create document: %v", err)
	}
	if _, err := s.CreateDocument(ctx, b.ID, "b1.txt"); err != nil {
		t.Fatalf("create document: %v", err)
	}

	docs, err := s.ListDocuments(ctx, a.ID)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(docs) != 1 || docs[0].Name != "a1.txt" {
		t.Errorf("session a documents = %v, want only a1.txt", docs)
	}
}

func Test_Store_RecentMessagesOldestFirst(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "t")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	contents := []string{"first", "second", "third"}
	for i, c := range contents {
		role := RoleUser
		model := ""
		if i%2 == 1 {
			role = RoleAssistant
			model = "gemini-2.5-flash"
		}
		if err := s.AppendMessage(ctx, sess.ID, role, c, model); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := s.RecentMessages(ctx, sess.ID, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("want 3 messages, got %d", len(msgs))
	}
	for i, want := range contents {
		if msgs[i].Content != want {
			t.Errorf("msg[%d]: want %q, got %q", i, want, msgs[i].Content)
		}
	}
	if msgs[1].ModelUsed != "gemini-2.5-flash" {
		t.Errorf("assistant message lost its model: %+v", msgs[1])
	}
}

func Test_Store_RecentMessagesLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "t")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	for range 6 {
		if err := s.AppendMessage(ctx, sess.ID, RoleUser, "msg", ""); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := s.RecentMessages(ctx, sess.ID, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 4 {
		t.Errorf("want 4 messages, got %d", len(msgs))
	}
}
