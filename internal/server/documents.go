package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nexusai/nexus/internal/extract"
	"github.com/nexusai/nexus/internal/logging"
	"github.com/nexusai/nexus/internal/store"
)

// handleDocumentUpload handles POST /api/documents. The request is multipart
// form data with a "sessionId" field and a "file" part. The document record
// is created in pending state, then updated with the ingestion outcome; an
// aborted ingestion reports partial accounting rather than silent success.
func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if err := r.ParseMultipartForm(extract.MaxFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	sessionID := r.FormValue("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if _, err := s.records.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Error("session lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, extract.MaxFileSize+1))
	if err != nil {
		log.Error("read upload failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	text, err := extract.Text(header.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrUnsupportedType):
			writeError(w, http.StatusUnsupportedMediaType, "only .txt, .md, and .pdf files are supported")
		case errors.Is(err, extract.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		default:
			log.Warn("text extraction failed",
				slog.String("file", header.Filename),
				slog.Any("error", err),
			)
			writeError(w, http.StatusUnprocessableEntity, "could not extract text from file")
		}
		return
	}

	doc, err := s.records.CreateDocument(r.Context(), sessionID, header.Filename)
	if err != nil {
		log.Error("create document failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	res, ingestErr := s.ingester.Ingest(r.Context(), doc.ID, sessionID, doc.Name, text)

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
	if err := s.records.SetDocumentIngestion(r.Context(), doc.ID, status, res.ChunksWritten, res.ChunksFailed); err != nil {
		log.Error("record ingestion outcome failed", slog.Any("error", err))
	}
	doc.Status = status
	doc.ChunksWritten = res.ChunksWritten
	doc.ChunksFailed = res.ChunksFailed

	s.metrics.ingestChunksTotal.WithLabelValues("written").Add(float64(res.ChunksWritten))
	s.metrics.ingestChunksTotal.WithLabelValues("failed").Add(float64(res.ChunksFailed))

	if ingestErr != nil {
		log.Error("ingestion failed",
			slog.String("document_id", doc.ID),
			slog.Int("written", res.ChunksWritten),
			slog.Int("failed", res.ChunksFailed),
			slog.Any("error", ingestErr),
		)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":    "document was only partially indexed",
			"document": toDocumentResponse(doc),
		})
		return
	}

	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

// handleDocumentList handles GET /api/documents?sessionId=...
func (s *Server) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	docs, err := s.records.ListDocuments(r.Context(), sessionID)
	if err != nil {
		log.Error("list documents failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, toDocumentResponse(&docs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDocumentDelete handles DELETE /api/documents/{id}. Vector cleanup is
// best-effort; the document record is removed even when cleanup fails.
func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	id := r.PathValue("id")

	if _, err := s.records.GetDocument(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		log.Error("document lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if s.cleaner != nil {
		if err := s.cleaner.DeleteDocumentVectors(r.Context(), id); err != nil {
			log.Warn("document vector cleanup failed, continuing with delete",
				slog.String("document_id", id),
				slog.Any("error", err),
			)
		}
	}

	if err := s.records.DeleteDocument(r.Context(), id); err != nil {
		log.Error("delete document failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toDocumentResponse(doc *store.Document) documentResponse {
	return documentResponse{
		ID:            doc.ID,
		SessionID:     doc.SessionID,
		Name:          doc.Name,
		Status:        doc.Status,
		ChunksWritten: doc.ChunksWritten,
		ChunksFailed:  doc.ChunksFailed,
		CreatedAt:     doc.CreatedAt,
	}
}
