package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/crepilot/crepilot/internal/document"
)

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context())
	if err != nil {
		s.logger.Error("listing documents", "error", err)
		s.writeError(w, http.StatusInternalServerError, "listing documents")
		return
	}
	if docs == nil {
		docs = []document.Document{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("getting document", "error", err)
		s.writeError(w, http.StatusInternalServerError, "getting document")
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

// handleUploadDocument accepts a multipart upload, records it as pending,
// and kicks off ingestion in the background. The response is 202 with the
// record; clients poll document status for the outcome. Unsupported formats
// are accepted here and end up failed, the pipeline decides.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "reading upload")
		return
	}

	doc, err := s.documents.Create(r.Context(), document.Document{
		ID:          uuid.NewString(),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		SizeBytes:   int64(len(data)),
		Status:      document.StatusPending,
	})
	if err != nil {
		s.logger.Error("creating document record", "error", err)
		s.writeError(w, http.StatusInternalServerError, "creating document record")
		return
	}

	// Ingestion runs on the background context so it survives the response;
	// Wait() blocks shutdown until it finishes.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.pipeline.Ingest(s.bgCtx, doc.ID, doc.Filename, data); err != nil {
			s.logger.Warn("background ingestion failed", "id", doc.ID, "error", err)
		}
	}()

	s.writeJSON(w, http.StatusAccepted, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.pipeline.Remove(r.Context(), id); err != nil {
		status := statusFromError(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("removing document", "id", id, "error", err)
			s.writeError(w, status, "removing document")
			return
		}
		s.writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
