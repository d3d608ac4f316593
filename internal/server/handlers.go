package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/docuchat/internal/models"
	"github.com/hyperjump/docuchat/internal/session"
	"go.uber.org/zap"
)

// uploadField is the multipart form field carrying documents.
const uploadField = "files"

// multipartMemory is how much of an upload ParseMultipartForm keeps in memory before spilling to disk.
const multipartMemory = 32 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.logger.Debug("session created", zap.String("session", sess.ID()))
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": sess.ID()})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	st, err := sess.Status(r.Context())
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete session request", zap.String("session", id))
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.upload.MaxFiles > 0 && s.upload.MaxFileBytes > 0 {
		// Room for every file at its cap plus form overhead.
		r.Body = http.MaxBytesReader(w, r.Body, int64(s.upload.MaxFiles)*s.upload.MaxFileBytes+(1<<20))
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("no files in form field %q", uploadField))
		return
	}
	if s.upload.MaxFiles > 0 && len(headers) > s.upload.MaxFiles {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("too many files: %d (max %d)", len(headers), s.upload.MaxFiles))
		return
	}

	docs := make([]*models.Document, 0, len(headers))
	for _, fh := range headers {
		name := filepath.Base(fh.Filename)
		if !s.upload.AllowsExtension(filepath.Ext(name)) {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("file type not allowed: %s", name))
			return
		}
		if s.upload.MaxFileBytes > 0 && fh.Size > s.upload.MaxFileBytes {
			s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file too large: %s", name))
			return
		}
		content, err := readUpload(fh)
		if err != nil {
			s.logger.Error("reading upload failed", zap.String("file", name), zap.Error(err))
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		docs = append(docs, &models.Document{Source: name, Content: content})
	}

	s.logger.Debug("process documents request", zap.String("session", sess.ID()), zap.Int("files", len(docs)))
	report, err := sess.ProcessDocuments(r.Context(), docs)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return b, nil
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ask request", zap.String("session", sess.ID()), zap.Int("top_k", req.TopK))
	ans, err := sess.Ask(r.Context(), req)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ans)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	msgs, err := sess.Transcript(r.Context())
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (s *Server) handleWatchStatus(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"directory":  s.watch.Directory(),
		"session_id": s.watch.SessionID(),
	})
}

func (s *Server) handleWatchSync(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	report, err := s.watch.Sync(r.Context())
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

// respondFailure maps core errors to HTTP statuses.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	var (
		notReady   *models.IndexNotReadyError
		empty      *models.EmptyInputError
		extraction *models.ExtractionError
		generation *models.AnswerGenerationError
	)
	switch {
	case errors.As(err, &notReady):
		s.respondError(w, http.StatusConflict, notReady.Error())
	case errors.As(err, &empty), errors.As(err, &extraction):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &generation):
		s.logger.Error("answer generation failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, models.ErrInvalidQuestion):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrSessionNotFound):
		s.respondError(w, http.StatusNotFound, "session not found")
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
