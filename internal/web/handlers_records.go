package web

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/JonMunkholm/RegistryPortal/internal/web/views"
	"github.com/go-chi/chi/v5"
)

const maxMultipartMemory = 8 << 20

// handleDashboard returns the caller's files and totals.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.portal.Dashboard(r.Context(), sessionOf(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// handleSync refreshes the caller's cached files from the backend.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	sess := sessionOf(r)
	outcome, err := s.portal.SyncPropertyRecords(r.Context(), sess)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome": outcome,
		"session": sess.State(),
	})
}

// handleListFiles returns all files, filtered by ?q=. Admin only.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.portal.ListFiles(r.Context(), sessionOf(r), r.URL.Query().Get("q"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// handleGetFile returns one file the caller may see.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.portal.GetFile(r.Context(), sessionOf(r), chi.URLParam(r, "fileNo"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleStatementPage renders a printable account statement.
func (s *Server) handleStatementPage(w http.ResponseWriter, r *http.Request) {
	sess := sessionOf(r)
	f, err := s.portal.GetFile(r.Context(), sess, chi.URLParam(r, "fileNo"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.StatementPage(f, sess.User()).Render(r.Context(), w); err != nil {
		respondError(w, r, fmt.Errorf("render statement: %w", err), http.StatusInternalServerError)
	}
}

// handleNotify stamps a file as notified. Admin only.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	f, err := s.portal.UpdateLastNotified(r.Context(), sessionOf(r), chi.URLParam(r, "fileNo"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleUploadStatement stores the multipart "file" field as the file's
// statement document. Admin only.
func (s *Server) handleUploadStatement(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Storage.MaxStatementSize)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errInvalidRequest, err), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: missing file: %v", errInvalidRequest, err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	f, err := s.portal.AttachStatement(r.Context(), sessionOf(r), chi.URLParam(r, "fileNo"), filepath.Base(header.Filename), file)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleStatementDocument serves a file's uploaded statement to anyone who
// may see the file.
func (s *Server) handleStatementDocument(w http.ResponseWriter, r *http.Request) {
	f, err := s.portal.GetFile(r.Context(), sessionOf(r), chi.URLParam(r, "fileNo"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if s.statements == nil || f.UploadedStatementURL == "" {
		respondErr(w, r, fmt.Errorf("statement for %s: %w", f.FileNo, core.ErrFileNotFound))
		return
	}
	key, ok := s.statements.KeyFromURL(f.UploadedStatementURL)
	if !ok {
		respondErr(w, r, errors.New("statement url is not served locally"))
		return
	}

	name := f.UploadedStatementName
	if name == "" {
		name = key
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeFile(w, r, filepath.Join(s.statements.Dir(), key))
}
