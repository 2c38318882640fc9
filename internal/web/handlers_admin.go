package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/JonMunkholm/RegistryPortal/internal/portal"
	"github.com/go-chi/chi/v5"
)

// handleImportDatabase replaces or merges the session's records from a
// JSON payload and pins the session.
func (s *Server) handleImportDatabase(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	state, err := s.portal.ImportDatabase(r.Context(), sessionOf(r), portal.ImportData{
		Users: req.Users,
		Files: req.Files,
	}, req.Destructive)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleImportCSV imports the multipart "file" field with the layout named
// in the path. Form values "destructive" and "push" are booleans.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize+maxMultipartMemory)
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

	destructive, err := formBool(r, "destructive", true)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	push, err := formBool(r, "push", false)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	report, err := s.portal.ImportCSV(r.Context(), sessionOf(r), portal.CSVImport{
		TableKey:    chi.URLParam(r, "tableKey"),
		FileName:    header.Filename,
		Body:        file,
		Destructive: destructive,
		Push:        push,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func formBool(r *http.Request, key string, def bool) (bool, error) {
	v := r.FormValue(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", errInvalidRequest, key)
	}
	return b, nil
}

// handleReset restores the seed records and unpins the session.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	state, err := s.portal.ResetDatabase(r.Context(), sessionOf(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleCloudSync pushes the session's files to the backend in batches.
func (s *Server) handleCloudSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.portal.SyncToCloud(r.Context(), sessionOf(r))
	if err != nil {
		var be *core.BatchError
		if errors.As(err, &be) {
			respondError(w, r, err, http.StatusBadGateway)
			return
		}
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleImportStatus reports import slot usage.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.portal.Limiter().Status())
}

// handleListLayouts returns the known CSV layouts.
func (s *Server) handleListLayouts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.portal.Layouts())
}

// handleDownloadTemplate returns a CSV with just the layout's header row.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")
	data, err := s.portal.Template(tableKey)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", tableKey+"_template.csv"))
	if _, err := w.Write(data); err != nil {
		respondError(w, r, fmt.Errorf("write template: %w", err), http.StatusInternalServerError)
	}
}

// handleListUsers returns users, filtered by ?q=.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.portal.ListUsers(r.Context(), sessionOf(r), r.URL.Query().Get("q"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	user, err := s.portal.UpdateUser(r.Context(), sessionOf(r), chi.URLParam(r, "id"), req.update())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.portal.DeleteUser(r.Context(), sessionOf(r), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAuditLog lists audit entries. Query parameters: action, since
// (RFC 3339), limit and offset.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.AuditLogFilter{Action: core.AuditAction(q.Get("action"))}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondErr(w, r, fmt.Errorf("%w: since must be RFC 3339", errInvalidRequest))
			return
		}
		filter.Since = since
	}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondErr(w, r, fmt.Errorf("%w: %s must be a non-negative number", errInvalidRequest, key))
			return
		}
		*dst = n
	}

	entries, err := s.portal.ListAudit(r.Context(), sessionOf(r), filter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
