package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := s.portal.ListNotices(r.Context(), sessionOf(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notices)
}

// handlePublishNotice posts a notice. Admin only.
func (s *Server) handlePublishNotice(w http.ResponseWriter, r *http.Request) {
	var req noticeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	n, err := s.portal.PublishNotice(r.Context(), sessionOf(r), req.Title, req.Body, req.Category)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.portal.Inbox(r.Context(), sessionOf(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	msg, err := s.portal.SendMessage(r.Context(), sessionOf(r), req.Recipients, req.Subject, req.Body)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.portal.MarkRead(r.Context(), sessionOf(r), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
