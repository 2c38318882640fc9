package web

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/RegistryPortal/internal/auth"
	"github.com/JonMunkholm/RegistryPortal/internal/portal"
)

// handleRegister creates an account and mails its sign-up code.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	user, err := s.portal.Register(WithRequestMetadata(r.Context(), r), portal.Registration{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		CNIC:     req.CNIC,
		Phone:    req.Phone,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// handleCheckCnic tells the sign-up form whether a CNIC is taken.
func (s *Server) handleCheckCnic(w http.ResponseWriter, r *http.Request) {
	var req cnicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	exists, err := s.portal.CheckCnic(r.Context(), req.CNIC)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// handleSignIn checks the password and mails a login code.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if err := s.portal.SignIn(WithRequestMetadata(r.Context(), r), req.Email, req.Password); err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "code_sent"})
}

// handleChallenge mails a fresh login code.
func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if err := s.portal.SendLoginChallenge(r.Context(), req.Email); err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "code_sent"})
}

// handleVerify exchanges a one-time code for a session. The token is
// returned in the body and set as an HttpOnly cookie.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	purpose, err := auth.ParseOTPPurpose(req.Type)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	sess, err := s.portal.Verify(WithRequestMetadata(r.Context(), r), req.Email, req.Code, purpose)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	state := sess.State()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    sess.Token(),
		Path:     "/",
		Expires:  state.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, verifyResponse{Token: sess.Token(), State: state})
}

// handleSignOut revokes the session and clears the cookie.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.portal.SignOut(r.Context(), sessionOf(r)); err != nil {
		respondErr(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleSession returns the caller's session state.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionOf(r).State())
}

// handleUpdateProfile changes the caller's own name or phone.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	user, err := s.portal.UpdateProfile(r.Context(), sessionOf(r), portal.ProfileUpdate{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
