package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/IsmaHaa12/smp-announcement/internal/auth"
	"github.com/IsmaHaa12/smp-announcement/internal/crypto"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
	"github.com/IsmaHaa12/smp-announcement/internal/session"
)

type adminLoginRequest struct {
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

type studentLoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

type sessionView struct {
	Role       model.Role `json:"role"`
	Email      string     `json:"email,omitempty"`
	UserID     string     `json:"userId,omitempty"`
	Guest      bool       `json:"isGuest"`
	CanEdit    bool       `json:"canEdit"`
	LastActive *time.Time `json:"lastActive,omitempty"`
}

type sessionResponse struct {
	AccessToken string      `json:"accessToken,omitempty"`
	Session     sessionView `json:"session"`
	// Persisted is false when the session applied but could not be saved.
	Persisted bool `json:"persisted"`
}

func viewSession(s model.Session) sessionView {
	view := sessionView{
		Role:    s.Role,
		Email:   s.Identity.Email,
		UserID:  s.Identity.UserID,
		Guest:   s.Guest,
		CanEdit: s.CanEdit(),
	}
	if !s.LastActive.IsZero() {
		last := s.LastActive
		view.LastActive = &last
	}
	return view
}

// sessionID reuses the caller's session when it sent a token and opens a
// new one otherwise.
func (s *Server) sessionID(r *http.Request) (string, error) {
	if claims := claimsFromContext(r.Context()); claims != nil {
		return claims.SessionID, nil
	}
	return crypto.NewSessionKey()
}

func (s *Server) issue(w http.ResponseWriter, status int, sess model.Session, persistErr error) {
	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		SessionID: sess.ID,
		Role:      string(sess.Role),
	})
	if err != nil {
		s.log.WithError(err).Error("issue access token")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, status, sessionResponse{
		AccessToken: token,
		Session:     viewSession(sess),
		Persisted:   persistErr == nil,
	})
}

func (s *Server) handleEnterAsGuest(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessionID(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	sess, err := s.sessions.EnterAsGuest(r.Context(), id)
	if !session.Applied(err) {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.issue(w, http.StatusOK, sess, err)
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if s.sessions.RemoteIdentity() && req.Email == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}
	id, err := s.sessionID(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	sess, err := s.sessions.LoginAsAdmin(r.Context(), id, session.Credentials{Email: req.Email, Password: req.Password})
	s.finishLogin(w, sess, err)
}

func (s *Server) handleStudentLogin(w http.ResponseWriter, r *http.Request) {
	var req studentLoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	id, err := s.sessionID(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	sess, err := s.sessions.LoginAsStudent(r.Context(), id, session.Credentials{Email: req.Email, Password: req.Password})
	s.finishLogin(w, sess, err)
}

func (s *Server) finishLogin(w http.ResponseWriter, sess model.Session, err error) {
	switch {
	case session.Applied(err):
		s.issue(w, http.StatusOK, sess, err)
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, session.ErrStudentLoginUnavailable):
		writeError(w, http.StatusNotImplemented, "student_login_unavailable")
	default:
		s.log.WithError(err).Error("login failed")
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	err := s.sessions.Logout(r.Context(), claims.SessionID)
	if !session.Applied(err) {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Session:   viewSession(s.sessions.Current(claims.SessionID)),
		Persisted: err == nil,
	})
}

// handleRestore is the foreground checkpoint: persisted state is reloaded
// and the idle timeout evaluated.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	sess, err := s.sessions.Restore(r.Context(), claims.SessionID)
	if err != nil && !session.Applied(err) {
		s.log.WithError(err).Error("restore failed")
		writeError(w, http.StatusInternalServerError, "store_error")
		return
	}
	s.issue(w, http.StatusOK, sess, err)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{
		Session:   viewSession(s.currentSession(r)),
		Persisted: true,
	})
}
