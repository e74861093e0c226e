package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/IsmaHaa12/smp-announcement/internal/auth"
	"github.com/IsmaHaa12/smp-announcement/internal/config"
	"github.com/IsmaHaa12/smp-announcement/internal/livelist"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
	"github.com/IsmaHaa12/smp-announcement/internal/notify"
	"github.com/IsmaHaa12/smp-announcement/internal/session"
)

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	feeds    livelist.Feeds
	mailer   notify.Mailer
	profile  model.SchoolProfile
	log      logrus.FieldLogger
}

func NewServer(cfg config.Config, sessions *session.Manager, feeds livelist.Feeds, mailer notify.Mailer, profile model.SchoolProfile, log logrus.FieldLogger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("missing_jwt_secret")
	}
	if cfg.StreamKeepAlive <= 0 {
		cfg.StreamKeepAlive = 25 * time.Second
	}
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		feeds:    feeds,
		mailer:   mailer,
		profile:  profile,
		log:      log.WithField("component", "http"),
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/profile", s.handleProfile)
	r.With(s.sessionMiddleware).Get("/home", s.handleHome)

	r.Route("/auth", func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Post("/guest", s.handleEnterAsGuest)
		r.Post("/admin/login", s.handleAdminLogin)
		r.Post("/student/login", s.handleStudentLogin)
		r.With(s.requireSession).Post("/logout", s.handleLogout)
	})

	r.Route("/session", func(r chi.Router) {
		r.Use(s.sessionMiddleware, s.requireSession)
		r.Post("/restore", s.handleRestore)
		r.Get("/", s.handleGetSession)
		r.Get("/stream", s.handleStreamSession)
	})

	r.Route("/announcements", func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Get("/", s.handleListAnnouncements)
		r.Get("/stream", s.handleStreamAnnouncements)
		r.With(s.requireSession, s.requireAdmin).Post("/", s.handleCreateAnnouncement)
		r.With(s.requireSession, s.requireAdmin).Patch("/{id}", s.handlePatchAnnouncement)
		r.With(s.requireSession, s.requireAdmin).Delete("/{id}", s.handleDeleteAnnouncement)
	})

	r.Route("/events", func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Get("/", s.handleListEvents)
		r.Get("/calendar", s.handleCalendar)
		r.Get("/stream", s.handleStreamEvents)
		r.With(s.requireSession, s.requireAdmin).Post("/", s.handleCreateEvent)
		r.With(s.requireSession, s.requireAdmin).Patch("/{id}", s.handlePatchEvent)
		r.With(s.requireSession, s.requireAdmin).Delete("/{id}", s.handleDeleteEvent)
	})

	r.Route("/messages", func(r chi.Router) {
		r.Use(s.sessionMiddleware, s.requireSession)
		r.Get("/", s.handleListMessages)
		r.Get("/stream", s.handleStreamMessages)
		r.With(s.requireAdmin).Post("/", s.handleCreateMessage)
		r.With(s.requireAdmin).Patch("/{id}", s.handlePatchMessage)
		r.With(s.requireAdmin).Delete("/{id}", s.handleDeleteMessage)
	})

	return r
}

func (s *Server) handleProfile(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.profile)
}

// sessionMiddleware resolves an optional bearer token to the live session.
// Requests without a token continue as anonymous guests.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claimsFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.currentSession(r).IsAdmin() {
			writeError(w, http.StatusForbidden, "admin_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// currentSession is the live session of the caller, as known to any
// instance sharing the session store; anonymous callers get an unnamed guest
// session.
func (s *Server) currentSession(r *http.Request) model.Session {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		return model.GuestSession("")
	}
	return s.sessions.Resolve(r.Context(), claims.SessionID)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, livelist.ErrForbidden):
		writeError(w, http.StatusForbidden, "admin_only")
	case errors.Is(err, livelist.ErrInvalid):
		writeError(w, http.StatusBadRequest, "invalid_content")
	case errors.Is(err, livelist.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	default:
		s.log.WithError(err).Error("store request failed")
		writeError(w, http.StatusInternalServerError, "store_error")
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
