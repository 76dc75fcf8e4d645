package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/dukerupert/familytask/internal/handler"
	"github.com/dukerupert/familytask/internal/middleware"
	"github.com/dukerupert/familytask/internal/render"
	"github.com/dukerupert/familytask/internal/session"
	ws "github.com/dukerupert/familytask/internal/websocket"
)

type Config struct {
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	// AuthRate and AuthBurst bound login and registration attempts per IP.
	AuthRate  rate.Limit
	AuthBurst int
}

type Server struct {
	registry    *session.Registry
	hub         *ws.Hub
	h           *handler.Handler
	rateLimiter *middleware.RateLimiter
	cfg         Config
	logger      *slog.Logger
}

func New(registry *session.Registry, hub *ws.Hub, tmpl *render.Templates, cfg Config, logger *slog.Logger) *Server {
	if cfg.AuthBurst <= 0 {
		cfg.AuthBurst = 10
	}
	if cfg.AuthRate == 0 {
		cfg.AuthRate = rate.Limit(10.0 / 60.0)
	}
	return &Server{
		registry:    registry,
		hub:         hub,
		h:           handler.New(tmpl, logger.With("component", "handler")),
		rateLimiter: middleware.NewRateLimiter(cfg.AuthRate, cfg.AuthBurst),
		cfg:         cfg,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no session)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Everything else runs inside a browser session
	sessionMux := http.NewServeMux()
	sessionMux.HandleFunc("GET /", s.h.Page)
	sessionMux.HandleFunc("POST /login", s.rateLimitedHandler(s.h.Login))
	sessionMux.HandleFunc("POST /register", s.rateLimitedHandler(s.h.Register))
	sessionMux.HandleFunc("POST /logout", s.h.Logout)
	sessionMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, sessionToken, s.logger.With("component", "websocket")))

	// Partials require a signed-in session
	partials := http.NewServeMux()
	s.registerPartials(partials)
	sessionMux.Handle("/partials/", middleware.RequireUser(partials))

	outerMux.Handle("/", middleware.Sessions(s.registry, s.cfg.SecureCookies)(sessionMux))

	return middleware.RequestID(middleware.RequestLogger(s.logger.With("component", "http"))(outerMux))
}

func (s *Server) registerPartials(mux *http.ServeMux) {
	mux.HandleFunc("GET /partials/panels", s.h.Panels)

	// Family
	mux.HandleFunc("POST /partials/family/select", s.h.SelectFamily)
	mux.HandleFunc("POST /partials/family/create", s.h.CreateFamily)
	mux.HandleFunc("POST /partials/family/join", s.h.JoinFamily)
	mux.HandleFunc("POST /partials/family/invite/ack", s.h.AcknowledgeInvite)

	// Tasks
	mux.HandleFunc("POST /partials/tasks", s.h.CreateTask)
	mux.HandleFunc("POST /partials/tasks/random-assign", s.h.RandomAssign)
	mux.HandleFunc("POST /partials/tasks/{id}/assign", s.h.AssignTask)
	mux.HandleFunc("POST /partials/tasks/{id}/complete", s.h.CompleteTask)

	// Notifications
	mux.HandleFunc("GET /partials/notifications", s.h.Notifications)
	mux.HandleFunc("POST /partials/notifications/{id}/dismiss", s.h.DismissNotification)
}

func sessionToken(r *http.Request) (string, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return "", false
	}
	return sess.Token, true
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP)
	return rl(h).ServeHTTP
}
