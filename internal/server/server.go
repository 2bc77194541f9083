// Package server exposes the document service over HTTP. Every route lives
// under a configurable base path; all of them except login, health and
// readiness require a session cookie.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/mesh-intelligence/seguimientos/internal/auth"
	"github.com/mesh-intelligence/seguimientos/internal/logger"
	"github.com/mesh-intelligence/seguimientos/internal/metrics"
	"github.com/mesh-intelligence/seguimientos/internal/service"
	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// SessionCookie is the name of the login session cookie.
const SessionCookie = "session"

// DefaultMaxUploadBytes caps the body of an upload request.
const DefaultMaxUploadBytes = 32 << 20

// Sessions issues and resolves login sessions.
type Sessions interface {
	Create(identity types.Identity) (auth.Session, error)
	Lookup(token string) (types.Identity, error)
	Delete(token string) error
	TTL() time.Duration
}

// Config holds the HTTP settings.
type Config struct {
	BasePath       string
	CookieSecure   bool
	MaxUploadBytes int64
}

// Server routes HTTP requests to the document service.
type Server struct {
	cfg      Config
	base     string
	svc      *service.Service
	authn    types.Authenticator
	sessions Sessions
	log      *logger.Logger
	metrics  *metrics.Metrics
	ready    func(context.Context) error
	mux      *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics records HTTP metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithReadiness sets the check behind the readiness endpoint.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *Server) { s.ready = check }
}

// New builds the server and registers its routes.
func New(cfg Config, svc *service.Service, authn types.Authenticator, sessions Sessions, opts ...Option) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		cfg:      cfg,
		base:     NormalizeBasePath(cfg.BasePath),
		svc:      svc,
		authn:    authn,
		sessions: sessions,
		log:      logger.Nop(),
		ready:    func(context.Context) error { return nil },
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// NormalizeBasePath returns p with a leading slash and no trailing slash.
// The root path normalizes to "".
func NormalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// path joins the base path and a route suffix.
func (s *Server) path(suffix string) string {
	return s.base + suffix
}

func (s *Server) routes() {
	s.handle("GET", "/{$}", s.handleIndex)
	s.handle("POST", "/login", s.handleLogin)
	s.handle("GET", "/health", s.handleHealth)
	s.handle("GET", "/ready", s.handleReady)

	s.handleAuth("POST", "/logout", s.handleLogout)
	s.handleAuth("GET", "/dashboard", s.handleDashboard)
	s.handleAuth("POST", "/create-document", s.handleCreateDocument)
	s.handleAuth("DELETE", "/documents/{folder}", s.handleDeleteDocument)
	s.handleAuth("GET", "/document/{folder}/{follow_up}", s.handleFollowUp)
	s.handleAuth("GET", "/get-seguimiento/{folder}/{follow_up}", s.handleGetRecord)
	s.handleAuth("POST", "/save-seguimiento/{folder}/{follow_up}", s.handleSaveRecord)
	s.handleAuth("POST", "/add-comment/{folder}/{n}", s.handleAddComment)
	s.handleAuth("POST", "/upload-file/{folder}/{n}", s.handleUpload)
	s.handleAuth("GET", "/image/{folder}/{follow_up}/{filename}", s.handleImage)
	s.handleAuth("GET", "/report/{folder}/{follow_up}", s.handleReport)
}

// handle registers an unauthenticated route.
func (s *Server) handle(method, suffix string, h http.HandlerFunc) {
	route := method + " " + suffix
	s.mux.Handle(method+" "+s.path(suffix), s.instrument(route, recoverer(h)))
}

// handleAuth registers a route behind the session check.
func (s *Server) handleAuth(method, suffix string, h authHandler) {
	route := method + " " + suffix
	s.mux.Handle(method+" "+s.path(suffix), s.instrument(route, recoverer(s.requireAuth(h))))
}

// Handler returns the root handler with request logging attached.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		event := hlog.FromRequest(r).Info()
		if status >= http.StatusInternalServerError {
			event = hlog.FromRequest(r).Error()
		}
		event.
			Str("component", "http").
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration_ms", duration).
			Msg("request completed")
	})(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.RequestIDHandler("request_id", "X-Request-Id")(h)
	h = hlog.NewHandler(s.zerolog())(h)
	return h
}

func (s *Server) zerolog() zerolog.Logger {
	return *s.log.Zerolog()
}

// BasePath returns the normalized base path.
func (s *Server) BasePath() string {
	return s.base
}
