package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

type identityKey struct{}

// WithIdentity returns a context carrying the authenticated requester.
func WithIdentity(ctx context.Context, who types.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, who)
}

// IdentityFrom returns the requester stored by the auth middleware.
func IdentityFrom(ctx context.Context) (types.Identity, bool) {
	who, ok := ctx.Value(identityKey{}).(types.Identity)
	return who, ok
}

// authHandler is a handler that runs for an authenticated requester.
type authHandler func(w http.ResponseWriter, r *http.Request, who types.Identity)

// requireAuth resolves the session cookie before calling next. Rejected
// requests never reach the service: browsers are sent to the login page,
// everything else gets a 401.
func (s *Server) requireAuth(next authHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := s.authenticate(r)
		if err != nil {
			if errors.Is(err, types.ErrNotAuthenticated) && wantsHTML(r) {
				http.Redirect(w, r, s.path("/"), http.StatusFound)
				return
			}
			s.writeError(w, r, err)
			return
		}
		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user", who.UserID)
		})
		next(w, r.WithContext(WithIdentity(r.Context(), who)), who)
	}
}

func (s *Server) authenticate(r *http.Request) (types.Identity, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return types.Identity{}, types.ErrNotAuthenticated
	}
	return s.sessions.Lookup(c.Value)
}

// instrument records the request count, latency and in-flight gauge under
// route.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.metrics.RecordHTTPRequest(route, strconv.Itoa(sw.status), time.Since(start))
	})
}

// recoverer turns a handler panic into a 500.
func recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				hlog.FromRequest(r).Error().
					Str("panic", fmt.Sprint(v)).
					Msg("handler panicked")
				writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal server error"})
			}
		}()
		next(w, r)
	}
}

// statusWriter remembers the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// wantsHTML reports whether the client is a browser navigating pages.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
