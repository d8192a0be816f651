// internal/httpserver/server.go
//
// HTTP server wiring for the color guessing game.
// Responsibilities:
//   - Router + middleware (request IDs, real IP, panic recovery, timeouts,
//     request logging, CORS).
//   - Public endpoints: "/" (game page), "/health", "/static/*".
//   - Session endpoints: POST /api/session, POST /api/reset (resolves its own
//     session and replaces a lost one).
//   - Game endpoints (require a session): GET /api/state, POST /api/guess,
//     GET /api/live (websocket).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled so the session cookie works
//     for a separately hosted client.
//   - The websocket route is mounted outside the timeout middleware; it lives
//     as long as the client stays connected.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/colorgame/assets"
	"github.com/robalobadob/colorgame/internal/config"
	"github.com/robalobadob/colorgame/internal/game"
	"github.com/robalobadob/colorgame/internal/session"
	"github.com/robalobadob/colorgame/internal/store"
)

// Server bundles the router, live sessions and token signer.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	sessions *session.Manager
	tokens   *session.Tokens
	page     *template.Template
	upgrader websocket.Upgrader
	live     LiveConfig
	http     *http.Server
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, sessions *session.Manager, tokens *session.Tokens) (*Server, error) {
	page, err := template.ParseFS(assets.FS, "index.html")
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(assets.FS, "static")
	if err != nil {
		return nil, err
	}

	s := &Server{
		r:        chi.NewRouter(),
		cfg:      cfg,
		sessions: sessions,
		tokens:   tokens,
		page:     page,
		live:     DefaultLiveConfig(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  s.live.ReadBufferSize,
		WriteBufferSize: s.live.WriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)   // one log line per request
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.ClientOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler)

	// --- public ---
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": s.sessions.Len()})
	})
	s.r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	s.r.With(chimw.Timeout(10*time.Second)).Get("/", s.handlePage)

	// --- API ---
	s.r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)
		r.With(chimw.Timeout(10*time.Second)).Post("/session", s.handleNewSession)
		r.With(chimw.Timeout(10*time.Second)).Post("/reset", s.handleReset)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.With(chimw.Timeout(10*time.Second)).Get("/state", s.handleState)
			r.With(chimw.Timeout(10*time.Second)).Post("/guess", s.handleGuess)
			r.Get("/live", s.handleLive)
		})
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s, nil
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// Start serves HTTP on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on API responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// ctxControllerKey is the context key type for the session's controller.
type ctxControllerKey struct{}

// requireSession resolves the session token to a live controller.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctrl, err := s.resolve(r)
		if err != nil {
			status, code := errorStatus(err)
			writeError(w, status, code)
			return
		}
		ctx := context.WithValue(r.Context(), ctxControllerKey{}, ctrl)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve maps the request's token to its controller.
func (s *Server) resolve(r *http.Request) (*game.Controller, error) {
	tok := session.FromRequest(r, s.cfg.CookieName)
	if tok == "" {
		return nil, session.ErrInvalidToken
	}
	id, err := s.tokens.Parse(tok)
	if err != nil {
		return nil, err
	}
	return s.sessions.Get(r.Context(), id)
}

func controllerFrom(r *http.Request) *game.Controller {
	ctrl, _ := r.Context().Value(ctxControllerKey{}).(*game.Controller)
	return ctrl
}

// ------------------------------- responses ---------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// errorStatus maps domain errors to an HTTP status and JSON error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, game.ErrNotPlaying):
		return http.StatusConflict, "not_playing"
	case errors.Is(err, game.ErrStaleRound):
		return http.StatusConflict, "stale_round"
	case errors.Is(err, game.ErrBadOption):
		return http.StatusBadRequest, "bad_option"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
