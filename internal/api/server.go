package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// ServerOptions configures NewServer. Zero values select defaults.
type ServerOptions struct {
	Hub            HubConfig
	RateLimit      RateLimitConfig
	CORSOrigins    []string
	StaticFilesDir string
	Preview        PreviewRenderer
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket hub for real-time updates.
type Server struct {
	session     SessionInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a new API server.
//
// IMPORTANT: The hub does NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// opening network listeners. Tests that need websockets call RunHub.
func NewServer(session SessionInterface, opts ServerOptions) *Server {
	if opts.RateLimit.RequestsPerSecond <= 0 {
		opts.RateLimit = DefaultRateLimitConfig
	}

	s := &Server{
		session:     session,
		wsHub:       NewWebSocketHub(session, opts.Hub),
		rateLimiter: NewIPRateLimiter(opts.RateLimit),
	}

	s.router = NewRouter(RouterConfig{
		Session:        session,
		Preview:        opts.Preview,
		RateLimiter:    s.rateLimiter,
		CORSOrigins:    opts.CORSOrigins,
		StaticFilesDir: opts.StaticFilesDir,
		WSHandler:      http.HandlerFunc(s.wsHub.HandleWebSocket),
	})

	return s
}

// Hub returns the websocket hub. The session broadcasts through it.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// RunHub starts the hub's writer goroutine.
func (s *Server) RunHub() {
	go s.wsHub.Run()
}

// Start runs the hub and serves HTTP on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.RunHub()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🎮 Play: http://localhost%s/", addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Stop closes the listener, every websocket and the background workers.
func (s *Server) Stop(ctx context.Context) error {
	s.wsHub.Stop()
	s.rateLimiter.Stop()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	return nil
}
