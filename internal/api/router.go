package api

import (
	"io"
	"net/http"

	"rain-dodge/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SessionInterface defines the session methods used by the API and the
// websocket hub. It enables mocking for tests without a running tick loop.
// Keep this minimal - only include methods the API layer actually calls.
type SessionInterface interface {
	// Join adds a player for a connection id
	Join(id, name string) (game.PlayerView, bool)
	// Leave removes a connection's player
	Leave(id string)
	// Move applies a discrete step
	Move(id string, dir game.Direction) bool
	// Tilt applies a proportional step
	Tilt(id string, delta float64) bool
	// StartRound arms a round if none is active
	StartRound() bool
	// Snapshot returns the latest lock-free tick snapshot
	Snapshot() *game.SessionSnapshot
	// Players returns the current roster
	Players() map[string]game.PlayerView
	// Round returns the current round state
	Round() game.RoundInfo
}

// PreviewRenderer draws a snapshot as a PNG image.
type PreviewRenderer interface {
	EncodePNG(w io.Writer, snap *game.SessionSnapshot) error
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Session: mockSession,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Session is the game session (required)
	Session SessionInterface

	// Preview renders /api/preview.png. The route is absent when nil.
	Preview PreviewRenderer

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, localhost origins are allowed.
	CORSOrigins []string

	// StaticFilesDir is the directory served at "/". Empty disables static files.
	StaticFilesDir string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool

	// WSHandler serves the websocket endpoint at /ws
	WSHandler http.Handler
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	session SessionInterface
	preview PreviewRenderer
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE apart from the rate limiter's cleanup
// goroutine when no RateLimiter is supplied:
//   - No network listeners are opened
//   - No game loop is started
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}

	h := &routerHandlers{
		session: cfg.Session,
		preview: cfg.Preview,
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	// Rate limiting covers the API and websocket upgrades, not static assets
	r.Group(func(r chi.Router) {
		r.Use(rateLimiter.Middleware)

		r.Route("/api", func(r chi.Router) {
			r.Get("/state", h.handleGetState)
			r.Get("/players", h.handleGetPlayers)
			r.Get("/round", h.handleGetRound)
			r.Post("/round/start", h.handleStartRound)

			if h.preview != nil {
				r.Get("/preview.png", h.handlePreview)
			}
		})

		if cfg.WSHandler != nil {
			r.Get("/ws", cfg.WSHandler.ServeHTTP)
		}
	})

	if cfg.StaticFilesDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticFilesDir)))
	}

	return r
}
