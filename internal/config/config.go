// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for server, limits and logging settings.
//
// Game rules (field size, speeds, capacity) are fixed constants in the game
// package and are intentionally not overridable from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// GAME CONFIGURATION
// =============================================================================

// GameConfig holds simulation cadence settings.
type GameConfig struct {
	TickRate     int           // Simulation ticks per second
	DropInterval time.Duration // Time between obstacle spawns during a round
}

// DefaultGame returns the default game configuration.
func DefaultGame() GameConfig {
	return GameConfig{
		TickRate:     30,
		DropInterval: time.Second,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int
	StaticDir    string   // Directory served at "/" (client assets)
	CORSOrigins  []string // Allowed origins for the HTTP API and websocket
	PreviewScale float64  // Size of /api/preview.png relative to the field
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:         3000,
		StaticDir:    "./public",
		PreviewScale: 0.5,
		CORSOrigins: []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		},
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if dir := os.Getenv("STATIC_DIR"); dir != "" {
		cfg.StaticDir = dir
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	if v := getEnvFloat("PREVIEW_SCALE", 0); v > 0 && v <= 2 {
		cfg.PreviewScale = v
	}

	return cfg
}

// =============================================================================
// CONNECTION LIMITS
// =============================================================================

// LimitsConfig controls DoS protection on the transport.
type LimitsConfig struct {
	MaxWSConnections int     // Hard cap on concurrent websocket connections
	MaxWSPerIP       int     // Concurrent websocket connections per client IP
	InputRate        float64 // Inbound messages per second per connection
	InputBurst       int     // Burst allowance for inbound messages
	HTTPRate         float64 // HTTP requests per second per IP
	HTTPBurst        int
}

// DefaultLimits returns the default connection limits.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		MaxWSConnections: 200,
		MaxWSPerIP:       10,
		InputRate:        60, // Generous for tilt streams from mobile clients
		InputBurst:       120,
		HTTPRate:         10,
		HTTPBurst:        20,
	}
}

// LimitsFromEnv returns limits with environment variable overrides.
func LimitsFromEnv() LimitsConfig {
	cfg := DefaultLimits()

	if v := getEnvInt("MAX_WS_CONNECTIONS", 0); v > 0 {
		cfg.MaxWSConnections = v
	}
	if v := getEnvInt("MAX_WS_PER_IP", 0); v > 0 {
		cfg.MaxWSPerIP = v
	}
	if v := getEnvFloat("INPUT_RATE", 0); v > 0 {
		cfg.InputRate = v
	}
	if v := getEnvInt("INPUT_BURST", 0); v > 0 {
		cfg.InputBurst = v
	}
	if v := getEnvFloat("HTTP_RATE", 0); v > 0 {
		cfg.HTTPRate = v
	}
	if v := getEnvInt("HTTP_BURST", 0); v > 0 {
		cfg.HTTPBurst = v
	}

	return cfg
}

// =============================================================================
// EVENT LOG & DEBUG CONFIGURATION
// =============================================================================

// EventLogConfig holds the round audit log settings.
type EventLogConfig struct {
	Path    string
	Enabled bool
}

// EventLogFromEnv returns event log configuration with environment overrides.
func EventLogFromEnv() EventLogConfig {
	cfg := EventLogConfig{Path: "events.jsonl", Enabled: true}

	if p := os.Getenv("EVENT_LOG_PATH"); p != "" {
		cfg.Path = p
	}
	if os.Getenv("EVENT_LOG_ENABLED") == "false" {
		cfg.Enabled = false
	}

	return cfg
}

// DebugConfig holds the pprof/metrics server settings.
type DebugConfig struct {
	Enabled    bool
	ListenAddr string // Localhost only unless ALLOW_DEBUG_EXTERNAL=true
}

// DebugFromEnv returns debug server configuration with environment overrides.
func DebugFromEnv() DebugConfig {
	cfg := DebugConfig{Enabled: true, ListenAddr: "127.0.0.1:6060"}

	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Game     GameConfig
	Server   ServerConfig
	Limits   LimitsConfig
	EventLog EventLogConfig
	Debug    DebugConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Game:     DefaultGame(),
		Server:   ServerFromEnv(),
		Limits:   LimitsFromEnv(),
		EventLog: EventLogFromEnv(),
		Debug:    DebugFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
