package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rain-dodge/internal/game"
)

// Metrics with bounded cardinality (no per-connection labels)
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in a session tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.033},
	})

	playerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_player_count",
		Help: "Current number of players in the room",
	})

	alivePlayerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_alive_player_count",
		Help: "Players still alive in the current round",
	})

	obstacleCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_obstacle_count",
		Help: "Obstacles currently in the field",
	})

	roundsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_rounds_started_total",
		Help: "Rounds started",
	})

	roundsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_rounds_completed_total",
		Help: "Rounds that ended with every player dead",
	})

	roundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_round_duration_seconds",
		Help:    "Length of completed rounds",
		Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120, 180, 300},
	})

	eventLogTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_total",
		Help: "Total events logged",
	})

	eventLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_dropped_total",
		Help: "Events dropped due to rate limiting or buffer full",
	})

	// Bounded label values: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"})

	// Bounded label values: "rate_limit", "invalid"
	inputDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_input_dropped_total",
		Help: "Client messages dropped before reaching the session",
	}, []string{"reason"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket broadcasts sent",
	})

	wsBroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_broadcast_dropped_total",
		Help: "State frames dropped because the hub queue was full",
	})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be localhost in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DebugHandler returns the pprof, metrics and health mux.
func DebugHandler(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the internal observability server.
// It binds to localhost unless ALLOW_DEBUG_EXTERNAL=true.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if !isLoopbackAddr(cfg.ListenAddr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.Println("⚠️ Debug server forced to localhost for security")
		cfg.ListenAddr = "127.0.0.1:6060"
	}

	handler := DebugHandler(cfg)

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return nil
}

func isLoopbackAddr(addr string) bool {
	for _, prefix := range []string{"127.0.0.1:", "localhost:", "[::1]:"} {
		if len(addr) > len(prefix) && addr[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordTick records tick timing and world gauges for one snapshot
func RecordTick(duration time.Duration, snap *game.SessionSnapshot) {
	tickDuration.Observe(duration.Seconds())
	if snap == nil {
		return
	}
	playerCount.Set(float64(snap.PlayerCount))
	alivePlayerCount.Set(float64(snap.AliveCount))
	obstacleCount.Set(float64(len(snap.World.Raindrops)))
}

// RecordRoundStart counts a started round
func RecordRoundStart() {
	roundsStarted.Inc()
}

// RecordRoundEnd counts a completed round and its length
func RecordRoundEnd(duration time.Duration) {
	roundsCompleted.Inc()
	roundDuration.Observe(duration.Seconds())
}

// eventLogSeen holds the last totals fed to the event log counters
var eventLogSeen struct {
	sync.Mutex
	total, dropped uint64
}

// RecordEventLog advances the event log counters to the log's running totals.
// Totals lower than the last seen values (a new log) restart the baseline.
func RecordEventLog(total, dropped uint64) {
	eventLogSeen.Lock()
	defer eventLogSeen.Unlock()

	if total >= eventLogSeen.total {
		eventLogTotal.Add(float64(total - eventLogSeen.total))
	}
	if dropped >= eventLogSeen.dropped {
		eventLogDropped.Add(float64(dropped - eventLogSeen.dropped))
	}
	eventLogSeen.total, eventLogSeen.dropped = total, dropped
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordInputDropped counts client messages that were ignored
func RecordInputDropped(reason string) {
	inputDropped.WithLabelValues(reason).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}

// RecordBroadcastDropped counts broadcasts lost to backpressure
func RecordBroadcastDropped() {
	wsBroadcastDropped.Inc()
}
