package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"rain-dodge/internal/api"
	"rain-dodge/internal/config"
	"rain-dodge/internal/game"
	"rain-dodge/internal/preview"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	} else {
		log.Println("✅ Loaded environment from .env")
	}

	log.Println("🌧️ ================================")
	log.Println("🌧️  RAIN DODGE - GO SERVER")
	log.Println("🌧️ ================================")

	appConfig := config.Load()
	gameCfg := appConfig.Game
	serverCfg := appConfig.Server
	limits := appConfig.Limits

	log.Printf("🎮 Config: %d TPS, drop every %s, %d players max", gameCfg.TickRate, gameCfg.DropInterval, game.MaxPlayers)
	log.Printf("🛡️ Limits: %d ws connections, %d per IP, %.0f inputs/s", limits.MaxWSConnections, limits.MaxWSPerIP, limits.InputRate)

	eventLog := game.NewEventLog()
	if appConfig.EventLog.Enabled {
		if err := eventLog.Start(appConfig.EventLog.Path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", appConfig.EventLog.Path)
		}
	}

	if err := api.StartDebugServer(api.ObservabilityConfig{
		Enabled:       appConfig.Debug.Enabled,
		ListenAddr:    appConfig.Debug.ListenAddr,
		BasicAuthUser: os.Getenv("DEBUG_USER"),
		BasicAuthPass: os.Getenv("DEBUG_PASS"),
	}); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	session := game.NewSession(game.SessionConfig{
		TickRate:     gameCfg.TickRate,
		DropInterval: gameCfg.DropInterval,
		EventLog:     eventLog,
	})
	session.OnRoundStart = func(round uint64, players int) {
		api.RecordRoundStart()
	}
	session.OnRoundEnd = func(round uint64, duration time.Duration) {
		api.RecordRoundEnd(duration)
	}
	session.OnTick = func(elapsed time.Duration, snap *game.SessionSnapshot) {
		api.RecordTick(elapsed, snap)
		api.RecordEventLog(eventLog.GetTotalCount(), eventLog.GetDroppedCount())
	}

	server := api.NewServer(session, api.ServerOptions{
		Hub: api.HubConfig{
			MaxConnections: limits.MaxWSConnections,
			MaxPerIP:       limits.MaxWSPerIP,
			InputRate:      limits.InputRate,
			InputBurst:     limits.InputBurst,
			AllowedOrigins: serverCfg.CORSOrigins,
		},
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: limits.HTTPRate,
			Burst:             limits.HTTPBurst,
			CleanupInterval:   api.DefaultRateLimitConfig.CleanupInterval,
		},
		CORSOrigins:    serverCfg.CORSOrigins,
		StaticFilesDir: serverCfg.StaticDir,
		Preview:        preview.NewRenderer(serverCfg.PreviewScale),
	})

	// The hub fans session events out to every connection
	session.SetBroadcaster(server.Hub())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session.Start(ctx)
	log.Println("✅ Session started")

	go func() {
		addr := ":" + strconv.Itoa(serverCfg.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("⚠️ %v", err)
	}
	session.Stop()
	eventLog.Stop()
	log.Println("👋 Goodbye!")
}
