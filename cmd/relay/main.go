package main

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const (
	healthRefreshInterval = time.Second
	shutdownTimeout       = 10 * time.Second
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a termination signal.
// Returning instead of exiting lets the deferred database close run.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, repositories.InspectMapper)
	}

	// 3. Moderation dictionary, persisted words plus the configured ones
	moderator, err := buildModerator(ctx, config, repositories.NewBlocklistRepository(db), logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("moderation setup failed: %w", err)
	}

	// 4. Hub & collaborators
	messageRepository := repositories.NewMessageRepository(db, logger)
	userRepository := repositories.NewUserRepository(db)
	hub := runtime.NewHub(logger, messageRepository, userRepository, runtime.HubConfig{
		ReplacePolicy:    runtime.ReplacePolicy(config.ReplacePolicy),
		Moderator:        moderator,
		StoreTimeout:     config.StoreTimeout,
		MaxContentLength: config.MaxContentLength,
	})
	monitoring := observability.NewMonitoringManager(logger)

	wsServer := ws.NewServer(logger, ws.Config{
		Address:        fmt.Sprintf("%s:%d", config.Host, config.Port),
		MaxFrameSize:   config.MaxFrameSize,
		SendBufferSize: config.SendBufferSize,
		WriteTimeout:   config.WriteTimeout,
		PingInterval:   config.PingInterval,
		PongTimeout:    config.PongTimeout,
	}, hub, auth.NewJWTAuthenticator(config.JWTSecret), monitoring)

	healthServer := server.NewHealthServer(logger,
		fmt.Sprintf("%s:%d", config.Host, config.HealthPort), hub.Serving, healthRefreshInterval)

	statsWorker := workers.NewStatsWorker(logger, config.MetricInterval, func() observability.Gauges {
		stats := hub.Stats()
		return observability.Gauges{
			Connections: stats.Connections,
			Rooms:       stats.Rooms,
			CallRooms:   stats.CallRooms,
		}
	}, monitoring)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Supervision
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(wsServer, healthServer, statsWorker)
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	// 7. Wait for Stop
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// 8. Final Cleanup (Graceful Shutdown)
	// Every live connection is closed through the regular disconnect cascade
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	hub.Shutdown(shutdownCtx)

	select {
	case <-done:
	case <-shutdownCtx.Done():
		return exitRuntime, fmt.Errorf("workers did not stop within %s", shutdownTimeout)
	}
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

// buildModerator returns nil when the blocklist is empty so that content is relayed untouched.
func buildModerator(ctx context.Context, config internal.Config, blocklist *repositories.BlocklistRepository,
	logger *slog.Logger) (contract.IModerator, error) {
	if err := blocklist.AddWords(ctx, config.CensoredWordList()...); err != nil {
		return nil, err
	}
	words, err := blocklist.Words(ctx)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		logger.Info("Moderation disabled, blocklist is empty")
		return nil, nil
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	logger.Info("Moderation enabled", "words", len(words))
	return moderation.NewModerator(words, charReplacement, logger)
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
