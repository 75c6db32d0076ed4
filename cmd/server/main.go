package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duo-chat/auth"
	"duo-chat/infrastructure/grpc/server"
	"duo-chat/infrastructure/websocket"
	"duo-chat/internal"
	"duo-chat/repositories"
	"duo-chat/runtime"
	"duo-chat/runtime/workers"
	"duo-chat/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, serves until SIGINT/SIGTERM, then drains.
// Deferred cleanups (badger) run before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Chat core
	userRepository := repositories.NewUserRepository(db, logger)
	conversationRepository := repositories.NewConversationRepository(db, logger)
	tokens := auth.NewTokenIssuer(config.JwtSecretKey, config.AuthTokenDuration)
	resolver := auth.NewResolver(tokens, userRepository, config.ResolverTimeout, logger)
	presence := runtime.NewPresence()
	broadcaster := runtime.NewBroadcaster(config.SinkTimeout, logger)
	orchestrator := runtime.NewOrchestrator(logger, resolver, userRepository, conversationRepository,
		presence, broadcaster, config.StoreTimeout, config.ReplyTimeout)
	authService := services.NewAuthService(userRepository, tokens, logger)

	// 4. Surfaces
	statsWorker := workers.NewProcessStatsWorker(logger, presence, broadcaster.Connections, config.MetricInterval)
	stats := func() any { return statsWorker.Latest() }

	handler := websocket.NewHandler(logger, orchestrator, authService,
		websocket.NewOriginPolicy(config.Origins(), logger),
		websocket.ConnectionConfig{
			BufferSize:     config.ConnectionBufferSize,
			MaxMessageSize: config.MaxMessageSize,
			RateBurst:      config.RateLimitBurst,
			RateInterval:   config.RateLimitInterval,
		},
		stats)

	// Sessions derive from ctx so a shutdown terminates every live connection
	httpServer := &http.Server{
		Addr:              config.HTTPAddress(),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	grpcServer, healthServer := server.NewServer(logger, resolver, orchestrator.OnlineUsers)

	// 5. Supervision
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewHTTPServerWorker(logger, httpServer, config.ShutdownTimeout),
		workers.NewGRPCServerWorker(logger, grpcServer, config.GRPCAddress()),
		statsWorker,
	)

	if config.DebugPort > 0 {
		debugServer := &http.Server{
			Addr:              fmt.Sprintf("localhost:%d", config.DebugPort),
			Handler:           internal.DebugHandler(db, repositories.InspectRecord, stats),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("Debug Badger inspector available", "url", "http://"+debugServer.Addr+"/inspect?prefix=conv:")
		sup.Add(workers.NewHTTPServerWorker(logger, debugServer, config.ShutdownTimeout))
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
		healthServer.Shutdown()
	}()

	// Blocks until the signal and every worker has stopped
	logger.Info("Chat server starting", "http", config.HTTPAddress(), "grpc", config.GRPCAddress())
	sup.Run(ctx)

	logger.Info("Program stopped cleanly")
	return exitOK, nil
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
