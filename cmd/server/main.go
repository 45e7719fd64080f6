package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"dungeon-ledger/backend/pkg/config"
	"dungeon-ledger/backend/pkg/di"
	"dungeon-ledger/backend/pkg/health"
	"dungeon-ledger/backend/pkg/logger"
	"dungeon-ledger/backend/pkg/router"
	"dungeon-ledger/backend/pkg/secrets"
)

func main() {
	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", router.Version, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Resolve secrets before anything uses them
	secretManager, err := secrets.NewVaultManager(cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
		os.Exit(1)
	}
	secrets.Overlay(ctx, secretManager, &cfg.JWT.Secret, &cfg.Database.Password)

	db, err := config.OpenDB(cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	container, err := di.New(cfg, db, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	r := router.New(container)
	r.SetupRoutes()
	r.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	var grpcHealth *health.GRPCServer
	if cfg.GRPC.HealthPort != "" {
		grpcHealth = health.NewGRPCServer(container.Health, cfg.Observability.ServiceName)
		go func() {
			addr := net.JoinHostPort("", cfg.GRPC.HealthPort)
			log.Info("gRPC health server starting", "addr", addr)
			if err := grpcHealth.Serve(addr); err != nil {
				log.LogError(err, "gRPC health server stopped")
			}
		}()
	}

	// Block until we receive a signal
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	if grpcHealth != nil {
		grpcHealth.Stop()
	}
	if err := container.Close(shutdownCtx); err != nil {
		log.LogError(err, "Failed to release resources")
	}

	log.Info("Server exited gracefully")
}
