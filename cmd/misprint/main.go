// Misprint API Server
//
// Purchase coordination service for a limited-stock shop demo: many buyers
// race for the last unit, exactly one wins.
//
//	@title			Misprint API
//	@version		0.1.0
//	@description	Last-item purchase coordination with live SSE updates.
//
//	@host
//	@BasePath	/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Moriyan1307/misprint-demo/config"
	"github.com/Moriyan1307/misprint-demo/logging"
	fiberRoutes "github.com/Moriyan1307/misprint-demo/routes/fiber"
)

func main() {
	// Load config first to get log level
	cfg, err := Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create logger with configured level
	log := logging.NewLogger(cfg.GetLogLevel())

	log.Info("Starting Misprint", slog.String("version", "0.1.0"), slog.String("log_level", cfg.GetLogLevel()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// Initialize all services (store, event publisher, coordinator)
	services, err := cfg.Initialize(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := services.Close(); err != nil {
			log.Error("Error closing services", slog.String("error", err.Error()))
		}
	}()

	// Setup routes
	shopRoutes := fiberRoutes.NewRoutes(fiberRoutes.Config{
		Service: services.ShopService,
		Logger:  log,
	})

	// Setup and start HTTP server
	log.Info("Starting HTTP server", slog.String("address", cfg.Server.Address))
	app := setupServer(shopRoutes)

	errCh := make(chan error, 1)
	go func() {
		if err := app.Listen(cfg.Server.Address); err != nil {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	log.Info("Misprint started successfully")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received shutdown signal")
	case err := <-errCh:
		log.Error("Server error", slog.String("error", err.Error()))
		return err
	case <-ctx.Done():
		log.Info("Context canceled")
	}

	// Graceful shutdown
	log.Info("Shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", slog.String("error", err.Error()))
	}

	log.Info("Shutdown complete")
	return nil
}

func setupServer(shopRoutes *fiberRoutes.Routes) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${method} ${path} - ${status} (${latency})\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "*",
		AllowMethods: "GET,POST,OPTIONS",
	}))

	// Shop endpoints
	shopRoutes.Register(app)

	// Health check
	app.Get("/health", shopRoutes.HandleGetHealth)

	return app
}
