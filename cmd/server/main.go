package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voucher-storefront/internal/app"
	"voucher-storefront/internal/config"
	"voucher-storefront/pkg/logger"
)

func main() {
	// Create .env from .env.example if not exists
	if err := ensureEnvFile(); err != nil {
		log.Printf("Warning: Failed to create .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.NewWithOptions(logger.Options{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
	})
	appLogger.Info("Starting voucher storefront",
		"database_driver", cfg.Database.Driver,
		"sync_schedule", cfg.Sync.Schedule,
		"whatsapp_enabled", cfg.WhatsApp.Enabled,
	)

	application, err := app.New(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize application", "error", err)
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr, err := application.Start(ctx)
	if err != nil {
		appLogger.Error("Failed to start application", "error", err)
		log.Fatalf("Failed to start application: %v", err)
	}

	appLogger.Info("Voucher storefront started successfully",
		"address", fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
	)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			appLogger.Error("HTTP server error", "error", err)
		}
	}

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	appLogger.Info("Server stopped gracefully")
}

// ensureEnvFile creates .env from .env.example if .env doesn't exist
func ensureEnvFile() error {
	if _, err := os.Stat(".env"); err == nil {
		return nil
	}

	if _, err := os.Stat(".env.example"); os.IsNotExist(err) {
		return fmt.Errorf(".env.example not found")
	}

	source, err := os.Open(".env.example")
	if err != nil {
		return fmt.Errorf("failed to open .env.example: %w", err)
	}
	defer source.Close()

	destination, err := os.Create(".env")
	if err != nil {
		return fmt.Errorf("failed to create .env: %w", err)
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return fmt.Errorf("failed to copy .env.example to .env: %w", err)
	}

	log.Println("Created .env file from .env.example")
	return nil
}
