/*
Package main is the entry point for the Parley messaging hub.

It is responsible for loading configuration, initializing the global logging
system, opening the message store, starting the hub, setting up the HTTP
server, and gracefully handling operating system interrupt signals (SIGINT,
SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"parley/internal/app/hub"
	"parley/internal/app/store"
	"parley/internal/configs"
	"parley/internal/handler"
	"parley/internal/pkg/logx"
)

func main() {
	// Pick up a local .env, if any, before reading the environment.
	_ = godotenv.Load()

	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.Init(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("store_driver", cfg.StoreDriver).
		Int("history_limit", cfg.HistoryLimit).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messages, err := openStore(cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open message store")
	}

	h := hub.NewHub(cfg, messages)

	router := handler.Router(&handler.AppDeps{
		Hub:      h,
		Messages: messages,
		Config:   cfg,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Parley server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	h.Close()

	if err := messages.Close(); err != nil {
		logx.Error(err, "Message store close failed")
	}

	logx.Info("Server gracefully stopped.")
}

// openStore opens the message store selected by configuration.
func openStore(cfg *configs.AppConfig) (store.MessageStore, error) {
	switch cfg.StoreDriver {
	case configs.StoreDriverPostgres:
		return store.OpenPostgres(cfg.DatabaseDSN)
	default:
		return store.OpenBadger(cfg.BadgerPath)
	}
}
