// The Spiral - WhatsApp doom-relay server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spiralhq/doomspiral/internal/api"
	"github.com/spiralhq/doomspiral/internal/config"
	"github.com/spiralhq/doomspiral/internal/drama"
	"github.com/spiralhq/doomspiral/internal/middleware"
	"github.com/spiralhq/doomspiral/internal/receipt"
	"github.com/spiralhq/doomspiral/internal/relay"
	"github.com/spiralhq/doomspiral/internal/store"
	"github.com/spiralhq/doomspiral/internal/whatsapp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "quota", cfg.MaxRequestsPerUser)

	// Initialize the session store: SQLite when DB_PATH is set, memory
	// otherwise.
	var sessions store.SessionStore
	if cfg.DBPath != "" {
		sqliteStore, err := store.NewSQLite(cfg.DBPath, cfg.QuotaWindow)
		if err != nil {
			slog.Error("Failed to initialize session database", "error", err)
			os.Exit(1)
		}
		sessions = sqliteStore
		slog.Info("Session store ready", "backend", "sqlite", "path", cfg.DBPath)
	} else {
		sessions = store.NewMemory(cfg.QuotaWindow)
		slog.Info("Session store ready", "backend", "memory")
	}
	defer func() {
		if closeErr := sessions.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()

	if err := sessions.Ping(context.Background()); err != nil {
		slog.Error("Session store health check failed", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.ReceiptOutputDir, 0755); err != nil {
		slog.Error("Failed to create receipt output directory", "error", err)
		os.Exit(1)
	}

	// Initialize collaborators.
	backend := drama.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	messenger := whatsapp.NewClient(cfg.WhatsAppAPIVersion, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAccessToken)
	renderer := receipt.NewRenderer(cfg.ReceiptOutputDir, cfg.FontDir)

	relaySvc := relay.NewService(sessions, backend, renderer, messenger, relay.Options{
		MaxRequestsPerUser: cfg.MaxRequestsPerUser,
		SnapTurnThreshold:  cfg.SnapTurnThreshold,
		ProcessTimeout:     cfg.ProcessTimeout,
	})

	webhookHandler := api.NewHandler(relaySvc, cfg.WhatsAppVerifyToken)

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	webhookHandler.RegisterRoutes(r)

	// Generated receipts are publicly fetchable for link-based delivery.
	r.Handle("/receipts/*", http.StripPrefix("/receipts/", http.FileServer(http.Dir(cfg.ReceiptOutputDir))))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // processing runs inline before the ack
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartTTLWorker(ctx, sessions, cfg.SessionTTL)

	go func() {
		slog.Info("The Spiral listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
