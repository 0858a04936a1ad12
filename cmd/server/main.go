// BrainCell - Adaptive Learning Tutor Server
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

	"github.com/braincell-ai/braincell/internal/api"
	"github.com/braincell-ai/braincell/internal/classify"
	"github.com/braincell-ai/braincell/internal/config"
	"github.com/braincell-ai/braincell/internal/identity"
	"github.com/braincell-ai/braincell/internal/mastery"
	"github.com/braincell-ai/braincell/internal/middleware"
	"github.com/braincell-ai/braincell/internal/session"
	"github.com/braincell-ai/braincell/internal/store"
	"github.com/braincell-ai/braincell/internal/tutor"
	"github.com/braincell-ai/braincell/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Classifier channels (optional).
	classifier := classify.New(cfg.FacialClassifierURL, cfg.VocalClassifierURL)
	slog.Info("Classifier channels configured",
		"facial", classifier.FacialEnabled(),
		"vocal", classifier.VocalEnabled())

	// Tutoring composer: remote provider if configured, templates
	// otherwise.
	var composer tutor.Composer
	if cfg.LLM.URL != "" {
		composer = tutor.NewRemote(tutor.RemoteConfig{
			URL:     cfg.LLM.URL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
		slog.Info("Remote tutoring composer configured", "model", cfg.LLM.Model)
	} else {
		slog.Info("No LLM configured, serving template responses")
	}
	tutorSvc := tutor.NewService(composer, logger)

	tracker := mastery.NewTracker(repo, logger)
	sessions := session.NewManager()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, classifier, tutorSvc, tracker, sessions, cfg.FrontendURL)
	defer baseHandler.Stop()

	wsHandler := session.NewWebSocketHandler(repo, classifier, sessions, cfg.FrontendURL, cfg.IsDevelopment(), cfg.DecayTick, cfg.ChannelTTL)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// All routes use identity middleware (no auth needed).
	api.NewHealthHandler(baseHandler).RegisterHealth(r)
	api.NewSessionHandler(baseHandler).RegisterRoutes(r)
	api.NewMetricsHandler(baseHandler).RegisterRoutes(r)
	api.NewReportHandler(baseHandler).RegisterRoutes(r)

	// WebSocket signal stream.
	r.Get("/ws/session", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server. No WriteTimeout: the signal stream holds
	// long-lived connections.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start retention worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.StartRetentionWorker(ctx, repo, session.RetentionPolicy{
		TranscriptTTL: cfg.Retention.TranscriptTTL,
		StudentTTL:    cfg.Retention.StudentTTL,
	})

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
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
