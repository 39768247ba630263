package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/crm-electoral-api/internal/api"
	"github.com/crm-electoral-api/internal/background"
	"github.com/crm-electoral-api/internal/config"
	"github.com/crm-electoral-api/internal/database"
	"github.com/crm-electoral-api/internal/mailer"
	"github.com/crm-electoral-api/internal/repository"
	"github.com/crm-electoral-api/internal/service"
	"github.com/crm-electoral-api/internal/storage"
	"github.com/crm-electoral-api/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.New()
	log.Info().Msg("Starting CRM Electoral API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Server.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Optional stats cache
	var cache *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid REDIS_URL")
		}
		cache = redis.NewClient(opts)
		defer cache.Close()
		if err := cache.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unreachable, stats will not be cached")
		}
	}

	// Outbound email
	var m mailer.Mailer = mailer.NewDisabled()
	if cfg.Mail.MailEnabled() {
		m = mailer.NewResend(cfg.Mail.ResendAPIKey, cfg.Mail.SendsPerSecond, log)
	} else {
		log.Warn().Msg("RESEND_API_KEY not set, email sending is disabled")
	}

	// Photo storage
	uploader, err := storage.NewLocalUploader(cfg.Storage.PhotoDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize photo storage")
	}

	// Best-effort side effects (audit echoes, welcome emails, communication records)
	runner := background.NewRunner(cfg.Mail.MaxSideEffectWorker, cfg.Mail.SideEffectTimeout, log)

	// Initialize repositories
	repos := repository.New(db)

	// Initialize services
	services := service.NewServices(repos, service.Dependencies{
		Mailer:   m,
		Uploader: uploader,
		Cache:    cache,
		Runner:   runner,
	}, cfg, log)

	// Start background job processor
	go services.Job.StartProcessor(context.Background())
	log.Info().Msg("Background job processor started")

	// Initialize router
	router := api.NewRouter(services, cfg, log)
	if strings.HasPrefix(cfg.Storage.PublicBaseURL, "/") {
		router.Static(cfg.Storage.PublicBaseURL, cfg.Storage.PhotoDir)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop job processor
	services.Job.StopProcessor()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain side effects still in flight
	if err := runner.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Background tasks did not finish before shutdown")
	}

	log.Info().Int64("side_effect_failures", runner.Failures()).Msg("Server exited gracefully")
}
