package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/optifi/internal/api/handlers"
	"github.com/dvloznov/optifi/internal/config"
	"github.com/dvloznov/optifi/internal/gcsexport"
	"github.com/dvloznov/optifi/internal/infra"
	"github.com/dvloznov/optifi/internal/jobs"
	"github.com/dvloznov/optifi/internal/jobs/inmemory"
	"github.com/dvloznov/optifi/internal/logger"
	"github.com/dvloznov/optifi/internal/notionsync"
	"github.com/dvloznov/optifi/internal/oracle"
	"github.com/dvloznov/optifi/internal/reconcile"
)

func main() {
	cfg := config.FromEnv()

	var (
		port       = flag.String("port", cfg.Port, "HTTP server port")
		queueSize  = flag.Int("queue-size", 100, "Sync jobs that can wait before enqueueing blocks")
		maxRetries = flag.Int("max-retries", 0, "Retries for a failed sync job")
	)
	flag.Parse()

	log := logger.NewFromOptions(os.Stdout, logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	backend, err := infra.OpenBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open store")
	}
	defer backend.Close()

	deps := handlers.Deps{Repo: backend}

	matcher, err := infra.OpenMatcher(ctx, cfg)
	switch {
	case errors.Is(err, oracle.ErrMissingCredential):
		log.Warn().Msg("No GEMINI_API_KEY or ORACLE_URL configured - reconciliation will be disabled")
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to create match oracle")
	default:
		deps.Matcher = matcher
		svc := &reconcile.Service{Tables: backend, Matcher: matcher}

		if cfg.GCSBucket != "" {
			writer, err := gcsexport.NewGCSWriter(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to create storage client")
			}
			defer writer.Close()
			svc.Exporter = gcsexport.NewExporter(writer, cfg.GCSBucket)
		}
		if cfg.RequireNotion() == nil {
			publisher, err := infra.OpenNotionPublisher(cfg, notionsync.Options{})
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to create Notion publisher")
			}
			svc.Publisher = publisher
		}
		deps.Reconciler = svc
	}

	// Job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(*queueSize, jobStore)
	deps.JobStore = jobStore
	deps.Publisher = retryingPublisher{Publisher: jobQueue, maxRetries: *maxRetries}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Msg("Starting job worker")
	if err := jobQueue.Start(workerCtx, jobs.NewSyncHandler(backend)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handlers.NewRouter(deps, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("backend", cfg.StoreBackend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight syncs finish before the store closes.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

// retryingPublisher stamps the configured retry budget on every job.
type retryingPublisher struct {
	jobs.Publisher
	maxRetries int
}

func (p retryingPublisher) PublishSync(ctx context.Context, job *jobs.SyncJob) error {
	if job.MaxRetries == 0 {
		job.MaxRetries = p.maxRetries
	}
	return p.Publisher.PublishSync(ctx, job)
}
