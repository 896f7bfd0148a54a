// Package main is the entry point for the DocVault API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docvault-api/internal/config"
	"github.com/Shimizu-Technology/docvault-api/internal/database"
	"github.com/Shimizu-Technology/docvault-api/internal/handlers"
	"github.com/Shimizu-Technology/docvault-api/internal/logger"
	"github.com/Shimizu-Technology/docvault-api/internal/middleware"
	"github.com/Shimizu-Technology/docvault-api/internal/router"
	"github.com/Shimizu-Technology/docvault-api/internal/search"
	"github.com/Shimizu-Technology/docvault-api/internal/services/extraction"
	"github.com/Shimizu-Technology/docvault-api/internal/services/pdf"
	"github.com/Shimizu-Technology/docvault-api/internal/services/webhook"
	"github.com/Shimizu-Technology/docvault-api/internal/services/worker"
	"github.com/Shimizu-Technology/docvault-api/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	// Step 1: Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("DocVault API starting",
		zap.String("version", Version),
		zap.String("port", cfg.Port),
		zap.Int("workers", cfg.WorkerCount),
		zap.String("gin_mode", cfg.GinMode),
		zap.String("database_driver", cfg.DatabaseDriver),
		zap.String("storage_backend", cfg.StorageBackend),
	)
	gin.SetMode(cfg.GinMode)
	ctx := context.Background()

	// Step 2: Connect to Database
	db, err := database.New(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("database connected")

	if err := db.RunMigrations(log); err != nil {
		return err
	}

	// Step 3: File storage
	var files storage.FileStore
	switch cfg.StorageBackend {
	case "gcs":
		gcs, err := storage.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			return err
		}
		defer gcs.Close()
		files = gcs
	default:
		disk, err := storage.NewDiskStore(cfg.MediaRoot)
		if err != nil {
			return err
		}
		files = disk
	}
	log.Info("file storage ready", zap.String("backend", cfg.StorageBackend))

	// Step 4: Search index
	index, err := search.Open(cfg.SearchIndexPath)
	if err != nil {
		return err
	}
	defer index.Close()
	if n, err := index.DocCount(); err == nil && n == 0 {
		indexed, err := index.Rebuild(ctx, db)
		if err != nil {
			log.Warn("search index rebuild failed", zap.Error(err))
		} else {
			log.Info("search index rebuilt", zap.Int("documents", indexed))
		}
	}

	// Step 5: Extraction services
	metadata, err := pdf.NewMetadataReader(cfg.PDFMetadataBackend)
	if err != nil {
		return err
	}
	extractor := pdf.NewExtractor(metadata, log.Named("pdf"))
	validator := pdf.NewValidator(cfg.MaxUploadSize, cfg.MimeSniff, log.Named("upload"))

	webhookService := webhook.New(db, log.Named("webhook"))

	runner := extraction.NewRunner(db, files, extractor, log.Named("extraction"))
	runner.SetTimeout(cfg.ExtractionTimeout)
	runner.SetIndexer(index)
	runner.SetNotifier(webhookService)

	// Step 6: Create and Start Worker Pool
	pool := worker.NewPool(cfg.WorkerCount, cfg.JobQueueSize, runner, log.Named("worker"))
	runner.SetScheduler(pool)
	pool.Start()
	defer pool.Stop()

	if n, err := pool.Recover(ctx, db); err != nil {
		log.Warn("failed to recover queued jobs", zap.Error(err))
	} else if n > 0 {
		log.Info("recovered queued jobs", zap.Int("count", n))
	}

	// Step 7: Setup HTTP Router
	h := handlers.NewHandler(db, files, validator, runner, cfg.JWTSecret, log.Named("http"))
	h.Search = index
	h.Worker = pool
	h.Notifier = webhookService

	rateLimiter := middleware.NewRateLimiter(cfg.DefaultRateLimit)
	defer rateLimiter.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router.Setup(h, rateLimiter, cfg.AllowedOrigins),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.ExtractionTimeout + 30*time.Second, // sync extraction holds the request
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Step 8: Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", zap.Error(err))
	}

	pool.Stop()
	webhookService.Shutdown()
	webhookService.Wait()

	log.Info("server stopped")
	return nil
}
