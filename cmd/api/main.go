package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agrilens/leafsight/internal/api"
	"github.com/agrilens/leafsight/internal/cache"
	"github.com/agrilens/leafsight/internal/config"
	"github.com/agrilens/leafsight/internal/logger"
	"github.com/agrilens/leafsight/internal/repository"
	"github.com/agrilens/leafsight/internal/service"
	"github.com/agrilens/leafsight/internal/storage"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	log := logger.NewDefault()
	logger.SetDefault(log)
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	diagnosisRepo := repository.NewDiagnosisRepository(db)

	cacheStore := cache.New(cfg.Cache.TTL)
	defer cacheStore.Close()

	objectStorage, err := storage.NewStorage(&storage.S3Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}

	ctx := context.Background()
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		log.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	renderer, err := service.NewRenderer()
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize annotation renderer")
	}

	catalogService := service.NewCatalogService(&cfg.Taxonomy, cacheStore)
	imageMapService := service.NewImageMapService(&cfg.Gallery, cacheStore)
	knowledgeService := service.NewKnowledgeService(&cfg.LLM, cfg.Gallery.SourceURL, catalogService, imageMapService, cacheStore)
	detectionService := service.NewDetectionService(&cfg.Detection)
	uploadService := service.NewUploadService(
		detectionService,
		renderer,
		knowledgeService,
		diagnosisRepo,
		objectStorage,
		cacheStore,
		cfg.Storage.Folder,
	)
	summaryService := service.NewSummaryService(knowledgeService, diagnosisRepo, cacheStore)

	if cfg.Uploads.SweepOnBoot {
		sweepTempDir(cfg.Uploads.TempDir, log)
	}

	router := api.SetupRouter(api.Services{
		Uploads:   uploadService,
		Knowledge: knowledgeService,
		Summaries: summaryService,
	}, cfg, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("Server forced to shutdown")
	}

	log.Info("Server exited")
}

// sweepTempDir clears leftover upload buffers from a previous run.
func sweepTempDir(dir string, log *logger.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("Failed to sweep upload temp dir")
		}
		return
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		log.WithField(logger.FieldCount, removed).Info("Swept leftover upload files")
	}
}
