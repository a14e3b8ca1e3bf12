package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/vkpulse/vkpulse/internal/analysis"
	"github.com/vkpulse/vkpulse/internal/api"
	"github.com/vkpulse/vkpulse/internal/config"
	"github.com/vkpulse/vkpulse/internal/notifications"
	"github.com/vkpulse/vkpulse/internal/scheduler"
	"github.com/vkpulse/vkpulse/internal/sentiment"
	"github.com/vkpulse/vkpulse/internal/storage"
	"github.com/vkpulse/vkpulse/internal/vkapi"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logrus.Info("Starting VK sentiment service")

	archive := buildArchiveStore(cfg)
	model := buildModel(cfg)

	vkClient := vkapi.NewClient(vkapi.Options{
		Token:           cfg.VKAccessToken,
		Version:         cfg.VKAPIVersion,
		BaseURL:         cfg.VKAPIBaseURL,
		MaxRetries:      cfg.MaxRetries,
		BaseRetryDelay:  cfg.BaseRetryDelay,
		RateLimitDelay:  cfg.RateLimitDelay,
		PolitenessDelay: cfg.PolitenessDelay,
		RequestTimeout:  cfg.RequestTimeout,
	})

	notificationService := notifications.NewService(cfg)
	analysisService := analysis.NewService(cfg, vkClient, model, archive, notificationService)

	schedulerService := scheduler.NewService(cfg, analysisService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      api.NewRouter(analysisService),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

// buildArchiveStore picks the artifact backend: blob storage when an
// account is configured, the local archive directory otherwise, or none.
func buildArchiveStore(cfg *config.Config) storage.ArtifactStore {
	if cfg.StorageAccount != "" {
		store, err := storage.NewAzureStore(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize blob storage: %v", err)
		}
		return store
	}

	if cfg.ArchiveDir != "" {
		store, err := storage.NewLocalStore(cfg.ArchiveDir)
		if err != nil {
			logrus.Fatalf("Failed to initialize local archive: %v", err)
		}
		return store
	}

	logrus.Info("No artifact store configured, run archival disabled")
	return nil
}

// buildModel picks the sentiment backend: the remote inference service when
// configured, the offline lexicon otherwise.
func buildModel(cfg *config.Config) sentiment.Model {
	if cfg.ModelServiceURL != "" {
		logrus.Infof("Using remote sentiment service at %s", cfg.ModelServiceURL)
		return sentiment.NewRemote(cfg.ModelServiceURL, cfg.ModelServiceToken, cfg.RequestTimeout)
	}

	logrus.Warn("No sentiment service configured, falling back to the lexicon model")
	return sentiment.NewLexicon(cfg.TrackedEntities)
}
