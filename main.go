package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaehk/yt-subtitle-analyzer/config"
	"github.com/jaehk/yt-subtitle-analyzer/handlers/api"
	"github.com/jaehk/yt-subtitle-analyzer/logger"
	"github.com/jaehk/yt-subtitle-analyzer/repository/sqlite"
	"github.com/jaehk/yt-subtitle-analyzer/services/summary"
	"github.com/jaehk/yt-subtitle-analyzer/services/transcript"
	"github.com/jaehk/yt-subtitle-analyzer/storage"
	"github.com/jaehk/yt-subtitle-analyzer/validation"
	"github.com/jaehk/yt-subtitle-analyzer/ytdlp"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.LogDir, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := sqlite.InitDB(cfg.Database.Path, sqlite.DBConfig{
		MaxConnections:     cfg.Database.MaxConnections,
		MaxIdleConnections: cfg.Database.MaxIdleConnections,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	repo, err := sqlite.NewRepository(db)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}

	// Initialize yt-dlp runner
	runner, err := ytdlp.NewRunner(ytdlp.Config{
		Path:         cfg.Subtitle.YTDLPPath,
		TempDir:      cfg.TempDir,
		FetchTimeout: cfg.Subtitle.FetchTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize yt-dlp runner: %v", err)
	}

	validator := validation.NewValidator(cfg)

	// Optional transcript archive
	var archiver transcript.Archiver
	if cfg.Archive.Enabled {
		spaces, err := storage.NewSpacesClient(storage.SpacesConfig{
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			Bucket:    cfg.Archive.Bucket,
		})
		if err != nil {
			log.Fatalf("Failed to initialize archive storage: %v", err)
		}
		archiver = spaces
	}

	transcriptService := transcript.NewService(
		repo,
		runner,
		validator,
		archiver,
		transcript.Config{
			ProcessTimeout:  cfg.Subtitle.ProcessTimeout,
			MaxDuration:     cfg.Subtitle.MaxDuration,
			DefaultLanguage: cfg.Subtitle.DefaultLanguage,
		},
	)

	// Optional Gemini analysis
	var summaryService summary.Service
	if cfg.Gemini.Enabled {
		generator, err := summary.NewGeminiGenerator(cfg.Gemini.APIKeys, cfg.Gemini.Model)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini generator: %v", err)
		}
		summaryService = summary.NewService(repo, generator, summary.Config{
			Model:     cfg.Gemini.Model,
			ChunkSize: cfg.Gemini.ChunkSize,
		})
	}

	server := api.NewServer(cfg,
		api.WithLogger(appLogger),
		api.WithServices(transcriptService, summaryService),
	)

	// Graceful shutdown setup
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan
		appLogger.Info("Shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			appLogger.WithError(err).Error("Server shutdown error")
		}

		if err := db.Close(); err != nil {
			appLogger.WithError(err).Error("Database shutdown error")
		}
	}()

	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
