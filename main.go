package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/robfig/cron/v3"

	"paranote/backend/config"
	"paranote/backend/handlers"
	"paranote/backend/internal/analyzer"
	"paranote/backend/internal/extractor"
	"paranote/backend/internal/llm"
	"paranote/backend/internal/orchestrator"
	"paranote/backend/internal/store"
	"paranote/backend/internal/worker"
	"paranote/backend/middleware"
	"paranote/backend/models"
)

func main() {
	log := config.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var st store.Store
	switch cfg.StoreBackend {
	case "sqlite":
		st, err = store.OpenSQLite(cfg.SQLitePath)
	case "supabase":
		st, err = store.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey)
	default:
		err = fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	log.WithField("backend", cfg.StoreBackend).Info("Store initialized")

	gateway, err := llm.NewGatewayFromConfig(cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize LLM gateway: %v", err)
	}

	extractors := map[models.JobType]extractor.Extractor{
		models.JobTypeAudio:    extractor.NewAudio(cfg.FFmpegPath, cfg.WhisperPath, cfg.WhisperModel),
		models.JobTypeImage:    extractor.NewImage(cfg.TesseractPath, cfg.OCRLanguage),
		models.JobTypeDocument: extractor.NewDocument(),
		models.JobTypeLink:     extractor.NewLink(nil),
	}

	dispatcher := worker.NewDispatcher(cfg.WorkerCount, cfg.JobQueueSize, log)
	dispatcherCtx, cancelWorkers := context.WithCancel(context.Background())
	dispatcher.Run(dispatcherCtx)

	orch := orchestrator.New(st, extractors, analyzer.New(gateway), dispatcher, log, orchestrator.Options{
		ExtractionTimeout: cfg.ExtractionTimeout,
		AnalysisTimeout:   cfg.AnalysisTimeout,
		UploadDir:         cfg.UploadDir,
	})

	// Sweep for jobs orphaned by a crashed worker or process restart.
	reaper := cron.New()
	if _, err := reaper.AddFunc("@every 1m", func() {
		if err := orch.ReapStale(context.Background()); err != nil {
			log.WithField("error", err.Error()).Error("Stale job sweep failed")
		}
	}); err != nil {
		log.Fatalf("Failed to schedule stale job sweep: %v", err)
	}
	reaper.Start()

	appHandler := handlers.NewApplicationHandler(orch, st, log)

	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-User-ID",
	}))
	app.Use(middleware.RequestLogger(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "Processing service is healthy",
		})
	})

	apiV1 := app.Group("/api/v1")
	processing := apiV1.Group("/processing")
	processing.Post("/start/:mediaId", appHandler.StartProcessing)
	processing.Post("/link", appHandler.StartLink)
	processing.Post("/classify/:noteId", appHandler.ClassifyNote)
	processing.Get("/status/:jobId", appHandler.JobStatus)
	processing.Get("/results/:noteId", appHandler.NoteResults)
	processing.Get("/classification/:noteId", appHandler.NoteClassification)
	processing.Delete("/:jobId", appHandler.CancelJob)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	}()
	log.WithField("port", cfg.Port).Info("Processing service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	if err := app.Shutdown(); err != nil {
		log.WithField("error", err.Error()).Error("Server shutdown failed")
	}
	reaper.Stop()
	dispatcher.Stop()
	cancelWorkers()
	log.Info("Shutdown complete")
}
