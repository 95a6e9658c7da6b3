package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docfield-core/internal/adapters/driven/objectstore"
	"github.com/custodia-labs/docfield-core/internal/adapters/driven/postgres"
	redisqueue "github.com/custodia-labs/docfield-core/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/docfield-core/internal/adapters/driven/redis"
	"github.com/custodia-labs/docfield-core/internal/config"
	"github.com/custodia-labs/docfield-core/internal/core/domain"
	"github.com/custodia-labs/docfield-core/internal/core/ports/driven"
	"github.com/custodia-labs/docfield-core/internal/core/services"
	"github.com/custodia-labs/docfield-core/internal/fieldmap"
	"github.com/custodia-labs/docfield-core/internal/normalisers"
	"github.com/custodia-labs/docfield-core/internal/preprocess"
	"github.com/custodia-labs/docfield-core/internal/raster"
	"github.com/custodia-labs/docfield-core/internal/recognize"
	"github.com/custodia-labs/docfield-core/internal/worker"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Sub-mode for manual job submission during development:
	//   docfield-core enqueue <document-id> <tenant> <object-key>
	if len(os.Args) > 1 && os.Args[1] == "enqueue" {
		runEnqueue(cfg, os.Args[2:])
		return
	}

	log.Printf("docfield-core %s starting", version)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== Initialize PostgreSQL =====
	log.Println("Connecting to PostgreSQL...")
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize schema (idempotent)
	if err := db.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	log.Println("PostgreSQL connected and schema initialized")

	// ===== Initialize Redis =====
	log.Println("Connecting to Redis...")
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	// ===== Driven adapters (infrastructure) =====
	documentStore := postgres.NewDocumentStore(db)

	jobQueue, err := redisqueue.NewQueue(redisClient, fmt.Sprintf("worker-%d", os.Getpid()))
	if err != nil {
		log.Fatalf("Failed to create job queue: %v", err)
	}
	defer jobQueue.Close()

	distributedLock := redisadapter.NewLock(redisClient)
	objectStore := objectstore.New(cfg.ObjectStoreURL)

	// ===== Pipeline stages =====
	rasterizer := raster.New()
	preprocessor := preprocess.New()

	engines := []driven.Recognizer{
		recognize.NewTesseractEngine(cfg.OCRLanguages, cfg.RasterDPI),
	}
	if cfg.HandwritingEnabled {
		hw := recognize.NewHandwritingEngine(cfg.HandwritingServiceURL)
		if ok, err := hw.IsHealthy(ctx); !ok {
			log.Printf("Warning: handwriting service health check failed: %v", err)
		}
		engines = append(engines, hw)
		log.Println("Handwriting recognition enabled")
	}
	recognizer := recognize.NewAdapter(logger, engines...)

	registry := normalisers.DefaultRegistry()
	mapper := fieldmap.New(registry, cfg.MinConfidence)

	// ===== Orchestrator and worker =====
	orchestrator := services.NewPipelineOrchestrator(services.PipelineConfig{
		DocumentStore:  documentStore,
		ObjectStore:    objectStore,
		Lock:           distributedLock,
		Rasterizer:     rasterizer,
		Preprocessor:   preprocessor,
		Recognizer:     recognizer,
		Mapper:         mapper,
		Logger:         logger,
		DPI:            cfg.RasterDPI,
		ModelVersion:   cfg.ModelVersion,
		ProcessTimeout: cfg.ProcessTimeout,
		StaleAfter:     cfg.StaleAfter,
	})

	w := worker.NewWorker(worker.WorkerConfig{
		JobQueue:       jobQueue,
		Orchestrator:   orchestrator,
		Logger:         logger,
		Concurrency:    cfg.WorkerConcurrency,
		DequeueTimeout: cfg.DequeueTimeout,
	})

	if err := w.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}
	log.Printf("Worker started (concurrency=%d), processing documents...", cfg.WorkerConcurrency)

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	log.Println("Stopping worker...")
	w.Stop()
	log.Println("Worker stopped")
}

// runEnqueue submits a single job for an already-uploaded document. The
// content hash is computed from the stored object.
func runEnqueue(cfg *config.Config, args []string) {
	if len(args) != 3 {
		log.Fatal("usage: docfield-core enqueue <document-id> <tenant> <object-key>")
	}
	documentID, tenant, objectKey := args[0], args[1], args[2]

	ctx := context.Background()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	jobQueue, err := redisqueue.NewQueue(redisClient, "enqueue-cli")
	if err != nil {
		log.Fatalf("Failed to create job queue: %v", err)
	}

	objectStore := objectstore.New(cfg.ObjectStoreURL)
	data, err := objectStore.Download(ctx, objectKey)
	if err != nil {
		log.Fatalf("Failed to read object %s: %v", objectKey, err)
	}
	sum := sha256.Sum256(data)

	job := domain.NewJob(documentID, tenant, objectKey, hex.EncodeToString(sum[:]))
	if err := jobQueue.Enqueue(ctx, job); err != nil {
		log.Fatalf("Failed to enqueue job: %v", err)
	}
	log.Printf("Enqueued job %s for document %s (%d bytes)", job.ID, documentID, len(data))
}
