package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"soundvault/internal/catalog"
	"soundvault/internal/chunkstore"
	"soundvault/internal/config"
	"soundvault/internal/deleter"
	"soundvault/internal/handlers"
	"soundvault/internal/ingest"
	"soundvault/internal/storage"
	"soundvault/internal/streamer"
	"soundvault/internal/tracing"
)

func main() {
	log.Println("Starting soundvault service...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Service: %s, Port: %s", cfg.ServiceName, cfg.ServicePort)

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.InitTracer(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	// Initialize MinIO client
	log.Println("Connecting to MinIO...")
	minioClient, err := storage.NewMinioClient(
		cfg.MinIOEndpoint,
		cfg.MinIOAccessKey,
		cfg.MinIOSecretKey,
		cfg.MinIOBucketName,
		cfg.MinIOUseSSL,
	)
	if err != nil {
		log.Fatalf("Failed to initialize MinIO client: %v", err)
	}
	log.Println("MinIO client initialized")

	// Initialize MySQL client
	log.Println("Connecting to MySQL...")
	mysqlClient, err := storage.NewMySQLClient(cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to initialize MySQL client: %v", err)
	}
	defer mysqlClient.Close()
	log.Println("MySQL client initialized")

	// Initialize Redis client
	log.Println("Connecting to Redis...")
	redisClient, err := storage.NewRedisClient(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to initialize Redis client: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis client initialized")

	// Initialize core services
	store := chunkstore.NewStore(minioClient, mysqlClient, cfg.GetChunkSizeBytes())
	songCatalog := catalog.NewService(mysqlClient, redisClient, cfg.CodeRetries)
	pipeline := ingest.NewPipeline(store, songCatalog, cfg.GetMaxUploadSizeBytes())
	streamService := streamer.NewService(songCatalog, store)
	deleteService := deleter.NewService(songCatalog, store)

	// Reclaim chunks from uploads that never committed
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go store.RunJanitor(janitorCtx)

	// Setup HTTP router
	router := handlers.NewRouter(handlers.Deps{
		Upload: handlers.NewUploadHandler(pipeline, cfg.GetMaxUploadSizeBytes()),
		List:   handlers.NewListHandler(songCatalog),
		Stream: handlers.NewStreamHandler(streamService),
		Delete: handlers.NewDeleteHandler(deleteService),
		Health: handlers.NewHealthHandler(mysqlClient),
	})

	// Create HTTP server. No WriteTimeout: audio streams legitimately
	// outlive a fixed deadline.
	srv := &http.Server{
		Addr:        ":" + cfg.ServicePort,
		Handler:     router,
		ReadTimeout: 5 * time.Minute,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on port %s", cfg.ServicePort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
