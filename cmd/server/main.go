package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mixboard/gateway/internal/audio"
	"github.com/mixboard/gateway/internal/client"
	"github.com/mixboard/gateway/internal/config"
	"github.com/mixboard/gateway/internal/handler"
	"github.com/mixboard/gateway/internal/metrics"
	"github.com/mixboard/gateway/internal/middleware"
	"github.com/mixboard/gateway/internal/orchestrator"
	"github.com/mixboard/gateway/internal/service"
	"github.com/mixboard/gateway/internal/store"
	"github.com/mixboard/gateway/internal/worker"
	ws "github.com/mixboard/gateway/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize metrics
	m := metrics.New(prometheus.DefaultRegisterer)

	// Generator client and audio collaborators
	generatorClient := client.NewGeneratorClient(cfg.Generator)

	fileStore, err := audio.NewFileStore(cfg.Audio.Dir)
	if err != nil {
		log.Fatalf("Failed to create audio dir: %v", err)
	}

	var storage client.StorageClient
	if r2, err := client.NewR2Client(&cfg.R2); err != nil {
		log.Printf("Warning: R2 disabled: %v", err)
	} else {
		storage = r2
	}

	music := audio.NewMusic()
	regionStore := store.NewRegionStore(cfg.Timeline.TotalBeats)
	orch := orchestrator.New(regionStore, generatorClient, music, fileStore)

	// Initialize services
	sessionService := service.NewSessionService(generatorClient)
	libraryService := service.NewLibraryService(generatorClient)
	layoutService := service.NewLayoutService(regionStore, music)
	mashupService := service.NewMashupService(redisClient, asynqClient, orch.InFlight)

	// Initialize handlers
	sessionHandler := handler.NewSessionHandler(sessionService, validate)
	libraryHandler := handler.NewLibraryHandler(libraryService, layoutService, validate)
	layoutHandler := handler.NewLayoutHandler(layoutService, validate)
	mashupHandler := handler.NewMashupHandler(mashupService, validate)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Prometheus metrics
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes
	api := app.Group("/api")

	// Session routes
	api.Post("/session", sessionHandler.Start)

	// Library routes
	library := api.Group("/library", rateLimiter.LibraryLimit(cfg.RateLimit.LibraryPerHour))
	library.Post("/songs", libraryHandler.AddSong)
	library.Delete("/songs", libraryHandler.RemoveSong)

	// Layout routes
	layout := api.Group("/layout")
	layout.Get("/", layoutHandler.Get)
	layout.Delete("/", layoutHandler.Clear)
	layout.Post("/regions", layoutHandler.AddRegion)
	layout.Put("/regions/:regionId", layoutHandler.UpdateRegion)
	layout.Delete("/regions/:regionId", layoutHandler.RemoveRegion)
	layout.Put("/lanes/:lane/state", layoutHandler.SetLaneState)
	layout.Put("/totalBeats", layoutHandler.SetTotalBeats)

	// Generate routes
	generate := api.Group("/generate")
	generate.Post("/start", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), mashupHandler.Start)
	generate.Get("/status/:jobId", mashupHandler.Status)
	generate.Get("/result/:jobId", mashupHandler.Result)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, mashupService, orch, generatorClient, storage, hub, m)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(
	cfg *config.Config,
	mashupService *service.MashupService,
	orch *orchestrator.Orchestrator,
	generator client.Generator,
	storage client.StorageClient,
	hub *ws.Hub,
	m *metrics.Metrics,
) {
	// One queue, one worker: generation cycles must never interleave.
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				"mashup": 1,
			},
		},
	)

	mashupWorker := worker.NewMashupWorker(mashupService, orch, generator, storage, hub, m)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeGenerate, mashupWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
