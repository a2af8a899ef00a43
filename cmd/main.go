package main

import (
  "context"
  "fmt"
  "os"

  "github.com/joho/godotenv"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/db"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/graph"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/handlers"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/middleware"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/repos"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/server"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/services"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/sse"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  if err := godotenv.Load(); err != nil {
    log.Debug("No .env file found, relying on process environment")
  }
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  workerCount := utils.GetEnvAsInt("WORKER_COUNT", 2, log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Error("Postgres auto migration failed", "error", err)
    os.Exit(1)
  }
  thePG := postgresService.DB()

  // Neo4j (optional; pipeline runs without a graph backend)
  graphClient, err := graph.NewFromEnv(log)
  if err != nil {
    log.Warn("Neo4j init failed, continuing without graph", "error", err)
    graphClient = nil
  }

  // Repos
  log.Info("Setting up Repos from main...")
  roadmapRepo := repos.NewRoadmapRepo(thePG, log)
  stepRepo := repos.NewRoadmapStepRepo(thePG, log)
  conceptRepo := repos.NewConceptRepo(thePG, log)
  relationRepo := repos.NewConceptRelationRepo(thePG, log)
  progressRepo := repos.NewProgressRepo(thePG, log)
  resourceRepo := repos.NewResourceRepo(thePG, log)
  attemptRepo := repos.NewStepQuizAttemptRepo(thePG, log)
  runRepo := repos.NewGenerationRunRepo(thePG, log)

  // SSE
  log.Info("Setting up SSE hub now...")
  sseHub := sse.NewSSEHub(log)
  ctx := context.Background()
  if os.Getenv("REDIS_ADDR") != "" {
    sseBus, err := services.NewRedisSSEBus(log)
    if err != nil {
      log.Warn("Redis SSE bus init failed, running single-instance", "error", err)
    } else {
      defer sseBus.Close()
      if err := sseBus.StartForwarder(ctx, func(m sse.SSEMessage) {
        sseHub.Broadcast(m)
      }); err != nil {
        log.Warn("Redis SSE forwarder failed to start", "error", err)
      }
    }
  }

  // Services
  log.Info("Setting up Services from main...")
  generationClient, err := services.NewGenerationClient(log)
  if err != nil {
    log.Error("Could not init GenerationClient", "error", err)
    os.Exit(1)
  }
  genService := services.NewRoadmapGenerationService(
    thePG,
    log,
    sseHub,
    roadmapRepo,
    stepRepo,
    conceptRepo,
    relationRepo,
    runRepo,
    graphClient,
    generationClient,
    workerCount,
  )
  genService.StartWorker(ctx)
  roadmapService := services.NewRoadmapService(thePG, log, sseHub, roadmapRepo, stepRepo, conceptRepo, graphClient, generationClient)
  resourceService := services.NewResourceDiscoveryService(thePG, log, sseHub, roadmapRepo, stepRepo, resourceRepo, generationClient)
  progressService := services.NewProgressService(thePG, log, roadmapRepo, stepRepo, progressRepo, resourceRepo)
  quizService := services.NewStepQuizService(thePG, log, roadmapRepo, stepRepo, attemptRepo, generationClient)

  // Handlers
  log.Info("Setting up handlers from main...")
  roadmapHandler := handlers.NewRoadmapHandler(log, roadmapService, genService)
  progressHandler := handlers.NewProgressHandler(log, progressService)
  quizHandler := handlers.NewQuizHandler(log, quizService)
  resourceHandler := handlers.NewResourceHandler(log, resourceService)
  sseHandler := handlers.NewSSEHandler(log, sseHub)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    AuthMiddleware:  authMiddleware,
    RoadmapHandler:  roadmapHandler,
    ProgressHandler: progressHandler,
    QuizHandler:     quizHandler,
    ResourceHandler: resourceHandler,
    SSEHandler:      sseHandler,
    AllowOrigins:    os.Getenv("CORS_ALLOW_ORIGINS"),
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
  if graphClient != nil {
    _ = graphClient.Close(ctx)
  }
}
