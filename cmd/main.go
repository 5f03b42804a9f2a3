package main

import (
  "context"
  "fmt"
  "os"

  "github.com/wanderplan/wanderplan-backend/internal/db"
  "github.com/wanderplan/wanderplan-backend/internal/handlers"
  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/middleware"
  "github.com/wanderplan/wanderplan-backend/internal/observability"
  "github.com/wanderplan/wanderplan-backend/internal/ratelimit"
  "github.com/wanderplan/wanderplan-backend/internal/repos"
  "github.com/wanderplan/wanderplan-backend/internal/server"
  "github.com/wanderplan/wanderplan-backend/internal/services"
  "github.com/wanderplan/wanderplan-backend/internal/sse"
  "github.com/wanderplan/wanderplan-backend/internal/utils"
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

  ctx := context.Background()

  // Tracing
  shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
    ServiceName: "wanderplan",
    Environment: utils.GetEnv("APP_ENV", "development", log),
  })
  defer func() { _ = shutdownOTel(ctx) }()

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  planRepo := repos.NewPlanRepo(thePG, log)
  generationRunRepo := repos.NewGenerationRunRepo(thePG, log)
  aiResponseCacheRepo := repos.NewAIResponseCacheRepo(thePG, log)
  aiCallLogRepo := repos.NewAICallLogRepo(thePG, log)

  // SSE
  log.Info("Setting up SSE hub now...")
  sseHub := sse.NewSSEHub(log)
  sseBus, err := services.NewRedisSSEBus(log)
  if err != nil {
    log.Warn("Redis SSE bus unavailable, running single-process", "error", err)
    sseBus = nil
  } else {
    if err := sseBus.StartForwarder(ctx, sseHub.Broadcast); err != nil {
      log.Warn("Could not start SSE forwarder", "error", err)
    }
    defer sseBus.Close()
  }

  // Rate limiters
  aiLimiter := ratelimit.New(ratelimit.Config{
    ShortLimit: utils.GetEnvAsInt("AI_RATE_LIMIT_PER_MINUTE", 10, log),
    LongLimit:  utils.GetEnvAsInt("AI_RATE_LIMIT_PER_HOUR", 100, log),
  })
  userLimiter := ratelimit.New(ratelimit.Config{
    ShortLimit: utils.GetEnvAsInt("USER_RATE_LIMIT_PER_MINUTE", 10, log),
    LongLimit:  utils.GetEnvAsInt("USER_RATE_LIMIT_PER_HOUR", 100, log),
  })

  // Services
  log.Info("Setting up Services from main...")
  responseCacheService := services.NewResponseCacheService(thePG, log, aiResponseCacheRepo)
  providers := []services.ItineraryProvider{
    services.NewOpenAIProvider(log),
    services.NewGeminiProvider(log),
  }
  chainService := services.NewFallbackChainService(thePG, log, providers, responseCacheService, aiLimiter, aiCallLogRepo)
  statusService := services.NewGenerationStatusService(thePG, log, generationRunRepo, sseHub, sseBus)
  genService := services.NewPlanGenerationService(thePG, log, statusService, chainService, planRepo, aiLimiter)
  genService.StartWorker(ctx)
  editService := services.NewPlanEditService(thePG, log, planRepo, genService, sseHub, sseBus)
  complexityEvaluator := services.NewComplexityEvaluator(log)
  assistantService := services.NewAssistantService(thePG, log, planRepo, chainService, complexityEvaluator, userLimiter, sseHub, sseBus)
  sweeperService := services.NewSweeperService(log, statusService, responseCacheService, aiLimiter, userLimiter)
  sweeperService.Start()
  defer sweeperService.Stop()

  // Handlers
  log.Info("Setting up handlers from main...")
  planGenHandler := handlers.NewPlanGenHandler(genService, statusService)
  planHandler := handlers.NewPlanHandler(editService)
  planEditHandler := handlers.NewPlanEditHandler(editService)
  assistantHandler := handlers.NewAssistantHandler(assistantService)
  sseHandler := handlers.NewSSEHandler(log, sseHub)

  // Middleware
  log.Info("Setting up middleware from main...")
  identityMiddleware := middleware.NewIdentityMiddleware(log)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    IdentityMiddleware: identityMiddleware,
    PlanGenHandler:     planGenHandler,
    PlanHandler:        planHandler,
    PlanEditHandler:    planEditHandler,
    AssistantHandler:   assistantHandler,
    SSEHandler:         sseHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
