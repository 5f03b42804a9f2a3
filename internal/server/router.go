package server

import (
  "strings"

  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

  "github.com/wanderplan/wanderplan-backend/internal/handlers"
  "github.com/wanderplan/wanderplan-backend/internal/middleware"
  "github.com/wanderplan/wanderplan-backend/internal/utils"
)

type RouterConfig struct {
  IdentityMiddleware *middleware.IdentityMiddleware
  PlanGenHandler     *handlers.PlanGenHandler
  PlanHandler        *handlers.PlanHandler
  PlanEditHandler    *handlers.PlanEditHandler
  AssistantHandler   *handlers.AssistantHandler
  SSEHandler         *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()
  router.Use(otelgin.Middleware("wanderplan"))

  // Cors
  origins := strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5173", nil), ",")
  router.Use(cors.New(cors.Config{
    AllowOrigins:     origins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  api.Use(cfg.IdentityMiddleware.Identify())
  {
    // Plans
    api.POST("/plans/generate", cfg.PlanGenHandler.Generate)
    api.GET("/plans/:id", cfg.PlanHandler.GetByID)
    api.POST("/plans/:id/delta", cfg.PlanEditHandler.ApplyDelta)
    api.POST("/plans/:id/regenerate", cfg.PlanEditHandler.Regenerate)
    api.POST("/plans/:id/assistant", cfg.AssistantHandler.EditPlan)
    // Generation status
    api.GET("/generation", cfg.PlanGenHandler.ListRecent)
    api.GET("/generation/:id", cfg.PlanGenHandler.GetStatus)
    // SSE
    api.GET("/stream", cfg.SSEHandler.Stream)
  }

  return router
}
