package server

import (
  "strings"

  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/handlers"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/middleware"
)

type RouterConfig struct {
  AuthMiddleware  *middleware.AuthMiddleware
  RoadmapHandler  *handlers.RoadmapHandler
  ProgressHandler *handlers.ProgressHandler
  QuizHandler     *handlers.QuizHandler
  ResourceHandler *handlers.ResourceHandler
  SSEHandler      *handlers.SSEHandler
  AllowOrigins    string // comma separated, CORS_ALLOW_ORIGINS
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  origins := []string{"http://localhost:3000", "http://localhost:5174"}
  if cfg.AllowOrigins != "" {
    origins = origins[:0]
    for _, o := range strings.Split(cfg.AllowOrigins, ",") {
      if o = strings.TrimSpace(o); o != "" {
        origins = append(origins, o)
      }
    }
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     origins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  // ===============
  // || Public    ||
  // ===============
  router.GET("/healthcheck", handlers.HealthCheck)

  // ===============
  // || Protected ||
  // ===============
  protected := router.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())

  // SSE
  protected.GET("/sse/stream", cfg.SSEHandler.SSEStream)

  api := protected.Group("/api")
  {
    // Roadmaps
    api.POST("/roadmaps", cfg.RoadmapHandler.Create)
    api.GET("/roadmaps/:id", cfg.RoadmapHandler.GetByID)
    api.POST("/roadmaps/:id/generate", cfg.RoadmapHandler.Regenerate)
    api.GET("/documents/:id/roadmap", cfg.RoadmapHandler.GetByDocumentID)
    api.POST("/roadmaps/:id/steps/:conceptID/expand", cfg.RoadmapHandler.ExpandStep)
    api.GET("/roadmaps/:id/suggested-concepts", cfg.RoadmapHandler.SuggestConcepts)

    // Resources
    api.POST("/roadmaps/:id/resources/refresh", cfg.ResourceHandler.RefreshResources)
    api.GET("/roadmaps/:id/resources", cfg.ResourceHandler.GetByRoadmap)

    // Progress
    api.GET("/me/roadmaps", cfg.ProgressHandler.ListUserRoadmaps)
    api.GET("/me/roadmaps/:id", cfg.ProgressHandler.GetUserRoadmap)
    api.PUT("/roadmaps/:id/steps/:conceptID/progress", cfg.ProgressHandler.UpdateStepProgress)

    // Quizzes
    api.POST("/roadmaps/:id/steps/:conceptID/quiz", cfg.QuizHandler.GenerateStepQuiz)
    api.POST("/quiz-attempts/:id/answers", cfg.QuizHandler.SubmitAnswers)

    // Admin
    api.GET("/admin/roadmaps/stalled", cfg.RoadmapHandler.Stalled)
  }

  return router
}
