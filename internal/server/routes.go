package server

import (
	"net/http"

	"github.com/secondbreakfast/conductor/internal/api"
	"github.com/secondbreakfast/conductor/internal/api/middleware"
	"github.com/secondbreakfast/conductor/internal/app"

	"github.com/gin-gonic/gin"
)

func (s *Server) SetupRoutes(app *app.App) {
	// Health check endpoint
	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Not an API, just a simple file server endpoint
	s.ginEngine.GET("/file/:filename", handlerWrapper(app, api.GetFile))

	apiV1 := s.ginEngine.Group("/api/v1")

	// Authentication middleware
	apiV1.Use(handlerWrapper(app, middleware.AuthenticationMiddleware))

	apiV1.POST("/flows", handlerWrapper(app, api.CreateFlow))
	apiV1.GET("/flows", handlerWrapper(app, api.ListFlows))
	apiV1.GET("/flows/:id", handlerWrapper(app, api.GetFlow))
	apiV1.DELETE("/flows/:id", handlerWrapper(app, api.DeleteFlow))
	apiV1.POST("/flows/:id/prompts", handlerWrapper(app, api.CreatePrompt))

	apiV1.PUT("/prompts/:id", handlerWrapper(app, api.UpdatePrompt))
	apiV1.DELETE("/prompts/:id", handlerWrapper(app, api.DeletePrompt))

	apiV1.POST("/runs", handlerWrapper(app, api.CreateRun))
	apiV1.GET("/runs", handlerWrapper(app, api.ListRuns))
	apiV1.GET("/runs/:id", handlerWrapper(app, api.GetRun))
	apiV1.POST("/runs/:id/rerun", handlerWrapper(app, api.RerunRun))
	apiV1.POST("/runs/:id/execute", handlerWrapper(app, api.ExecuteRunSync))

	apiV1.POST("/upload", handlerWrapper(app, api.UploadMedia))
	apiV1.GET("/media", handlerWrapper(app, api.ListMedia))
	apiV1.GET("/media/:id", handlerWrapper(app, api.GetMedia))

	apiV1.GET("/models", handlerWrapper(app, api.ListModels))
}

func handlerWrapper(app *app.App, f func(c *gin.Context)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set("app", app)
		f(ctx)
	}
}
