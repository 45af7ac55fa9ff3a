package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spektr-org/flightquery/internal/handler"
	"github.com/spektr-org/flightquery/internal/middleware"
	"github.com/spektr-org/flightquery/session"
)

// Options configures the router.
type Options struct {
	RateLimit       int    // requests per minute per client IP, 0 disables
	Version         string // reported by /health
	MaxDatasetBytes int64  // upload limit, 0 means handler.DefaultMaxDatasetBytes
}

// SetupRouter wires the HTTP API over a session manager.
func SetupRouter(manager *session.Manager, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "flightquery API is running",
			"version": opts.Version,
		})
	})

	datasets := handler.NewDatasetHandler(manager, opts.MaxDatasetBytes)
	sessions := handler.NewSessionHandler(manager)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(opts.RateLimit, time.Minute))
	{
		api.GET("/registry", datasets.GetRegistry)
		api.PUT("/dataset", datasets.PutDataset)

		s := api.Group("/sessions")
		{
			s.POST("", sessions.CreateSession)
			s.GET("/:id", sessions.GetSession)
			s.DELETE("/:id", sessions.DeleteSession)
			s.POST("/:id/ask", sessions.Ask)
			s.DELETE("/:id/chat", sessions.ClearChat)
			s.PUT("/:id/filters/:dimension", sessions.SetFilter)
			s.DELETE("/:id/filters/:dimension", sessions.ClearFilter)
			s.POST("/:id/reset", sessions.Reset)
			s.GET("/:id/summary", sessions.Summary)
			s.GET("/:id/records", sessions.Records)
			s.GET("/:id/history", sessions.History)
			s.GET("/:id/export", sessions.Export)
		}
	}

	return r
}
