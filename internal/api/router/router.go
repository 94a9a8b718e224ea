package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thomasldk/granite-erp-sub002/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "quote-sync-service",
		})
	})

	// Initialize sync handler
	syncHandler := handler.NewSyncHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		sync := v1.Group("/sync")
		{
			// GET /api/v1/sync/poll - Claim the next pending job
			sync.GET("/poll", syncHandler.PollJob)

			// POST /api/v1/sync/quotes/:quote_id/result - Upload and ingest a result artifact
			sync.POST("/quotes/:quote_id/result", syncHandler.UploadResult)

			// POST /api/v1/sync/quotes/:quote_id/excel - Upload the companion spreadsheet
			sync.POST("/quotes/:quote_id/excel", syncHandler.UploadExcel)

			// POST /api/v1/sync/quotes/:quote_id/duplicate - Queue a duplicate job
			sync.POST("/quotes/:quote_id/duplicate", syncHandler.PrepareDuplicate)
		}
	}

	return r
}
