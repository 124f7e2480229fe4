package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"audio-transcriber/internal/api/middleware"
	"audio-transcriber/internal/api/v1/handlers"
	"audio-transcriber/internal/api/v1/services"
	"audio-transcriber/internal/app/api/provider"
	"audio-transcriber/internal/app/intake"
)

// ServiceContainer holds all services needed by handlers
type ServiceContainer struct {
	SessionService       services.SessionService
	TranscriptionService services.TranscriptionService
	Policy               intake.Policy
	Provider             provider.ProviderInfo
	MaxBodyBytes         int64
	Heartbeat            time.Duration
}

// RegisterRoutes registers all v1 API routes
func RegisterRoutes(router *gin.RouterGroup, container *ServiceContainer) {
	upload := middleware.BodySizeLimit(container.MaxBodyBytes)

	transcriptionHandler := handlers.NewTranscriptionHandler(container.TranscriptionService, container.Policy, container.Provider)
	router.GET("/intake", transcriptionHandler.Intake)
	router.POST("/transcriptions", upload, transcriptionHandler.Transcribe)

	sessionHandler := handlers.NewSessionHandler(container.SessionService, container.Policy, container.Heartbeat)
	sessions := router.Group("/sessions")
	{
		sessions.POST("", sessionHandler.Create)
		sessions.GET("/:id", sessionHandler.Get)
		sessions.DELETE("/:id", sessionHandler.Delete)
		sessions.PUT("/:id/file", upload, sessionHandler.SelectFile)
		sessions.DELETE("/:id/file", sessionHandler.RemoveFile)
		sessions.POST("/:id/transcriptions", sessionHandler.Submit)
		sessions.GET("/:id/events", sessionHandler.Events)
	}
}
