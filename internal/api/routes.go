package api

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// InitRoutes initializes all API routes. ws serves the streaming endpoint and
// may be nil.
func InitRoutes(e *echo.Echo, handler *Handler, ws echo.HandlerFunc, logger *zap.Logger) {
	secret := handler.options.JWTSecret

	e.GET("/health", handler.Health)

	optional := OptionalClient(secret, logger)
	e.POST("/transcribe/", handler.Transcribe, optional)
	e.POST("/transcribe", handler.Transcribe, optional)

	if ws != nil {
		e.GET("/ws/transcribe", ws, optional)
	}

	// API v1 routes
	v1 := e.Group("/api/v1", RequireClient(secret, logger))
	v1.POST("/grammar", handler.CorrectGrammar)
	v1.GET("/corrections", handler.ListCorrections)
	v1.GET("/corrections/:id", handler.GetCorrection)
	v1.GET("/pipelines/:id", handler.GetPipeline)
}
