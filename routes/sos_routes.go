package routes

import (
	"readyaid/internal/middleware"

	handlers "readyaid/internal/handlers/shared"

	"github.com/gin-gonic/gin"
)

// SetupSOSRoutes sets up routes for emergency session functionality
func SetupSOSRoutes(r *gin.RouterGroup, sosHandler *handlers.SOSHandler, jwtSecret string) {
	// Public tracking routes; the session access token is the credential
	sessions := r.Group("/sessions")
	{
		sessions.GET("/:id/public", sosHandler.GetPublicSession)
	}

	// Protected SOS routes (require authentication)
	sos := r.Group("/sos")
	sos.Use(middleware.AuthRequired(jwtSecret))
	{
		sos.POST("/start", sosHandler.StartSession)
		sos.POST("/auto-start", sosHandler.AutoStartSession)
		sos.PUT("/end", sosHandler.EndSession)
		sos.GET("/status", sosHandler.GetStatus)

		sos.GET("/settings", sosHandler.GetSettings)
		sos.PUT("/settings", sosHandler.UpdateSettings)
	}
}

// SetupWebSocketRoutes exposes the live session feed. Token checks
// happen in the handler, before the upgrade.
func SetupWebSocketRoutes(r *gin.Engine, sosHandler *handlers.SOSHandler) {
	r.GET("/ws/sessions/:id", sosHandler.ServeSessionFeed)
}
