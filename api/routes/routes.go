package routes

import (
	"github.com/dinehub/leaderboard-backend/internal/config"
	"github.com/dinehub/leaderboard-backend/internal/handlers"
	"github.com/dinehub/leaderboard-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// HandlerDependencies groups the handlers wired up in main
type HandlerDependencies struct {
	AuthHandler  *handlers.AuthHandler
	CycleHandler *handlers.CycleHandler
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, deps HandlerDependencies) *gin.Engine {
	router := gin.Default()

	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})

		auth := public.Group("/auth")
		{
			auth.POST("/login", deps.AuthHandler.Login)
			auth.POST("/register", deps.AuthHandler.Register)
		}

		// Read-only leaderboard views
		public.GET("/cycles", deps.CycleHandler.GetCycles)
		public.GET("/cycles/:id", deps.CycleHandler.GetCycleByID)
		public.GET("/cycles/:id/participants", deps.CycleHandler.GetParticipants)
		public.GET("/cycles/:id/winners", deps.CycleHandler.GetWinners)
	}

	// Operator routes
	protected := router.Group("/api/v1")
	protected.Use(middleware.JWTAuthMiddleware(cfg))
	{
		cycles := protected.Group("/cycles")
		{
			cycles.POST("", deps.CycleHandler.CreateCycle)
			cycles.PUT("/:id", deps.CycleHandler.UpdateCycle)
			cycles.POST("/:id/cancel", deps.CycleHandler.CancelCycle)
			cycles.POST("/:id/complete", deps.CycleHandler.ForceCompleteCycle)
			cycles.DELETE("/:id", deps.CycleHandler.DeleteCycle)
			cycles.POST("/sweep", deps.CycleHandler.TriggerSweep)
		}
	}

	return router
}
