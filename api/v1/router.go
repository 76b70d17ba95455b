package v1

import (
	"github.com/iayvob/palboti-backend/api/v1/auth"
	"github.com/iayvob/palboti-backend/api/v1/dashboard"
	"github.com/iayvob/palboti-backend/api/v1/insights"
	"github.com/iayvob/palboti-backend/api/v1/middleware"
	"github.com/iayvob/palboti-backend/api/v1/products"
	"github.com/iayvob/palboti-backend/api/v1/robots"
	"github.com/iayvob/palboti-backend/api/v1/tasks"
	"github.com/iayvob/palboti-backend/api/v1/zones"
	"github.com/iayvob/palboti-backend/internal/config"
	"github.com/iayvob/palboti-backend/internal/dispatch"
	"github.com/iayvob/palboti-backend/internal/httpx"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter sets up the API v1 routes
func SetupRouter(r *gin.Engine, db *gorm.DB, cfg *config.Config, dispatcher *dispatch.Dispatcher) {
	v1 := r.Group("/api/v1")
	{
		// Public routes (no authentication required)
		v1.GET("/ping", pingHandler)

		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", auth.LoginHandler(db, cfg))
		}

		// Protected routes (authentication required)
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/me", meHandler)

			// Robots routes
			robotsHandler := robots.NewHandler(db)
			robotsGroup := protected.Group("/robots")
			{
				robotsGroup.GET("", robotsHandler.List)
				robotsGroup.GET("/:id", robotsHandler.Get)
				robotsGroup.GET("/:id/history", robotsHandler.History)
			}

			// Tasks routes
			tasksHandler := tasks.NewHandler(db, dispatcher)
			tasksGroup := protected.Group("/tasks")
			{
				tasksGroup.GET("", tasksHandler.List)
				tasksGroup.GET("/:id", tasksHandler.Get)
				tasksGroup.POST("/create", tasksHandler.Create)
				tasksGroup.POST("/:id/cancel", tasksHandler.Cancel)
			}

			// Products routes
			productsHandler := products.NewHandler(db)
			productsGroup := protected.Group("/products")
			{
				productsGroup.GET("", productsHandler.List)
				productsGroup.GET("/categories", productsHandler.Categories)
				productsGroup.GET("/:id", productsHandler.Get)
				productsGroup.POST("/create", productsHandler.Create)
				productsGroup.POST("/update", productsHandler.Update)
			}

			// Zones routes
			zonesHandler := zones.NewHandler(db)
			zonesGroup := protected.Group("/zones")
			{
				zonesGroup.GET("", zonesHandler.List)
				zonesGroup.GET("/:id", zonesHandler.Get)
				zonesGroup.POST("/slots/assign", zonesHandler.AssignSlot)
				zonesGroup.POST("/slots/clear", zonesHandler.ClearSlot)
			}

			// Insights routes
			insightsHandler := insights.NewHandler(db)
			insightsGroup := protected.Group("/insights")
			{
				insightsGroup.GET("", insightsHandler.List)
				insightsGroup.GET("/:id", insightsHandler.Get)
				insightsGroup.POST("/:id/ack", insightsHandler.Acknowledge)
			}

			// Dashboard routes
			dashboardHandler := dashboard.NewHandler(db)
			protected.GET("/dashboard/stats", dashboardHandler.Stats)
		}
	}
}

// pingHandler handles the ping request using unified response
func pingHandler(c *gin.Context) {
	httpx.OK(c, gin.H{
		"pong": true,
	})
}

// meHandler returns current user information
func meHandler(c *gin.Context) {
	uid, _ := c.Get("uid")
	username, _ := c.Get("username")
	role, _ := c.Get("role")

	httpx.OK(c, gin.H{
		"uid":      uid,
		"username": username,
		"role":     role,
	})
}
