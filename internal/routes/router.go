package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"taskvault/internal/auth"
	"taskvault/internal/cache"
	"taskvault/internal/config"
	"taskvault/internal/controller"
	"taskvault/internal/middleware"
)

// Router wires the middleware chain and routes. Order matters: CORS and
// security headers first, then recovery, then the error formatter so it
// sees every handler's recorded errors, then the auth gate on the
// protected group.
func Router(authCtl *controller.AuthController, taskCtl *controller.TaskController, issuer *auth.Issuer, idx *cache.Index) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(cors.New(cors.Config{
		AllowOrigins: config.Get().CORSOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	router.Use(middleware.SecurityHeaders())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorFormatter())

	// Health for load balancers and K8s probes
	router.GET("/health", controller.Health)
	router.GET("/ready", controller.Ready(idx))

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", authCtl.Register)
		authGroup.POST("/login", authCtl.Login)
	}

	// Protected: JWT required
	tasks := v1.Group("/tasks")
	tasks.Use(middleware.Auth(issuer))
	{
		tasks.GET("/admin/summary", taskCtl.Summary)
		tasks.GET("", taskCtl.List)
		tasks.POST("", taskCtl.Create)
		tasks.PUT("/:id", taskCtl.Update)
		tasks.DELETE("/:id", taskCtl.Delete)
	}

	return router
}
