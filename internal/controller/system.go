package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskvault/internal/cache"
	"taskvault/internal/database"
)

// Health returns 200 if the process is alive. Used by load balancers.
func Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Ready reports whether the service can handle traffic. The database is
// required; the cache is not — its state is reported but a degraded
// cache never fails readiness.
func Ready(idx *cache.Index) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		db := database.DB(ctx)
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database ping failed"})
			return
		}
		cacheState := "ok"
		if !idx.Healthy() {
			cacheState = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cache": cacheState})
	}
}
