// Package queryapi exposes searchengine.Engine over REST: a single
// search endpoint plus a health check, built on gin with a
// config-driven rate limiter and one handler per resource.
package queryapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mayhem/fuzzyindex/internal/api/middleware"
	"github.com/mayhem/fuzzyindex/internal/config"
	"github.com/mayhem/fuzzyindex/internal/searchengine"
	"github.com/mayhem/fuzzyindex/internal/store"
)

// SetupRouter wires the query endpoints onto a fresh gin engine.
func SetupRouter(cfg *config.Config, db *store.DB, engine *searchengine.Engine) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/healthz", healthHandler(db))

	v1 := router.Group("/v1")
	{
		if cfg.RateLimit.Enabled {
			limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
			v1.Use(limiter.Middleware())
		}
		v1.POST("/search", searchHandler(engine))
	}

	return router
}

func healthHandler(db *store.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
