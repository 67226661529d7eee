package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/postpulse/api/handler"
	"github.com/use-agent/postpulse/api/middleware"
	"github.com/use-agent/postpulse/config"
)

// NewRouter creates the status server's Gin engine.
//
// Middleware chain:
//
//	Global:    Recovery → Logger
//	Protected: RequireKey (if keys are set) → RateLimit
//
// Health stays outside auth so liveness probes always work.
func NewRouter(cfg config.ServerConfig, src handler.StatusSource, registry *prometheus.Registry, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", handler.Health(src, startTime))

	protected := r.Group("")
	protected.Use(middleware.RequireKey(cfg.APIKeys))
	protected.Use(middleware.RateLimit(cfg.RequestsPerSecond, cfg.Burst))

	protected.GET("/progress", handler.Progress(src))

	var metricsHandler http.Handler = promhttp.Handler()
	if registry != nil {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	}
	protected.GET("/metrics", gin.WrapH(metricsHandler))

	return r
}
