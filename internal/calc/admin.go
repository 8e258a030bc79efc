package calc

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/virdis/calcwire/internal/auth"
	"github.com/virdis/calcwire/internal/observability"
)

// Admin is the optional HTTP surface exposing health, readiness, runtime
// stats, and Prometheus metrics for a running service.
type Admin struct {
	service *Service
	router  *gin.Engine
	started time.Time
}

// NewAdmin builds the admin router with recovery, request telemetry, and
// CORS for the configured origins.
func NewAdmin(s *Service) *Admin {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestTelemetry(s.cfg.ServiceID, log.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CORSOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Admin{
		service: s,
		router:  r,
		started: time.Now(),
	}
}

func (a *Admin) Router() *gin.Engine {
	return a.router
}

func (a *Admin) RegisterRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.started).String(),
			"service": a.service.cfg.ServiceID,
			"version": "0.0.1",
		})
	})

	a.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(a.started).String(),
			"service": a.service.cfg.ServiceID,
			"version": "0.0.1",
		})
	})

	// Probes stay open; stats and metrics honor the configured token.
	guarded := a.router.Group("")
	if token := a.service.cfg.AdminAuthToken; token != "" {
		guarded.Use(requireToken(auth.StaticToken{Token: token}))
	}

	guarded.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":         a.service.cfg.ServiceID,
			"listen_addr":     a.service.cfg.ListenAddr,
			"active_handlers": a.service.ActiveHandlers(),
			"max_connections": a.service.cfg.MaxConnections,
		})
	})

	guarded.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := v.Validate(auth.FromHeader(c.GetHeader("Authorization"))); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (a *Admin) Serve(addr string) error {
	a.RegisterRoutes()
	return a.router.Run(addr)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
