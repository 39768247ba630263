package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/auth"
	"github.com/crm-electoral-api/internal/config"
	"github.com/crm-electoral-api/internal/service"
)

// ServiceName is reported by the health endpoint
const ServiceName = "crm-electoral-api"

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.MaxMultipartMemory = 8 << 20

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	contactLimiter := NewRateLimiter(cfg.RateLimit.ContactPerSecond, cfg.RateLimit.ContactBurst)

	// Handlers
	affiliateHandler := NewAffiliateHandler(services, cfg, log)
	importHandler := NewImportHandler(services, cfg, log)
	exportHandler := NewExportHandler(services, log)
	notifyHandler := NewNotifyHandler(services, log)
	statsHandler := NewStatsHandler(services, log)

	// Health check
	router.GET("/health", healthCheck)
	router.GET("/metrics", metricsHandler(services, log))

	// API v1
	v1 := router.Group("/v1")
	{
		// Public contact form
		v1.POST("/contact", contactLimiter.Middleware(), notifyHandler.Contact)

		private := v1.Group("", authMiddleware(tokens))
		{
			affiliates := private.Group("/affiliates")
			{
				affiliates.GET("", affiliateHandler.List)
				affiliates.POST("", affiliateHandler.Create)
				affiliates.GET("/export", exportHandler.Export)

				// Import endpoints
				affiliates.POST("/imports", importHandler.CreateImport)
				affiliates.GET("/imports/:job_id", importHandler.GetImportStatus)
				affiliates.GET("/imports/:job_id/errors", importHandler.GetImportErrors)

				affiliates.GET("/:id", affiliateHandler.Get)
				affiliates.PATCH("/:id", affiliateHandler.Update)
				affiliates.DELETE("/:id", affiliateHandler.Delete)
				affiliates.POST("/:id/validation", affiliateHandler.ToggleValidation)
				affiliates.PUT("/:id/photo", affiliateHandler.SetPhoto)
				affiliates.GET("/:id/historial", affiliateHandler.History)
				affiliates.GET("/:id/comunicaciones", notifyHandler.Communications)
				affiliates.GET("/:id/whatsapp", notifyHandler.WhatsApp)
				affiliates.POST("/:id/email", notifyHandler.SendEmail)
			}

			private.GET("/templates", notifyHandler.Templates)
			private.POST("/broadcasts", notifyHandler.Broadcast)

			private.GET("/stats/padron", statsHandler.Padron)

			actas := private.Group("/actas")
			{
				actas.GET("", statsHandler.Actas)
				actas.POST("", statsHandler.CreateActa)
				actas.DELETE("", statsHandler.DeleteActas)
			}
		}
	}

	return router
}

// healthCheck returns the health status
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   ServiceName,
	})
}

// metricsHandler returns record and import job counters
func metricsHandler(services *service.Services, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := services.Stats.Counts(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to collect metrics")
			counts = map[string]int{}
		}

		c.JSON(http.StatusOK, gin.H{
			"database":  counts,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Str("path", c.Request.URL.Path).Msg("Panic recovered")
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		if actor, ok := actorFromContext(c); ok {
			event = event.Str("actor", actor.DisplayName()).Str("actor_role", string(actor.Role))
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	origins := make(map[string]bool)
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}

	return func(c *gin.Context) {
		origin := "*"
		if !origins["*"] && len(origins) > 0 {
			origin = ""
			if req := c.GetHeader("Origin"); origins[req] {
				origin = req
				c.Writer.Header().Set("Vary", "Origin")
			}
		}
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
