package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/auth"
	"github.com/mamadbah2/cropwatch/internal/server/handlers"
)

// Handlers groups the HTTP adapters mounted by New.
type Handlers struct {
	Auth            *handlers.AuthHandler
	Zones           *handlers.ZoneHandler
	Recommendations *handlers.RecommendationHandler
	Dashboard       *handlers.DashboardHandler
	Rover           *handlers.RoverHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, sessions *auth.SessionManager, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/auth/demo-login", h.Auth.DemoLogin)

	private := api.Group("", auth.RequireActor(sessions, logger.Named("auth")))
	{
		private.GET("/zones", h.Zones.List)
		private.POST("/zones", h.Zones.Create)
		private.POST("/zones/:zoneId/archive", h.Zones.Archive)
		private.POST("/zones/:zoneId/unarchive", h.Zones.Unarchive)

		private.GET("/summary", h.Dashboard.Summary)
		private.GET("/summary/export", h.Dashboard.Export)
		private.GET("/timeline", h.Dashboard.Timeline)

		private.POST("/recommendations/run", h.Recommendations.Run)
		private.POST("/recommendations/decision", h.Recommendations.Decide)

		private.POST("/rover/observations", h.Rover.RecordObservation)
		private.POST("/rover/upload", h.Rover.Upload)
	}

	logger.Info("router initialized")
	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
