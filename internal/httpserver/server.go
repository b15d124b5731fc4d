// Package httpserver binds the matching services to a JSON API.
package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/meetsmatch/matchqueue/internal/config"
	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/interfaces"
	"github.com/meetsmatch/matchqueue/internal/middleware"
	"github.com/meetsmatch/matchqueue/internal/monitoring"
	"github.com/meetsmatch/matchqueue/internal/sentry"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// Dependencies are the collaborators of the router. Metrics and RateLimiter
// are optional.
type Dependencies struct {
	ServiceName string
	Preferences interfaces.PreferenceServiceInterface
	Matches     interfaces.MatchServiceInterface
	Queue       interfaces.QueueServiceInterface
	Health      *monitoring.HealthChecker
	Metrics     *monitoring.HTTPMetrics
	RateLimiter *middleware.RateLimiter
}

// NewRouter builds the gin engine with the middleware chain and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	router.Use(sentry.GinMiddleware())
	if deps.ServiceName != "" {
		router.Use(otelgin.Middleware(deps.ServiceName))
	}
	if deps.Metrics != nil {
		router.Use(deps.Metrics.GinMiddleware())
	}
	router.Use(middleware.LoggingMiddleware(nil), middleware.ErrorHandler())
	router.NoRoute(func(c *gin.Context) {
		middleware.Abort(c, apperrors.NewNotFoundError("route "+c.Request.URL.Path))
	})

	if deps.Health != nil {
		router.GET("/health", deps.Health.HealthHandler())
		router.GET("/health/live", deps.Health.LivenessHandler())
	}

	h := &handlers{
		preferences: deps.Preferences,
		matches:     deps.Matches,
		queue:       deps.Queue,
	}

	v1 := router.Group("/v1")
	{
		prefs := v1.Group("/preferences/:userId")
		prefs.GET("", h.getPreferences)
		prefs.PATCH("", h.updatePreferences)
		prefs.PATCH("/dating", h.updateDatingPreferences)

		queue := v1.Group("/queue/:userId")
		queue.POST("", h.joinQueue)
		queue.DELETE("", h.leaveQueue)
		queue.POST("/matched", h.markMatched)

		matches := v1.Group("/matches")
		find := []gin.HandlerFunc{h.findMatches}
		if deps.RateLimiter != nil {
			find = append([]gin.HandlerFunc{deps.RateLimiter.Middleware()}, find...)
		}
		matches.POST("/find", find...)
		matches.GET("/history/:userId", h.matchHistory)
		matches.GET("/stats", h.matchStats)
	}

	return router
}

// Server owns the HTTP listener.
type Server struct {
	httpServer *http.Server
}

func NewServer(cfg config.HTTPConfig, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	telemetry.GetContextualLogger(context.Background()).WithFields(map[string]interface{}{
		"operation": "http_server_start",
		"service":   "http",
		"addr":      s.httpServer.Addr,
	}).Info("HTTP server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
