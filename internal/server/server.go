package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"dealbroker/config"
	"dealbroker/internal/handler"
	"dealbroker/internal/middleware"
	"dealbroker/internal/redis"
	"dealbroker/internal/services"
	"dealbroker/internal/transport/httpdto"
	"dealbroker/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Users        *handler.UserHandler
	Tasks        *handler.TaskHandler
	Interactions *handler.InteractionHandler
	Callbacks    *handler.CallbackHandler
}

// Dependencies are the shared pieces the routes need besides handlers.
type Dependencies struct {
	Auth *services.AuthService
	// Limiter may be nil; rate limiting is then disabled.
	Limiter middleware.Limiter
	// HealthCheck reports whether the store is reachable. Nil means healthy.
	HealthCheck func(ctx context.Context) error
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.Server.Mode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.Server.Mode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Dependencies) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	limit := func(scope string, subject middleware.SubjectFunc) gin.HandlerFunc {
		return middleware.RateLimit(deps.Limiter, scope, subject)
	}
	operator := middleware.OperatorAuth(deps.Auth)

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/users", handlers.Users.Register)
		v1.POST("/tasks", handlers.Tasks.Create)
		v1.GET("/tasks/:id", handlers.Tasks.Get)
		v1.POST("/payments/confirm", handlers.Tasks.ConfirmPayment)
		v1.POST("/tasks/:id/responses", limit(redis.ScopeCallback, middleware.ClientIP), handlers.Tasks.Respond)
		v1.GET("/interactions/:id", handlers.Interactions.Get)
		v1.POST("/interactions/:id/feedback", limit(redis.ScopeFeedback, middleware.ClientIP), handlers.Interactions.Feedback)
		v1.POST("/chat/callback", limit(redis.ScopeCallback, middleware.ClientIP), handlers.Callbacks.Handle)
	}

	ops := v1.Group("", operator, limit(redis.ScopeOperator, middleware.OperatorSubject))
	{
		ops.POST("/verification", handlers.Users.SetVerification)
		ops.POST("/moderation/tasks/:id/approve", handlers.Tasks.Approve)
		ops.POST("/interactions/:id/resolve", handlers.Interactions.Resolve)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.Server.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Errorf("Error in starting the server: %s", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
