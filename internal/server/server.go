package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"campus-relay/config"
	"campus-relay/internal/handler"
	"campus-relay/internal/middleware"
	"campus-relay/internal/transport/httpdto"
	"campus-relay/internal/websocket"
	"campus-relay/pkg/logger"

	"github.com/gin-gonic/gin"
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

const shutdownTimeout = 5 * time.Second

type Handlers struct {
	Messages      *handler.MessageHandler
	Conversations *handler.ConversationHandler
	Notifications *handler.NotificationHandler
	WebSocket     *websocket.Handler
}

// Dependencies are the cross-cutting pieces the routes need besides handlers.
type Dependencies struct {
	Auth        middleware.Authenticator
	RateLimiter middleware.MessageLimiter
	// Health reports whether the durable store is reachable.
	Health func(ctx context.Context) error
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	switch cfg.AppMode {
	case ReleaseMode:
		gin.SetMode(gin.ReleaseMode)
	case TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, mostly for tests.
func (s *Server) Engine() *gin.Engine {
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
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	v1 := s.engine.Group("/v1")

	// the socket authenticates itself so it can also take ?token=
	v1.GET("/ws", handlers.WebSocket.Connect)

	authed := v1.Group("", middleware.AuthMiddleware(deps.Auth))

	messages := authed.Group("/messages")
	{
		messages.POST("", middleware.MessageRateLimitMiddleware(deps.RateLimiter, s.logger), handlers.Messages.Send)
		messages.GET("", handlers.Messages.List)
		messages.POST("/read", handlers.Messages.MarkRead)
		messages.GET("/unread-count", handlers.Messages.UnreadCount)
	}

	conversations := authed.Group("/conversations")
	{
		conversations.GET("", handlers.Conversations.List)
		conversations.GET("/:id", handlers.Conversations.GetByID)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.GET("", handlers.Notifications.List)
		notifications.GET("/unread-count", handlers.Notifications.UnreadCount)
		notifications.POST("/read-all", handlers.Notifications.MarkAllRead)
		notifications.POST("/:id/read", handlers.Notifications.MarkRead)
		notifications.DELETE("/:id", handlers.Notifications.Delete)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
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

	s.logger.Infof("Shutting down the server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
