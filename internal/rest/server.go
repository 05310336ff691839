// Package rest implements the companion's local management REST API.
// It exposes session state, friends, and locally cached chat history to
// local tooling (dashboards, scripts) without going through the backend.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/axolotlclient/axolotlclient-api/internal/api"
	"github.com/axolotlclient/axolotlclient-api/internal/config"
	"github.com/axolotlclient/axolotlclient-api/internal/events"
)

// Server is the local REST API server.
type Server struct {
	cfg      *config.Config
	eventBus *events.EventBus
	session  *api.Session

	httpServer *http.Server
	router     *gin.Engine

	startedAt time.Time
}

// NewServer creates a new REST server bound to a session.
func NewServer(cfg *config.Config, eventBus *events.EventBus, session *api.Session) *Server {
	if cfg.GetApplicationData().Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:      cfg,
		eventBus: eventBus,
		session:  session,
	}
}

// Start runs the server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.startedAt = time.Now()
	s.router = s.buildRouter()

	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.GetApplicationData().REST.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("REST server error: %w", err)
	}
	return nil
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	corsCfg := cors.DefaultConfig()
	origins := s.cfg.GetApplicationData().REST.AllowedOrigins
	if len(origins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsCfg))

	root := router.Group("/api")
	{
		root.GET("/status", s.handleStatus)
		root.GET("/friends", s.handleFriends)
		root.GET("/channels", s.handleChannels)
		root.GET("/channels/:id/messages", s.handleChannelMessages)
		root.POST("/chat", s.handleSendChat)
		root.POST("/session/restart", s.handleRestart)
	}

	return router
}

// requestLogger logs each request at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("REST request")
	}
}
