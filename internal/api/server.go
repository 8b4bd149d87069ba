// Package api provides the HTTP server for the gateway. It wires the gin
// engine, middleware, and the two endpoint dialects: the OpenAI-compatible
// chat completions path and the legacy passthrough on the root path. The
// server supports hot-reloading of its configuration.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mizuki-ao/geminigate/internal/api/handlers"
	"github.com/mizuki-ao/geminigate/internal/api/handlers/gemini"
	"github.com/mizuki-ao/geminigate/internal/api/handlers/openai"
	"github.com/mizuki-ao/geminigate/internal/api/middleware"
	"github.com/mizuki-ao/geminigate/internal/apierr"
	"github.com/mizuki-ao/geminigate/internal/config"
	"github.com/mizuki-ao/geminigate/internal/logging"
	"github.com/mizuki-ao/geminigate/internal/util"
	log "github.com/sirupsen/logrus"
)

// openAIPathPrefix is matched as a prefix: any path under it reaches the
// OpenAI-compatible handler, mirroring the router this gateway replaces.
const openAIPathPrefix = "/v1/chat/completions"

// Server represents the main API server.
// It encapsulates the gin engine, HTTP server, handlers, and configuration.
type Server struct {
	// engine is the gin web framework engine instance.
	engine *gin.Engine

	// server is the underlying HTTP server.
	server *http.Server

	// handlers contains the shared state for endpoint handlers.
	handlers *handlers.BaseAPIHandler

	// cfg holds the current server configuration.
	cfg *config.Config

	// requestLogger is the request logger instance for dynamic configuration updates.
	requestLogger *logging.FileRequestLogger
}

// NewServer creates and initializes a new API server instance.
// It sets up the gin engine, middleware, routes, and handlers.
//
// Parameters:
//   - cfg: The server configuration
//
// Returns:
//   - *Server: A new server instance
func NewServer(cfg *config.Config) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	// Unknown paths get the gateway's own 404 body, never a redirect.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	engine.HandleMethodNotAllowed = true

	requestLogger := logging.NewFileRequestLogger(cfg.RequestLog, "logs")

	engine.Use(
		middleware.RequestIDMiddleware(),
		logging.GinLogrusLogger(),
		logging.GinLogrusRecovery(),
		middleware.RequestLoggingMiddleware(requestLogger),
		corsMiddleware(),
	)

	s := &Server{
		engine:        engine,
		handlers:      handlers.NewBaseAPIHandler(cfg),
		cfg:           cfg,
		requestLogger: requestLogger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	return s
}

// setupRoutes configures the API routes for the server.
// It defines the endpoints and associates them with their respective handlers.
func (s *Server) setupRoutes() {
	openaiHandler := openai.NewOpenAIAPIHandler(s.handlers)
	geminiHandler := gemini.NewGeminiAPIHandler(s.handlers)

	s.engine.POST("/", geminiHandler.GenerateContent)
	s.engine.POST(openAIPathPrefix, openaiHandler.ChatCompletions)

	s.engine.NoMethod(func(c *gin.Context) {
		apierr.Write(c, apierr.New(apierr.KindMethodNotAllowed, "Method not allowed"))
	})

	s.engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, openAIPathPrefix) {
			if c.Request.Method == http.MethodPost {
				openaiHandler.ChatCompletions(c)
				return
			}
			apierr.Write(c, apierr.New(apierr.KindMethodNotAllowed, "Method not allowed"))
			return
		}
		c.JSON(http.StatusNotFound, apierr.Response{Error: apierr.Detail{
			Code:    http.StatusNotFound,
			Message: "Unknown path!",
		}})
	})
}

// Start begins listening for and serving HTTP requests.
// It's a blocking call and will only return on an unrecoverable error.
//
// Returns:
//   - error: An error if the server fails to start
func (s *Server) Start() error {
	log.Infof("starting API server on %s", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the API server without interrupting any
// active connections.
//
// Parameters:
//   - ctx: The context for graceful shutdown
//
// Returns:
//   - error: An error if the server fails to stop
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("stopping API server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	log.Debug("API server stopped")
	return nil
}

// UpdateConfig applies a new configuration to the running server.
// This method is called when the configuration file changes on disk.
//
// Parameters:
//   - cfg: The new application configuration
func (s *Server) UpdateConfig(cfg *config.Config) {
	if s.requestLogger != nil && s.cfg.RequestLog != cfg.RequestLog {
		s.requestLogger.SetEnabled(cfg.RequestLog)
		log.Debugf("request logging updated from %t to %t", s.cfg.RequestLog, cfg.RequestLog)
	}

	if s.cfg.Debug != cfg.Debug {
		util.SetLogLevel(cfg)
		log.Debugf("debug mode updated from %t to %t", s.cfg.Debug, cfg.Debug)
	}

	if s.cfg.LoggingToFile != cfg.LoggingToFile {
		if err := logging.ConfigureLogOutput(cfg.LoggingToFile); err != nil {
			log.Errorf("failed to reconfigure log output: %v", err)
		}
	}

	if s.cfg.Port != cfg.Port {
		log.Warnf("port change from %d to %d requires a restart to take effect", s.cfg.Port, cfg.Port)
	}

	s.cfg = cfg
	s.handlers.UpdateConfig(cfg)
	log.Info("server configuration updated")
}

// corsMiddleware returns a gin middleware handler that adds CORS headers to
// every response and short-circuits preflight requests with 204 on any path.
//
// Returns:
//   - gin.HandlerFunc: The CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
