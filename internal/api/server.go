package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"github.com/rideline/telemetry-service/config"
)

// Server wraps the HTTP server for the telemetry API
type Server struct {
	engine *gin.Engine
	server *http.Server
	log    *logrus.Logger
}

// NewServer builds the gin engine with middleware and routes
func NewServer(cfg *config.ServerConfig, handler *Handler, nrApp *newrelic.Application, log *logrus.Logger) *Server {
	gin.SetMode(cfg.Mode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	if nrApp != nil {
		engine.Use(nrgin.Middleware(nrApp))
	}
	engine.Use(RequestLogger(log))
	engine.Use(Metrics())

	handler.RegisterRoutes(engine)

	return &Server{
		engine: engine,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: engine,
		},
		log: log,
	}
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.WithField("addr", s.server.Addr).Info("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
