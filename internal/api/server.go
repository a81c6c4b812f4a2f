package api

import (
	"context"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server wraps an http.Server around a gin.Engine built from a Handler,
// grounded on the migration-agent pack's server lifecycle: logger and
// recovery middleware applied globally, routes registered under a single
// RouterGroup, Start/Stop pair for graceful shutdown.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	logger *zap.SugaredLogger
}

// NewServer builds a gin.Engine with zap request logging and panic
// recovery, registers h's routes, and binds it to listenAddr.
func NewServer(listenAddr string, h *Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.L()
	}
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(ginzap.Ginzap(logger.Named("http"), time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(logger.Named("http"), true))

	RegisterRoutes(engine, h)

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:              listenAddr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.Sugar().Named("api"),
	}
}

// Start blocks serving HTTP until the listener fails or Stop closes it.
func (s *Server) Start() error {
	s.logger.Infow("api server starting", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop performs a graceful shutdown, waiting for in-flight requests to
// complete or ctx to expire.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Infow("api server stopping")
	return s.http.Shutdown(ctx)
}
