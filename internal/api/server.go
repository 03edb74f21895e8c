// Package api serves the chat and confirmation surface over HTTP.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/myrai-care/internal/actions"
	"github.com/gmsas95/myrai-care/internal/agent"
	"github.com/gmsas95/myrai-care/internal/capability"
	"github.com/gmsas95/myrai-care/internal/config"
	"github.com/gmsas95/myrai-care/internal/metrics"
)

// ChatService is what the handlers need from the agent
type ChatService interface {
	Chat(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error)
	Confirm(ctx context.Context, userID, requestID string, amendments map[string]interface{}) (actions.ExecutionResult, error)
	Reject(ctx context.Context, userID, requestID string) error
	Pending(ctx context.Context, userID string) ([]*actions.PendingConfirmation, error)
	ResolveEmergency(ctx context.Context, userID string) error
}

// Options wires a Server
type Options struct {
	Config  *config.Config
	Agent   ChatService
	Catalog *capability.Registry
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Version string
}

type Server struct {
	app     *fiber.App
	config  *config.Config
	agent   ChatService
	catalog *capability.Registry
	metrics *metrics.Metrics
	logger  *zap.Logger
	version string
	started time.Time
}

func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		config:  cfg,
		agent:   opts.Agent,
		catalog: opts.Catalog,
		metrics: opts.Metrics,
		logger:  logger,
		version: version,
		started: time.Now(),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "myrai-care",
		ReadTimeout:           seconds(cfg.Server.ReadTimeout, 30),
		WriteTimeout:          seconds(cfg.Server.WriteTimeout, 30),
		IdleTimeout:           120 * time.Second,
		ErrorHandler:          s.errorHandler,
		DisableStartupMessage: true,
	})

	s.setupRoutes()
	return s
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

// App exposes the fiber app, mainly for app.Test
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	s.logger.Info("HTTP server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
