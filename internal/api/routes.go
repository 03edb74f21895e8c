package api

import (
	"strings"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func (s *Server) setupRoutes() {
	origins := s.config.Security.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(s.requestLogger())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	s.app.Get("/api/health", s.handleHealth)
	if s.metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	api := s.app.Group("/api")

	api.Post("/chat", s.handleChat)

	api.Get("/confirmations", s.handleListConfirmations)
	api.Post("/confirmations/:id/confirm", s.handleConfirm)
	api.Post("/confirmations/:id/reject", s.handleReject)

	api.Get("/capabilities", s.handleListCapabilities)

	api.Post("/users/:id/emergency/resolve", s.handleResolveEmergency)
}
