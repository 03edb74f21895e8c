package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gmsas95/myrai-care/internal/agent"
	"github.com/gmsas95/myrai-care/internal/capability"
	apperrors "github.com/gmsas95/myrai-care/internal/errors"
	"github.com/gmsas95/myrai-care/internal/store"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   s.version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now().Unix(),
	})
}

func userOrDefault(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return store.DefaultUserID
	}
	return id
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.WithCause(apperrors.ErrBadRequest, err)
	}
	if strings.TrimSpace(req.Message) == "" {
		return apperrors.New(apperrors.ErrBadRequest.Code, "message is required")
	}

	resp, err := s.agent.Chat(c.UserContext(), agent.ChatRequest{
		UserID:  userOrDefault(req.UserID),
		Message: req.Message,
	})
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (s *Server) handleListConfirmations(c *fiber.Ctx) error {
	userID := userOrDefault(c.Query("user_id"))
	pending, err := s.agent.Pending(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(ConfirmationsResponse{UserID: userID, Pending: pending})
}

func (s *Server) handleConfirm(c *fiber.Ctx) error {
	var req ConfirmRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.WithCause(apperrors.ErrBadRequest, err)
		}
	}

	result, err := s.agent.Confirm(c.UserContext(), userOrDefault(req.UserID), c.Params("id"), req.Amendments)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) handleReject(c *fiber.Ctx) error {
	var req RejectRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.WithCause(apperrors.ErrBadRequest, err)
		}
	}

	if err := s.agent.Reject(c.UserContext(), userOrDefault(req.UserID), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"rejected": c.Params("id")})
}

func (s *Server) handleListCapabilities(c *fiber.Ctx) error {
	if s.catalog == nil {
		return c.JSON(CapabilitiesResponse{})
	}
	defs := s.catalog.All()
	if category := c.Query("category"); category != "" {
		var filtered []*capability.Definition
		for _, d := range defs {
			if string(d.Category) == category {
				filtered = append(filtered, d)
			}
		}
		defs = filtered
	}
	return c.JSON(CapabilitiesResponse{Capabilities: defs, Count: len(defs)})
}

func (s *Server) handleResolveEmergency(c *fiber.Ctx) error {
	userID := userOrDefault(c.Params("id"))
	if err := s.agent.ResolveEmergency(c.UserContext(), userID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user_id": userID, "emergency_active": false})
}
