package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/gmsas95/myrai-care/internal/errors"
)

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// render now so the logged status is the one sent
			if herr := s.errorHandler(c, err); herr != nil {
				return herr
			}
		}
		s.logger.Debug("HTTP request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.Any("request_id", c.Locals("requestid")))
		return nil
	}
}

// statusFor maps application error codes onto HTTP statuses
func statusFor(code string) int {
	switch code {
	case apperrors.ErrInputRejected.Code, apperrors.ErrBadRequest.Code, apperrors.ErrActionValidation.Code:
		return fiber.StatusBadRequest
	case apperrors.ErrUnknownConfirmation.Code, apperrors.ErrNotFound.Code, apperrors.ErrConversationNotFound.Code:
		return fiber.StatusNotFound
	case apperrors.ErrDuplicateConfirmation.Code:
		return fiber.StatusConflict
	case apperrors.ErrRateLimited.Code:
		return fiber.StatusTooManyRequests
	case apperrors.ErrProviderNotConfigured.Code, apperrors.ErrProviderUnavailable.Code:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		s.logger.Error("Unhandled request error", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error", Code: apperrors.ErrInternal.Code})
	}

	status := statusFor(appErr.Code)
	resp := ErrorResponse{Error: appErr.Message, Code: appErr.Code}
	if status < fiber.StatusInternalServerError && appErr.Cause != nil {
		resp.Detail = appErr.Cause.Error()
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", c.Path()), zap.String("code", appErr.Code), zap.Error(err))
	}
	return c.Status(status).JSON(resp)
}
