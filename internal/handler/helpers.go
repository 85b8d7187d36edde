package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proctor/internal/middleware"
	"github.com/noah-isme/gema-proctor/internal/repository"
	"github.com/noah-isme/gema-proctor/internal/utils"
)

func reviewerFromContext(c *fiber.Ctx) string {
	if v, ok := c.Locals("user_id").(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		ctx := base.With()
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			ctx = ctx.Str("correlation_id", correlation)
		}
		if reviewer := reviewerFromContext(c); reviewer != "" {
			ctx = ctx.Str("reviewer", reviewer)
		}
		logger = ctx.Logger()
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// pathScope reads the session and optional student route parameters.
func pathScope(c *fiber.Ctx) (string, string, bool) {
	session := strings.TrimSpace(c.Params("session"))
	student := strings.TrimSpace(c.Params("student"))
	if session == "" || strings.Contains(session, "/") || strings.Contains(student, "/") {
		return "", "", false
	}
	return session, student, true
}

// sendLookupError maps a service error to a response, logging anything unexpected.
func sendLookupError(c *fiber.Ctx, logger *zerolog.Logger, err error, notFound, failure string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return utils.SendError(c, fiber.StatusNotFound, notFound)
	}
	logger.Error().Err(err).Msg(failure)
	return utils.SendError(c, fiber.StatusInternalServerError, failure)
}
