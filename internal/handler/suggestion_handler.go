package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proctor/internal/service"
	"github.com/noah-isme/gema-proctor/internal/utils"
)

// SuggestionHandler serves stored suggestions.
type SuggestionHandler struct {
	service service.AnalysisService
	logger  zerolog.Logger
}

// NewSuggestionHandler constructs a suggestion handler.
func NewSuggestionHandler(service service.AnalysisService, logger zerolog.Logger) *SuggestionHandler {
	return &SuggestionHandler{
		service: service,
		logger:  logger.With().Str("component", "suggestion_handler").Logger(),
	}
}

// Register wires suggestion routes.
func (h *SuggestionHandler) Register(router fiber.Router) {
	router.Get("/:session/:student?", h.list)
}

func (h *SuggestionHandler) list(c *fiber.Ctx) error {
	session, student, ok := pathScope(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test session")
	}

	suggestions, err := h.service.ListSuggestions(c.UserContext(), session, student)
	if err != nil {
		return sendLookupError(c, requestLogger(h.logger, c), err, "no suggestions found", "failed to load suggestions")
	}

	return utils.SendSuccess(c, "suggestions retrieved", suggestions)
}
