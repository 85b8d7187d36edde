package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proctor/internal/dto"
	"github.com/noah-isme/gema-proctor/internal/service"
	"github.com/noah-isme/gema-proctor/internal/utils"
)

// ActivityHandler receives client events and serves stored activity logs.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs an activity handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// RegisterIngest wires the ingestion route used by test clients.
func (h *ActivityHandler) RegisterIngest(router fiber.Router, guards ...fiber.Handler) {
	router.Post("", append(guards, h.ingest)...)
}

// RegisterQueries wires the read routes used by reviewers.
func (h *ActivityHandler) RegisterQueries(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/:session/:student?", append(guards, h.list)...)
}

func (h *ActivityHandler) ingest(c *fiber.Ctx) error {
	var payload dto.IngestActivityRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Ingest(c.UserContext(), payload, c.IP())
	if err != nil {
		if isValidationError(err) {
			return utils.SendValidationError(c, err)
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to store activity")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to store activity")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "activity recorded", response)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	session, student, ok := pathScope(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test session")
	}

	logs, err := h.service.List(c.UserContext(), session, student)
	if err != nil {
		return sendLookupError(c, requestLogger(h.logger, c), err, "activity log not found", "failed to load activity logs")
	}

	return utils.SendSuccess(c, "activity logs retrieved", logs)
}
