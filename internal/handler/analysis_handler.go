package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proctor/internal/service"
	"github.com/noah-isme/gema-proctor/internal/utils"
)

// AnalysisHandler triggers forensic analysis for a student or a whole session.
type AnalysisHandler struct {
	service service.AnalysisService
	logger  zerolog.Logger
}

// NewAnalysisHandler constructs an analysis handler.
func NewAnalysisHandler(service service.AnalysisService, logger zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
		logger:  logger.With().Str("component", "analysis_handler").Logger(),
	}
}

// Register wires analysis routes.
func (h *AnalysisHandler) Register(router fiber.Router) {
	router.Post("/:session/:student", h.analyzeStudent)
	router.Post("/:session", h.analyzeSession)
}

func (h *AnalysisHandler) analyzeStudent(c *fiber.Ctx) error {
	session, student, ok := pathScope(c)
	if !ok || student == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test session")
	}

	logger := requestLogger(h.logger, c)
	report, err := h.service.AnalyzeStudent(c.UserContext(), session, student)
	if err != nil {
		return sendLookupError(c, logger, err, "activity log not found", "failed to analyse student")
	}

	logger.Info().Str("test_session", session).Str("student_id", student).Int("suggestions", len(report.Suggestions)).Msg("analysis requested")
	return utils.SendSuccess(c, "analysis completed", report)
}

func (h *AnalysisHandler) analyzeSession(c *fiber.Ctx) error {
	session, _, ok := pathScope(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test session")
	}

	logger := requestLogger(h.logger, c)
	result, err := h.service.AnalyzeSession(c.UserContext(), session)
	if err != nil {
		return sendLookupError(c, logger, err, "test session not found", "failed to analyse test session")
	}

	logger.Info().Str("test_session", session).Int("students", len(result.Students)).Int("failed", len(result.Failed)).Msg("session analysis requested")
	return utils.SendSuccess(c, "analysis completed", result)
}
