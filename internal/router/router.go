package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-proctor/internal/config"
	"github.com/noah-isme/gema-proctor/internal/handler"
	"github.com/noah-isme/gema-proctor/internal/middleware"
	"github.com/noah-isme/gema-proctor/internal/observability"
)

// ReviewerRoles may read logs and run analyses.
var ReviewerRoles = []string{"admin", "teacher"}

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ActivityHandler   *handler.ActivityHandler
	AnalysisHandler   *handler.AnalysisHandler
	SuggestionHandler *handler.SuggestionHandler
	StreamHandler     *handler.AnalysisStreamHandler
	JWTMiddleware     fiber.Handler
	IngestLimiter     fiber.Handler
	HealthProbes      map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	reviewer := []fiber.Handler{jwtMiddleware, middleware.RequireRole(ReviewerRoles...)}

	proctor := app.Group(middleware.ProctorPrefix)

	// Ingestion stays open to test clients; everything else needs a reviewer token.
	if deps.ActivityHandler != nil {
		activities := proctor.Group("/activities")
		var ingestGuards []fiber.Handler
		if deps.IngestLimiter != nil {
			ingestGuards = append(ingestGuards, deps.IngestLimiter)
		}
		deps.ActivityHandler.RegisterIngest(activities, ingestGuards...)
		deps.ActivityHandler.RegisterQueries(activities, reviewer...)
	}

	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.Register(proctor.Group("/analysis", reviewer...))
	}

	if deps.SuggestionHandler != nil {
		deps.SuggestionHandler.Register(proctor.Group("/suggestions", reviewer...))
	}

	if deps.StreamHandler != nil {
		deps.StreamHandler.Register(proctor.Group("/events", reviewer...))
	}
}
