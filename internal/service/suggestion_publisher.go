package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-proctor/internal/models"
	"github.com/noah-isme/gema-proctor/internal/observability"
	"github.com/noah-isme/gema-proctor/internal/repository"
)

// SuggestionPublisher replaces the stored suggestions of a student.
type SuggestionPublisher interface {
	// Clear removes every suggestion stored for the student and returns how many were removed.
	Clear(ctx context.Context, session, student string) (int, error)
	Publish(ctx context.Context, session, student string, suggestions []models.Suggestion) error
}

type suggestionPublisher struct {
	repo      repository.SuggestionRepository
	announcer AnalysisAnnouncer
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewSuggestionPublisher constructs a publisher. announcer may be nil.
func NewSuggestionPublisher(repo repository.SuggestionRepository, announcer AnalysisAnnouncer, logger zerolog.Logger) SuggestionPublisher {
	return &suggestionPublisher{
		repo:      repo,
		announcer: announcer,
		logger:    logger.With().Str("component", "suggestion_publisher").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-proctor/internal/service/publisher"),
	}
}

func (p *suggestionPublisher) Clear(ctx context.Context, session, student string) (int, error) {
	spanCtx, span := p.tracer.Start(ctx, "suggestions.clear", trace.WithAttributes(
		attribute.String("proctor.session", session),
		attribute.String("proctor.student", student),
	))
	defer span.End()

	removed, err := p.repo.DeleteAll(spanCtx, session, student)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("clear suggestions for %s/%s: %w", session, student, err)
	}
	if removed > 0 {
		p.logger.Debug().Str("test_session", session).Str("student_id", student).Int("removed", removed).Msg("suggestions cleared")
	}
	return removed, nil
}

func (p *suggestionPublisher) Publish(ctx context.Context, session, student string, suggestions []models.Suggestion) error {
	spanCtx, span := p.tracer.Start(ctx, "suggestions.publish", trace.WithAttributes(
		attribute.String("proctor.session", session),
		attribute.String("proctor.student", student),
		attribute.Int("proctor.suggestions", len(suggestions)),
	))
	defer span.End()

	seen := make(map[models.Suggestion]int, len(suggestions))
	for _, suggestion := range suggestions {
		occurrence := seen[suggestion]
		seen[suggestion] = occurrence + 1
		if _, err := p.repo.Save(spanCtx, session, suggestion, occurrence); err != nil {
			span.RecordError(err)
			return fmt.Errorf("store suggestion for %s/%s: %w", session, student, err)
		}
		observability.SuggestionsEmitted().WithLabelValues(string(suggestion.Type)).Inc()
	}

	if p.announcer != nil {
		p.announcer.Announce(spanCtx, AnalysisCompletedEvent{
			TestSession: session,
			StudentID:   student,
			Suggestions: len(suggestions),
			CompletedAt: time.Now().UTC(),
		})
	}
	return nil
}
