package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-proctor/internal/dto"
	"github.com/noah-isme/gema-proctor/internal/forensics"
	"github.com/noah-isme/gema-proctor/internal/models"
	"github.com/noah-isme/gema-proctor/internal/observability"
	"github.com/noah-isme/gema-proctor/internal/repository"
)

// AnalysisService runs the forensic detectors over stored activity logs.
type AnalysisService interface {
	AnalyzeStudent(ctx context.Context, session, student string) (dto.StudentAnalysisResponse, error)
	AnalyzeSession(ctx context.Context, session string) (dto.SessionAnalysisResponse, error)
	// ListSuggestions returns stored suggestions for a student, or the whole session when student is empty.
	ListSuggestions(ctx context.Context, session, student string) ([]models.Suggestion, error)
}

// AnalysisOptions tunes the orchestrator.
type AnalysisOptions struct {
	Concurrency int
	Detectors   forensics.Config
}

type analysisService struct {
	logs        repository.ActivityLogRepository
	suggestions repository.SuggestionRepository
	publisher   SuggestionPublisher
	detectors   []forensics.Detector
	scope       forensics.Scope
	concurrency int
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewAnalysisService constructs the analysis orchestrator.
func NewAnalysisService(logs repository.ActivityLogRepository, suggestions repository.SuggestionRepository, publisher SuggestionPublisher, opts AnalysisOptions, logger zerolog.Logger) AnalysisService {
	return newAnalysisService(logs, suggestions, publisher, forensics.NewSuite(opts.Detectors), opts, logger)
}

func newAnalysisService(logs repository.ActivityLogRepository, suggestions repository.SuggestionRepository, publisher SuggestionPublisher, detectors []forensics.Detector, opts AnalysisOptions, logger zerolog.Logger) *analysisService {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	scope := opts.Detectors.Scope
	if scope == "" {
		scope = forensics.ScopeAttempt
	}

	return &analysisService{
		logs:        logs,
		suggestions: suggestions,
		publisher:   publisher,
		detectors:   detectors,
		scope:       scope,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "analysis_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-proctor/internal/service/analysis"),
	}
}

func (s *analysisService) AnalyzeStudent(ctx context.Context, session, student string) (dto.StudentAnalysisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.student", trace.WithAttributes(
		attribute.String("proctor.session", session),
		attribute.String("proctor.student", student),
		attribute.String("proctor.scope", string(s.scope)),
	))
	defer span.End()

	start := time.Now()
	report, err := s.analyzeStudent(ctx, session, student)
	observability.AnalysisDuration().WithLabelValues("student").Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		observability.AnalysisRuns().WithLabelValues("student", runStatus(err)).Inc()
		return dto.StudentAnalysisResponse{}, err
	}

	observability.AnalysisRuns().WithLabelValues("student", "ok").Inc()
	return report, nil
}

func (s *analysisService) analyzeStudent(ctx context.Context, session, student string) (dto.StudentAnalysisResponse, error) {
	logger := s.logger.With().Str("test_session", session).Str("student_id", student).Logger()

	cleared, err := s.publisher.Clear(ctx, session, student)
	if err != nil {
		return dto.StudentAnalysisResponse{}, err
	}

	log, err := s.logs.Get(ctx, session, student)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.StudentAnalysisResponse{}, err
		}
		return dto.StudentAnalysisResponse{}, fmt.Errorf("load activity log %s/%s: %w", session, student, err)
	}

	timeline, dropped := forensics.Normalize(log)
	for _, cause := range dropped {
		observability.MalformedEvents().Inc()
		logger.Warn().Err(cause).Msg("dropping malformed activity")
	}

	report := dto.StudentAnalysisResponse{
		TestSession:   session,
		StudentID:     student,
		Name:          timeline.Name,
		Suggestions:   []models.Suggestion{},
		DroppedEvents: len(dropped),
		Cleared:       cleared,
	}

	for _, detector := range s.detectors {
		findings, err := forensics.Run(detector, timeline)
		if err != nil {
			observability.DetectorFailures().WithLabelValues(detector.Name()).Inc()
			logger.Error().Err(err).Str("detector", detector.Name()).Msg("detector failed")
			report.FailedDetectors = append(report.FailedDetectors, detector.Name())
			continue
		}
		for _, finding := range findings {
			report.Suggestions = append(report.Suggestions, models.Suggestion{
				StudentID:   student,
				Name:        timeline.Name,
				Type:        finding.Type,
				Description: finding.Description,
			})
		}
	}

	if err := s.publisher.Publish(ctx, session, student, report.Suggestions); err != nil {
		return dto.StudentAnalysisResponse{}, err
	}

	logger.Info().
		Int("suggestions", len(report.Suggestions)).
		Int("dropped_events", report.DroppedEvents).
		Strs("failed_detectors", report.FailedDetectors).
		Msg("student analysed")
	return report, nil
}

func (s *analysisService) AnalyzeSession(ctx context.Context, session string) (dto.SessionAnalysisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.session", trace.WithAttributes(
		attribute.String("proctor.session", session),
		attribute.Int("proctor.concurrency", s.concurrency),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.AnalysisDuration().WithLabelValues("session").Observe(time.Since(start).Seconds())
	}()

	students, err := s.logs.ListStudents(ctx, session)
	if err != nil {
		span.RecordError(err)
		observability.AnalysisRuns().WithLabelValues("session", "error").Inc()
		return dto.SessionAnalysisResponse{}, fmt.Errorf("list students of %s: %w", session, err)
	}
	if len(students) == 0 {
		observability.AnalysisRuns().WithLabelValues("session", "not_found").Inc()
		return dto.SessionAnalysisResponse{}, repository.ErrNotFound
	}

	var (
		mu     sync.Mutex
		result = dto.SessionAnalysisResponse{
			TestSession: session,
			Students:    make([]dto.StudentAnalysisResponse, 0, len(students)),
		}
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)

	for _, student := range students {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			report, err := s.AnalyzeStudent(groupCtx, session, student)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error().Err(err).
					Str("test_session", session).
					Str("student_id", student).
					Msg("student analysis failed")
				result.Failed = append(result.Failed, dto.StudentFailure{StudentID: student, Error: failureMessage(err)})
				return nil
			}
			result.Students = append(result.Students, report)
			result.TotalSuggestions += len(report.Suggestions)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		observability.AnalysisRuns().WithLabelValues("session", "error").Inc()
		return dto.SessionAnalysisResponse{}, err
	}
	if err := ctx.Err(); err != nil {
		observability.AnalysisRuns().WithLabelValues("session", "cancelled").Inc()
		return dto.SessionAnalysisResponse{}, err
	}

	sort.Slice(result.Students, func(i, j int) bool {
		return result.Students[i].StudentID < result.Students[j].StudentID
	})
	sort.Slice(result.Failed, func(i, j int) bool {
		return result.Failed[i].StudentID < result.Failed[j].StudentID
	})

	observability.AnalysisRuns().WithLabelValues("session", "ok").Inc()
	s.logger.Info().
		Str("test_session", session).
		Int("students", len(result.Students)).
		Int("failed", len(result.Failed)).
		Int("suggestions", result.TotalSuggestions).
		Msg("session analysed")
	return result, nil
}

func (s *analysisService) ListSuggestions(ctx context.Context, session, student string) ([]models.Suggestion, error) {
	suggestions, err := s.suggestions.List(ctx, session, student)
	if err != nil {
		return nil, err
	}
	if len(suggestions) == 0 {
		return nil, repository.ErrNotFound
	}
	return suggestions, nil
}

func runStatus(err error) string {
	if errors.Is(err, repository.ErrNotFound) {
		return "not_found"
	}
	return "error"
}

func failureMessage(err error) string {
	if errors.Is(err, repository.ErrNotFound) {
		return "activity log not found"
	}
	return "analysis failed"
}
