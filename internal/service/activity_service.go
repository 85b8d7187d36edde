package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proctor/internal/dto"
	"github.com/noah-isme/gema-proctor/internal/forensics"
	"github.com/noah-isme/gema-proctor/internal/models"
	"github.com/noah-isme/gema-proctor/internal/observability"
	"github.com/noah-isme/gema-proctor/internal/repository"
)

const activityLockStripes = 64

// ActivityService records and lists the raw activity logs sent by test clients.
type ActivityService interface {
	// Ingest appends one activity to the student's log. remoteIP is used when
	// the payload does not carry an address.
	Ingest(ctx context.Context, req dto.IngestActivityRequest, remoteIP string) (dto.IngestActivityResponse, error)
	// List returns one log, or every log of the session when student is empty.
	List(ctx context.Context, session, student string) ([]dto.ActivityLogResponse, error)
}

type activityService struct {
	repo      repository.ActivityLogRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	locks     [activityLockStripes]sync.Mutex
}

// NewActivityService constructs the activity ingestion service.
func NewActivityService(repo repository.ActivityLogRepository, validator *validator.Validate, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:      repo,
		validator: validator,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Ingest(ctx context.Context, req dto.IngestActivityRequest, remoteIP string) (dto.IngestActivityResponse, error) {
	req.TestSession = strings.TrimSpace(req.TestSession)
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.Status = strings.TrimSpace(s.sanitizer.Sanitize(req.Status))
	req.Name = strings.TrimSpace(s.sanitizer.Sanitize(req.Name))
	req.Surname = strings.TrimSpace(s.sanitizer.Sanitize(req.Surname))
	req.Timestamp = models.Timestamp(strings.TrimSpace(string(req.Timestamp)))

	if err := s.validator.Struct(req); err != nil {
		observability.ActivitiesIngested().WithLabelValues("invalid").Inc()
		return dto.IngestActivityResponse{}, err
	}

	ip := req.IP
	if strings.TrimSpace(ip) == "" {
		ip = remoteIP
	}

	activity := models.Activity{
		Status:    req.Status,
		Timestamp: req.Timestamp,
		IP:        forensics.NormalizeIP(ip),
	}

	key := repository.ActivityKey(req.TestSession, req.StudentID)
	lock := &s.locks[xxhash.Sum64String(key)%activityLockStripes]
	lock.Lock()
	defer lock.Unlock()

	log, err := s.repo.Get(ctx, req.TestSession, req.StudentID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			observability.ActivitiesIngested().WithLabelValues("error").Inc()
			return dto.IngestActivityResponse{}, fmt.Errorf("load activity log %s: %w", key, err)
		}
		log = models.ActivityLog{Activities: []models.Activity{}}
	}

	if req.Name != "" {
		log.Name = req.Name
	}
	if req.Surname != "" {
		log.Surname = req.Surname
	}
	log.Activities = append(log.Activities, activity)

	if err := s.repo.Save(ctx, req.TestSession, req.StudentID, log); err != nil {
		observability.ActivitiesIngested().WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("key", key).Msg("failed to store activity")
		return dto.IngestActivityResponse{}, fmt.Errorf("store activity log %s: %w", key, err)
	}

	observability.ActivitiesIngested().WithLabelValues("stored").Inc()
	s.logger.Debug().
		Str("test_session", req.TestSession).
		Str("student_id", req.StudentID).
		Str("status", activity.Status).
		Msg("activity stored")

	return dto.IngestActivityResponse{Key: key, Activities: len(log.Activities)}, nil
}

func (s *activityService) List(ctx context.Context, session, student string) ([]dto.ActivityLogResponse, error) {
	if student != "" {
		log, err := s.repo.Get(ctx, session, student)
		if err != nil {
			return nil, err
		}
		return []dto.ActivityLogResponse{dto.NewActivityLogResponse(session, student, log)}, nil
	}

	students, err := s.repo.ListStudents(ctx, session)
	if err != nil {
		return nil, err
	}

	logs := make([]dto.ActivityLogResponse, 0, len(students))
	for _, id := range students {
		log, err := s.repo.Get(ctx, session, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		logs = append(logs, dto.NewActivityLogResponse(session, id, log))
	}
	if len(logs) == 0 {
		return nil, repository.ErrNotFound
	}
	return logs, nil
}
