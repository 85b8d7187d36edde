package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/gema-proctor/internal/models"
)

// ActivityKey returns the store key of a student's activity log.
func ActivityKey(session, student string) string {
	return activityPrefix(session) + student
}

func activityPrefix(session string) string {
	return session + "/activities/"
}

// ActivityLogRepository persists per-student activity logs.
type ActivityLogRepository interface {
	Get(ctx context.Context, session, student string) (models.ActivityLog, error)
	Save(ctx context.Context, session, student string, log models.ActivityLog) error
	ListStudents(ctx context.Context, session string) ([]string, error)
}

type activityLogRepository struct {
	store BlobStore
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(store BlobStore) ActivityLogRepository {
	return &activityLogRepository{store: store}
}

func (r *activityLogRepository) Get(ctx context.Context, session, student string) (models.ActivityLog, error) {
	data, err := r.store.Get(ctx, ActivityKey(session, student))
	if err != nil {
		return models.ActivityLog{}, err
	}

	var log models.ActivityLog
	if err := json.Unmarshal(data, &log); err != nil {
		return models.ActivityLog{}, fmt.Errorf("decode activity log %s/%s: %w", session, student, err)
	}
	return log, nil
}

func (r *activityLogRepository) Save(ctx context.Context, session, student string, log models.ActivityLog) error {
	if log.Activities == nil {
		log.Activities = []models.Activity{}
	}
	payload, err := json.Marshal(log)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, ActivityKey(session, student), payload)
}

func (r *activityLogRepository) ListStudents(ctx context.Context, session string) ([]string, error) {
	prefix := activityPrefix(session)
	keys, err := ListAll(ctx, r.store, prefix)
	if err != nil {
		return nil, err
	}

	students := make([]string, 0, len(keys))
	for _, key := range keys {
		student := strings.TrimPrefix(key, prefix)
		if student == "" || strings.Contains(student, "/") {
			continue
		}
		students = append(students, student)
	}
	return students, nil
}
