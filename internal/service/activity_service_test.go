package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-proctor/internal/dto"
	"github.com/noah-isme/gema-proctor/internal/models"
	"github.com/noah-isme/gema-proctor/internal/repository"
)

func newTestActivityService() (ActivityService, repository.ActivityLogRepository) {
	repo := repository.NewActivityLogRepository(repository.NewMemoryBlobStore())
	return NewActivityService(repo, validator.New(validator.WithRequiredStructEnabled()), testLogger()), repo
}

func TestActivityServiceIngestAppendsAndRefreshesName(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestActivityService()

	first, err := svc.Ingest(ctx, dto.IngestActivityRequest{
		TestSession: "midterm",
		StudentID:   "s-1",
		Name:        "Jane",
		Status:      "Start test from cover page",
		Timestamp:   "2024-03-11T09:00:00Z",
		IP:          "::ffff:10.0.0.1",
	}, "192.0.2.1")
	require.NoError(t, err)
	require.Equal(t, "midterm/activities/s-1", first.Key)
	require.Equal(t, 1, first.Activities)

	second, err := svc.Ingest(ctx, dto.IngestActivityRequest{
		TestSession: "midterm",
		StudentID:   "s-1",
		Name:        "Jane",
		Surname:     "<b>Doe</b>",
		Status:      "Next question",
		Timestamp:   "1710147605000",
	}, "192.0.2.1:51000")
	require.NoError(t, err)
	require.Equal(t, 2, second.Activities)

	log, err := repo.Get(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Equal(t, "Jane", log.Name)
	require.Equal(t, "Doe", log.Surname)
	require.Equal(t, []models.Activity{
		{Status: "Start test from cover page", Timestamp: "2024-03-11T09:00:00Z", IP: "10.0.0.1"},
		{Status: "Next question", Timestamp: "1710147605000", IP: "192.0.2.1"},
	}, log.Activities)
}

func TestActivityServiceIngestRejectsInvalidPayload(t *testing.T) {
	svc, _ := newTestActivityService()

	_, err := svc.Ingest(context.Background(), dto.IngestActivityRequest{
		TestSession: "mid/term",
		StudentID:   "s-1",
		Status:      "Submit",
		Timestamp:   "1710147605000",
	}, "")
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)

	_, err = svc.Ingest(context.Background(), dto.IngestActivityRequest{
		TestSession: "midterm",
		StudentID:   "s-1",
		Status:      "   ",
		Timestamp:   "1710147605000",
	}, "")
	require.ErrorAs(t, err, &validationErrs)
}

func TestActivityServiceIngestWithoutAddressStoresUnknown(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestActivityService()

	_, err := svc.Ingest(ctx, dto.IngestActivityRequest{
		TestSession: "midterm",
		StudentID:   "s-1",
		Status:      "Submit",
		Timestamp:   "1710147605000",
	}, "")
	require.NoError(t, err)

	log, err := repo.Get(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Equal(t, models.UnknownIP, log.Activities[0].IP)
}

func TestActivityServiceList(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestActivityService()

	_, err := svc.List(ctx, "midterm", "")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.List(ctx, "midterm", "s-1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.Save(ctx, "midterm", "s-1", models.ActivityLog{Name: "Jane"}))
	require.NoError(t, repo.Save(ctx, "midterm", "s-2", models.ActivityLog{Name: "John"}))

	one, err := svc.List(ctx, "midterm", "s-2")
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, "John", one[0].Name)
	require.NotNil(t, one[0].Activities)

	all, err := svc.List(ctx, "midterm", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "s-1", all[0].StudentID)
	require.Equal(t, "s-2", all[1].StudentID)
}
