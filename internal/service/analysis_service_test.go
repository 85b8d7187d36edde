package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-proctor/internal/forensics"
	"github.com/noah-isme/gema-proctor/internal/models"
	"github.com/noah-isme/gema-proctor/internal/repository"
)

type analysisFixture struct {
	store       repository.BlobStore
	logs        repository.ActivityLogRepository
	suggestions repository.SuggestionRepository
	publisher   SuggestionPublisher
}

func newAnalysisFixture() analysisFixture {
	store := repository.NewMemoryBlobStore()
	suggestions := repository.NewSuggestionRepository(store)
	return analysisFixture{
		store:       store,
		logs:        repository.NewActivityLogRepository(store),
		suggestions: suggestions,
		publisher:   NewSuggestionPublisher(suggestions, nil, testLogger()),
	}
}

func (f analysisFixture) service(detectors ...forensics.Detector) AnalysisService {
	opts := AnalysisOptions{Concurrency: 2, Detectors: forensics.DefaultConfig()}
	if len(detectors) == 0 {
		return NewAnalysisService(f.logs, f.suggestions, f.publisher, opts, testLogger())
	}
	return newAnalysisService(f.logs, f.suggestions, f.publisher, detectors, opts, testLogger())
}

func rapidLog(name string) models.ActivityLog {
	return models.ActivityLog{
		Name: name,
		Activities: []models.Activity{
			{Status: "Start test from cover page", Timestamp: "2024-03-11T09:00:00Z", IP: "10.0.0.1"},
			{Status: "Submission confirm", Timestamp: "2024-03-11T09:20:00Z", IP: "10.0.0.1"},
		},
	}
}

type failingDetector struct{}

func (failingDetector) Name() string { return "failing" }

func (failingDetector) Detect(forensics.Timeline) ([]forensics.Finding, error) {
	return nil, errors.New("boom")
}

type panickingDetector struct{}

func (panickingDetector) Name() string { return "panicking" }

func (panickingDetector) Detect(forensics.Timeline) ([]forensics.Finding, error) {
	panic("index out of range")
}

func TestAnalyzeStudentPublishesFindings(t *testing.T) {
	ctx := context.Background()
	fixture := newAnalysisFixture()
	require.NoError(t, fixture.logs.Save(ctx, "midterm", "s-1", rapidLog("Jane")))

	report, err := fixture.service().AnalyzeStudent(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Len(t, report.Suggestions, 1)
	require.Equal(t, models.SuggestionRapidSubmission, report.Suggestions[0].Type)
	require.Equal(t, "Jane", report.Suggestions[0].Name)
	require.Equal(t, "s-1", report.Suggestions[0].StudentID)
	require.Empty(t, report.FailedDetectors)

	stored, err := fixture.suggestions.List(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Equal(t, report.Suggestions, stored)
}

func TestAnalyzeStudentStoresIdenticalFindingsOfSeparateAttempts(t *testing.T) {
	ctx := context.Background()
	fixture := newAnalysisFixture()
	require.NoError(t, fixture.logs.Save(ctx, "midterm", "s-1", models.ActivityLog{
		Name: "Jane",
		Activities: []models.Activity{
			{Status: "Start test from cover page", Timestamp: "2024-03-11T09:00:00Z", IP: "10.0.0.1"},
			{Status: "Submission confirm", Timestamp: "2024-03-11T09:10:00Z", IP: "10.0.0.1"},
			{Status: "Start test from cover page", Timestamp: "2024-03-11T10:00:00Z", IP: "10.0.0.1"},
			{Status: "Submission confirm", Timestamp: "2024-03-11T10:10:00Z", IP: "10.0.0.1"},
		},
	}))
	svc := fixture.service()

	report, err := svc.AnalyzeStudent(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Len(t, report.Suggestions, 2)
	require.Equal(t, report.Suggestions[0], report.Suggestions[1])

	stored, err := svc.ListSuggestions(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Len(t, stored, 2)

	again, err := svc.AnalyzeStudent(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Equal(t, 2, again.Cleared)
	keys, err := fixture.suggestions.Keys(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Len(t, keys, 2)
}

func TestAnalyzeStudentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fixture := newAnalysisFixture()
	require.NoError(t, fixture.logs.Save(ctx, "midterm", "s-1", rapidLog("Jane")))
	svc := fixture.service()

	_, err := svc.AnalyzeStudent(ctx, "midterm", "s-1")
	require.NoError(t, err)
	firstKeys, err := fixture.suggestions.Keys(ctx, "midterm", "s-1")
	require.NoError(t, err)

	report, err := svc.AnalyzeStudent(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Equal(t, 1, report.Cleared)

	secondKeys, err := fixture.suggestions.Keys(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Equal(t, firstKeys, secondKeys)
}

func TestAnalyzeStudentClearsStaleSuggestions(t *testing.T) {
	ctx := context.Background()
	fixture := newAnalysisFixture()
	require.NoError(t, fixture.logs.Save(ctx, "midterm", "s-1", models.ActivityLog{Name: "Jane"}))
	_, err := fixture.suggestions.Save(ctx, "midterm", models.Suggestion{
		StudentID: "s-1", Name: "Jane", Type: models.SuggestionDifferentIP, Description: "stale",
	}, 0)
	require.NoError(t, err)

	report, err := fixture.service().AnalyzeStudent(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Empty(t, report.Suggestions)
	require.Equal(t, 1, report.Cleared)

	keys, err := fixture.suggestions.Keys(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestAnalyzeStudentMissingLog(t *testing.T) {
	fixture := newAnalysisFixture()
	_, err := fixture.service().AnalyzeStudent(context.Background(), "midterm", "ghost")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAnalyzeStudentSurvivesFailingDetectors(t *testing.T) {
	ctx := context.Background()
	fixture := newAnalysisFixture()
	log := rapidLog("Jane")
	log.Activities = append(log.Activities, models.Activity{Status: "Next question", Timestamp: "not-a-time", IP: "10.0.0.1"})
	require.NoError(t, fixture.logs.Save(ctx, "midterm", "s-1", log))

	svc := fixture.service(
		failingDetector{},
		panickingDetector{},
		forensics.NewRapidSubmissionDetector(30*time.Minute),
	)

	report, err := svc.AnalyzeStudent(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Equal(t, []string{"failing", "panicking"}, report.FailedDetectors)
	require.Equal(t, 1, report.DroppedEvents)
	require.Len(t, report.Suggestions, 1)
	require.Equal(t, models.SuggestionRapidSubmission, report.Suggestions[0].Type)
}

func TestAnalyzeSessionReportsFailedStudents(t *testing.T) {
	ctx := context.Background()
	fixture := newAnalysisFixture()
	require.NoError(t, fixture.logs.Save(ctx, "midterm", "s-1", rapidLog("Jane")))
	require.NoError(t, fixture.logs.Save(ctx, "midterm", "s-3", rapidLog("John")))
	require.NoError(t, fixture.store.Put(ctx, repository.ActivityKey("midterm", "s-2"), []byte("{not json")))

	result, err := fixture.service().AnalyzeSession(ctx, "midterm")
	require.NoError(t, err)
	require.Len(t, result.Students, 2)
	require.Equal(t, "s-1", result.Students[0].StudentID)
	require.Equal(t, "s-3", result.Students[1].StudentID)
	require.Equal(t, 2, result.TotalSuggestions)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "s-2", result.Failed[0].StudentID)

	all, err := fixture.service().ListSuggestions(ctx, "midterm", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestAnalyzeSessionWithoutLogs(t *testing.T) {
	fixture := newAnalysisFixture()
	_, err := fixture.service().AnalyzeSession(context.Background(), "empty")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = fixture.service().ListSuggestions(context.Background(), "empty", "s-1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
