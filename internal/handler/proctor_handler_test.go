package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-proctor/internal/dto"
	"github.com/noah-isme/gema-proctor/internal/handler"
	"github.com/noah-isme/gema-proctor/internal/models"
	"github.com/noah-isme/gema-proctor/internal/repository"
)

type stubActivityService struct {
	lastRequest  dto.IngestActivityRequest
	lastRemoteIP string
	logs         []dto.ActivityLogResponse
	err          error
}

func (s *stubActivityService) Ingest(_ context.Context, req dto.IngestActivityRequest, remoteIP string) (dto.IngestActivityResponse, error) {
	s.lastRequest = req
	s.lastRemoteIP = remoteIP
	if s.err != nil {
		return dto.IngestActivityResponse{}, s.err
	}
	return dto.IngestActivityResponse{Key: req.TestSession + "/activities/" + req.StudentID, Activities: 1}, nil
}

func (s *stubActivityService) List(_ context.Context, session, student string) ([]dto.ActivityLogResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.logs, nil
}

type stubAnalysisService struct {
	student     dto.StudentAnalysisResponse
	session     dto.SessionAnalysisResponse
	suggestions []models.Suggestion
	err         error
	calls       []string
}

func (s *stubAnalysisService) AnalyzeStudent(_ context.Context, session, student string) (dto.StudentAnalysisResponse, error) {
	s.calls = append(s.calls, session+"/"+student)
	return s.student, s.err
}

func (s *stubAnalysisService) AnalyzeSession(_ context.Context, session string) (dto.SessionAnalysisResponse, error) {
	s.calls = append(s.calls, session)
	return s.session, s.err
}

func (s *stubAnalysisService) ListSuggestions(_ context.Context, session, student string) ([]models.Suggestion, error) {
	s.calls = append(s.calls, session+"/"+student)
	if s.err != nil {
		return nil, s.err
	}
	return s.suggestions, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestActivityHandlerIngest(t *testing.T) {
	svc := &stubActivityService{}
	app := fiber.New()
	handler.NewActivityHandler(svc, zerolog.Nop()).RegisterIngest(app.Group("/api/v2/proctor/activities"))

	body := []byte(`{"Test_Session":"midterm","Student_ID":"s-1","Name":"Jane","Status":"Next question","Timestamp":1710147600000,"IP":"10.0.0.1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v2/proctor/activities", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	payload := decodeEnvelope(t, resp)
	require.True(t, payload.Success)
	require.Equal(t, "activity recorded", payload.Message)
	require.Equal(t, models.Timestamp("1710147600000"), svc.lastRequest.Timestamp)
	require.Equal(t, "Next question", svc.lastRequest.Status)
	require.NotEmpty(t, svc.lastRemoteIP)
}

func TestActivityHandlerIngestErrors(t *testing.T) {
	validationErr := validator.New().Struct(dto.IngestActivityRequest{})
	require.Error(t, validationErr)

	cases := []struct {
		name       string
		body       string
		err        error
		statusCode int
	}{
		{name: "malformed body", body: `{"Test_Session":`, statusCode: fiber.StatusBadRequest},
		{name: "validation", body: `{"Test_Session":"midterm"}`, err: validationErr, statusCode: fiber.StatusBadRequest},
		{name: "store failure", body: `{"Test_Session":"midterm"}`, err: errors.New("disk full"), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			handler.NewActivityHandler(&stubActivityService{err: tc.err}, zerolog.Nop()).RegisterIngest(app.Group("/activities"))

			req := httptest.NewRequest(http.MethodPost, "/activities", bytes.NewReader([]byte(tc.body)))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)
			require.False(t, decodeEnvelope(t, resp).Success)
		})
	}
}

func TestActivityHandlerListNotFound(t *testing.T) {
	app := fiber.New()
	handler.NewActivityHandler(&stubActivityService{err: repository.ErrNotFound}, zerolog.Nop()).RegisterQueries(app.Group("/activities"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/activities/midterm", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestActivityHandlerQueriesRunGuards(t *testing.T) {
	app := fiber.New()
	guard := func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	handler.NewActivityHandler(&stubActivityService{}, zerolog.Nop()).RegisterQueries(app.Group("/activities"), guard)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/activities/midterm/s-1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAnalysisHandlerRoutes(t *testing.T) {
	svc := &stubAnalysisService{
		student: dto.StudentAnalysisResponse{TestSession: "midterm", StudentID: "s-1", Suggestions: []models.Suggestion{}},
		session: dto.SessionAnalysisResponse{TestSession: "midterm"},
	}
	app := fiber.New()
	handler.NewAnalysisHandler(svc, zerolog.Nop()).Register(app.Group("/analysis"))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/analysis/midterm/s-1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/analysis/midterm", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, []string{"midterm/s-1", "midterm"}, svc.calls)
}

func TestAnalysisHandlerErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "missing log", err: repository.ErrNotFound, statusCode: fiber.StatusNotFound},
		{name: "store failure", err: errors.New("connection reset"), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			handler.NewAnalysisHandler(&stubAnalysisService{err: tc.err}, zerolog.Nop()).Register(app.Group("/analysis"))

			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/analysis/midterm/s-1", nil))
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)

			body := decodeEnvelope(t, resp)
			require.NotContains(t, body.Message, "connection reset")
		})
	}
}

func TestSuggestionHandlerList(t *testing.T) {
	svc := &stubAnalysisService{suggestions: []models.Suggestion{
		{StudentID: "s-1", Name: "Jane", Type: models.SuggestionDifferentIP, Description: "IP address changed during the test: 10.0.0.1, 10.0.0.2 (2 distinct addresses)"},
	}}
	app := fiber.New()
	handler.NewSuggestionHandler(svc, zerolog.Nop()).Register(app.Group("/suggestions"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/suggestions/midterm", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var suggestions []models.Suggestion
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &suggestions))
	require.Equal(t, svc.suggestions, suggestions)
	require.Equal(t, []string{"midterm/"}, svc.calls)
}
