package handler_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-proctor/internal/handler"
	"github.com/noah-isme/gema-proctor/internal/service"
)

type stubEventStream struct {
	mu       sync.Mutex
	events   []service.AnalysisCompletedEvent
	session  string
	released bool
}

func (s *stubEventStream) Subscribe(session string) (<-chan service.AnalysisCompletedEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = session
	ch := make(chan service.AnalysisCompletedEvent, len(s.events))
	for _, event := range s.events {
		ch <- event
	}
	close(ch)
	return ch, func() {
		s.mu.Lock()
		s.released = true
		s.mu.Unlock()
	}
}

func TestAnalysisStreamHandlerWritesEvents(t *testing.T) {
	stream := &stubEventStream{events: []service.AnalysisCompletedEvent{
		{TestSession: "midterm", StudentID: "s-1", Suggestions: 2, CompletedAt: time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)},
	}}
	app := fiber.New()
	handler.NewAnalysisStreamHandler(stream, zerolog.Nop(), time.Minute).Register(app.Group("/events"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/events/midterm", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "event: analysis.completed\n")
	require.Contains(t, string(body), `"student_id":"s-1"`)
	stream.mu.Lock()
	defer stream.mu.Unlock()
	require.Equal(t, "midterm", stream.session)
	require.True(t, stream.released)
}
