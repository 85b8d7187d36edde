package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-proctor/internal/models"
	"github.com/noah-isme/gema-proctor/internal/repository"
)

func setupMiniredis(t *testing.T) *redis.Client {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func receiveEvent(t *testing.T, stream <-chan AnalysisCompletedEvent) AnalysisCompletedEvent {
	t.Helper()
	select {
	case event, ok := <-stream:
		require.True(t, ok)
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for analysis event")
		return AnalysisCompletedEvent{}
	}
}

func TestSuggestionPublisherAnnouncesOnRedis(t *testing.T) {
	ctx := context.Background()
	client := setupMiniredis(t)

	sub := client.Subscribe(ctx, "gema:proctor:analysis")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	hub := NewAnalysisEventHub(client, "gema:proctor", nil, testLogger())
	local, cleanup := hub.Subscribe("midterm")
	defer cleanup()

	repo := repository.NewSuggestionRepository(repository.NewMemoryBlobStore())
	publisher := NewSuggestionPublisher(repo, hub, testLogger())

	suggestions := []models.Suggestion{
		{StudentID: "s-1", Name: "Jane", Type: models.SuggestionScreenActivity, Description: "Test tab was inactive 1 time(s) during the test: 12s"},
		{StudentID: "s-1", Name: "Jane", Type: models.SuggestionRapidSubmission, Description: "Test submitted 0h 20m 0s after it was started, below the 30 minute threshold"},
	}
	require.NoError(t, publisher.Publish(ctx, "midterm", "s-1", suggestions))

	require.Equal(t, 2, receiveEvent(t, local).Suggestions)

	msgCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(msgCtx)
	require.NoError(t, err)

	var event AnalysisCompletedEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	require.Equal(t, "midterm", event.TestSession)
	require.Equal(t, "s-1", event.StudentID)
	require.Equal(t, 2, event.Suggestions)
	require.NotEmpty(t, event.Source)

	removed, err := publisher.Clear(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	keys, err := repo.Keys(ctx, "midterm", "s-1")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestAnalysisEventHubRelaysBetweenNodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := setupMiniredis(t)

	sender := NewAnalysisEventHub(client, "gema:proctor", nil, testLogger())
	receiver := NewAnalysisEventHub(client, "gema:proctor", nil, testLogger())
	receiver.Start(ctx)

	stream, cleanup := receiver.Subscribe("midterm")
	defer cleanup()
	other, cleanupOther := receiver.Subscribe("final")
	defer cleanupOther()

	sender.Announce(ctx, AnalysisCompletedEvent{TestSession: "midterm", StudentID: "s-9", Suggestions: 3})

	event := receiveEvent(t, stream)
	require.Equal(t, "s-9", event.StudentID)
	require.Equal(t, 3, event.Suggestions)
	require.Empty(t, other)
}

func TestAnalysisEventHubSubscriptionCleanup(t *testing.T) {
	hub := NewAnalysisEventHub(nil, "", nil, testLogger())

	stream, cleanup := hub.Subscribe("midterm")
	cleanup()
	cleanup()

	_, ok := <-stream
	require.False(t, ok)

	hub.Announce(context.Background(), AnalysisCompletedEvent{TestSession: "midterm"})
}
