package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proctor/internal/observability"
)

const analysisEventBufferSize = 16

// AnalysisCompletedEvent is announced after a student's suggestions were replaced.
type AnalysisCompletedEvent struct {
	Source      string    `json:"source"`
	TestSession string    `json:"test_session"`
	StudentID   string    `json:"student_id"`
	Suggestions int       `json:"suggestions"`
	CompletedAt time.Time `json:"completed_at"`
}

// AnalysisAnnouncer receives completion events from the publisher.
type AnalysisAnnouncer interface {
	Announce(ctx context.Context, event AnalysisCompletedEvent)
}

// AnalysisEventStream lets reviewers follow completed analyses of a session.
type AnalysisEventStream interface {
	Subscribe(session string) (<-chan AnalysisCompletedEvent, func())
}

// AnalysisEventHub fans completion events out to local stream subscribers and
// to the other nodes through redis pub/sub and NATS.
type AnalysisEventHub struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string

	mu          sync.RWMutex
	subscribers map[string]map[chan AnalysisCompletedEvent]struct{}
}

// NewAnalysisEventHub constructs a hub. The redis client and NATS connection
// are optional; events go to "<channelBase>:analysis" and
// "<channelBase>.analysis" respectively.
func NewAnalysisEventHub(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) *AnalysisEventHub {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":analysis"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".analysis"
	}

	return &AnalysisEventHub{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "analysis_event_hub").Logger(),
		nodeID:       uuid.NewString(),
		subscribers:  make(map[string]map[chan AnalysisCompletedEvent]struct{}),
	}
}

// Start consumes events published by other nodes until ctx is cancelled.
func (h *AnalysisEventHub) Start(ctx context.Context) {
	if h.redis != nil && h.redisChannel != "" {
		pubsub := h.redis.Subscribe(ctx, h.redisChannel)
		if _, err := pubsub.Receive(ctx); err != nil {
			h.logger.Error().Err(err).Msg("failed to subscribe to redis analysis channel")
			_ = pubsub.Close()
		} else {
			go h.consumeRedis(ctx, pubsub)
		}
	}
	if h.nats != nil && h.natsSubject != "" {
		h.consumeNATS(ctx)
	}
}

// Announce delivers the event locally and publishes it to the brokers. Broker
// failures are logged and counted.
func (h *AnalysisEventHub) Announce(ctx context.Context, event AnalysisCompletedEvent) {
	event.Source = h.nodeID
	h.broadcast(event)

	if (h.redis == nil || h.redisChannel == "") && (h.nats == nil || h.natsSubject == "") {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode analysis event")
		return
	}

	if h.redis != nil && h.redisChannel != "" {
		if err := h.redis.Publish(ctx, h.redisChannel, payload).Err(); err != nil {
			observability.AnalysisEvents().WithLabelValues("redis", "error").Inc()
			h.logger.Warn().Err(err).Msg("failed to publish analysis event to redis")
		} else {
			observability.AnalysisEvents().WithLabelValues("redis", "ok").Inc()
		}
	}

	if h.nats != nil && h.natsSubject != "" {
		if err := h.nats.Publish(h.natsSubject, payload); err != nil {
			observability.AnalysisEvents().WithLabelValues("nats", "error").Inc()
			h.logger.Warn().Err(err).Msg("failed to publish analysis event to nats")
		} else {
			observability.AnalysisEvents().WithLabelValues("nats", "ok").Inc()
		}
	}
}

// Subscribe streams events of one test session. The returned func must be
// called to release the subscription.
func (h *AnalysisEventHub) Subscribe(session string) (<-chan AnalysisCompletedEvent, func()) {
	channel := make(chan AnalysisCompletedEvent, analysisEventBufferSize)

	h.mu.Lock()
	if _, ok := h.subscribers[session]; !ok {
		h.subscribers[session] = make(map[chan AnalysisCompletedEvent]struct{})
	}
	h.subscribers[session][channel] = struct{}{}
	h.mu.Unlock()
	observability.StreamClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			if subscribers, ok := h.subscribers[session]; ok {
				delete(subscribers, channel)
				if len(subscribers) == 0 {
					delete(h.subscribers, session)
				}
			}
			close(channel)
			h.mu.Unlock()
			observability.StreamClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (h *AnalysisEventHub) broadcast(event AnalysisCompletedEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[event.TestSession] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *AnalysisEventHub) consumeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			h.logger.Error().Err(err).Msg("analysis redis subscription closed")
			return
		}
		h.handleEvent([]byte(msg.Payload))
	}
}

func (h *AnalysisEventHub) consumeNATS(ctx context.Context) {
	sub, err := h.nats.Subscribe(h.natsSubject, func(msg *nats.Msg) {
		h.handleEvent(msg.Data)
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to subscribe to nats analysis subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			h.logger.Warn().Err(err).Msg("failed to drain analysis nats subscription")
		}
	}()
}

func (h *AnalysisEventHub) handleEvent(payload []byte) {
	var event AnalysisCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Warn().Err(err).Msg("invalid analysis event payload")
		return
	}

	// Local subscribers already saw our own events in Announce.
	if event.Source == h.nodeID {
		return
	}
	h.broadcast(event)
}
