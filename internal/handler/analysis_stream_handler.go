package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proctor/internal/middleware"
	"github.com/noah-isme/gema-proctor/internal/service"
	"github.com/noah-isme/gema-proctor/internal/utils"
)

// AnalysisStreamHandler streams completed analyses of a session as server-sent
// events, or as JSON frames over a websocket.
type AnalysisStreamHandler struct {
	stream    service.AnalysisEventStream
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewAnalysisStreamHandler constructs a stream handler.
func NewAnalysisStreamHandler(stream service.AnalysisEventStream, logger zerolog.Logger, keepAlive time.Duration) *AnalysisStreamHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &AnalysisStreamHandler{
		stream:    stream,
		logger:    logger.With().Str("component", "analysis_stream_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register wires the stream routes.
func (h *AnalysisStreamHandler) Register(router fiber.Router) {
	router.Get("/:session/ws", requireUpgrade, websocket.New(h.followSocket))
	router.Get("/:session", h.follow)
}

func requireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals("correlation_id", middleware.GetCorrelationID(c))
	return c.Next()
}

func (h *AnalysisStreamHandler) follow(c *fiber.Ctx) error {
	session, _, ok := pathScope(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test session")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(c.UserContext())
	events, cleanup := h.stream.Subscribe(session)
	logger := requestLogger(h.logger, c).With().Str("test_session", session).Logger()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeAnalysisEvent(w, event); err != nil {
					logger.Debug().Err(err).Msg("analysis stream closed")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					logger.Debug().Err(err).Msg("analysis stream keepalive failed")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *AnalysisStreamHandler) followSocket(conn *websocket.Conn) {
	session := strings.TrimSpace(conn.Params("session"))
	if session == "" || strings.Contains(session, "/") {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "invalid test session"))
		_ = conn.Close()
		return
	}

	logger := h.logger.With().
		Str("test_session", session).
		Str("correlation_id", fmt.Sprint(conn.Locals("correlation_id"))).
		Logger()
	logger.Debug().Msg("analysis websocket connected")

	events, cleanup := h.stream.Subscribe(session)
	defer cleanup()

	// Client frames are discarded; a read error means the peer went away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	// The connection goes back to the pool once we return, so the reader must
	// be finished first.
	defer func() {
		_ = conn.Close()
		<-gone
	}()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream closed"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("analysis websocket closed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				logger.Debug().Err(err).Msg("analysis websocket ping failed")
				return
			}
		case <-gone:
			logger.Debug().Msg("analysis websocket disconnected")
			return
		}
	}
}

func writeAnalysisEvent(w *bufio.Writer, event service.AnalysisCompletedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: analysis.completed\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
