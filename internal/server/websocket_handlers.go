package server

import (
	"context"
	"log/slog"

	"shapeit/internal/middleware"
	"shapeit/internal/notifications"
	"shapeit/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketUpgrade admits only websocket handshakes and records the optional viewer.
func (s *Server) WebsocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals("viewerID", s.optionalViewerID(c))
	return c.Next()
}

// FeedWebsocketHandler streams post and reaction events so clients can
// reconcile optimistic counters with the stored tallies.
func (s *Server) FeedWebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		observability.ActiveWebSockets.Inc()
		defer observability.ActiveWebSockets.Dec()

		viewerID, _ := conn.Locals("viewerID").(uint)
		client, err := s.hub.Register(viewerID, conn)
		if err != nil {
			middleware.Logger.Warn("feed websocket rejected",
				slog.Uint64("viewer_id", uint64(viewerID)),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"reason":"`+err.Error()+`"}}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// startEventRelay forwards every published event to the connected websocket clients.
func (s *Server) startEventRelay(ctx context.Context) error {
	return s.hub.StartWiring(ctx, s.notifier, s.logEvent)
}

func (s *Server) logEvent(ev notifications.Event) {
	middleware.Logger.Debug("event received",
		slog.String("type", ev.Type),
		slog.String("payload", string(ev.Payload)),
		slog.Time("at", ev.At),
	)
}
