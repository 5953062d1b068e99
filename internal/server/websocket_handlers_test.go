package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"shapeit/internal/models"
	"shapeit/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedWebsocket_RequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/api/ws", "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestFeedWebsocket_StreamsReactionUpdates(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := aliceAndBob(t, env)
	post := env.createPost(t, alice, "live")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, env.srv.startEventRelay(ctx))

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = env.app.Listener(ln) }()
	t.Cleanup(func() { _ = env.app.ShutdownWithTimeout(2 * time.Second) })

	header := http.Header{}
	header.Set(fiber.HeaderAuthorization, "Bearer "+bob)
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/ws", header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return env.srv.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, raw := toggle(t, env, bob, post.ID, "DIAMOND")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev notifications.Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, notifications.EventReactionUpdated, ev.Type)

	var payload struct {
		PostID       uint               `json:"postId"`
		AppliedShape *models.Shape      `json:"appliedShape"`
		ShapeCounts  models.ShapeCounts `json:"shapeCounts"`
	}
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, post.ID, payload.PostID)
	require.NotNil(t, payload.AppliedShape)
	assert.Equal(t, models.ShapeDiamond, *payload.AppliedShape)
	assert.Equal(t, models.ShapeCounts{Diamond: 1}, payload.ShapeCounts)
}
