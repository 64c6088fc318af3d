package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Webinar/internal/app"
	"github.com/dkeye/Webinar/internal/app/orch"
	"github.com/dkeye/Webinar/internal/core/coretest"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	ctl      *SignalWSController
	sessions *app.SessionManager[*orch.Orchestrator]
	devices  *coretest.Devices
	url      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{devices: &coretest.Devices{}}
	builder := &SessionBuilder{
		Devices:    env.devices,
		Recorders:  &coretest.RecorderFactory{Final: []byte("rec")},
		Mixer:      &coretest.Mixer{},
		Downloader: &coretest.Downloader{},
		Policy:     app.SimplePolicy{},
		LeavePath:  "/goodbye",
	}
	env.ctl = NewSignalWSController(builder, app.SimplePolicy{}, NewRateLimiter(100, 100))
	env.sessions = app.NewSessionManager(env.ctl.NewSession, app.NewRoomManager())
	env.ctl.Sessions = env.sessions

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.GET("/api/ws/signal", func(c *gin.Context) {
		c.Set("client_token", "sid-1")
		env.ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	env.url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	return env
}

func (env *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(env.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readUntil(t *testing.T, ws *websocket.Conn, typ string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var m map[string]any
		require.NoError(t, ws.ReadJSON(&m))
		if m["type"] == typ {
			return m
		}
	}
}

func TestJoinToggleLeave(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type": "join", "room": "standup", "name": "Alice", "role": "host",
		"fullscreen": map[string]any{"methods": []string{"requestFullscreen", "exitFullscreen"}},
	}))
	joined := readUntil(t, ws, "joined")
	assert.Equal(t, "Alice", joined["participant"].(map[string]any)["displayName"])
	assert.Equal(t, "host", joined["participant"].(map[string]any)["role"])
	assert.Equal(t, true, joined["state"].(map[string]any)["fullscreenAvailable"])
	require.Len(t, env.sessions.List(), 1)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "intent", "intent": "toggle_audio"}))
	res := readUntil(t, ws, "intent_result")
	assert.Equal(t, "toggle_audio", res["intent"])
	assert.Nil(t, res["error"])
	state := readUntil(t, ws, "state")["state"].(map[string]any)
	assert.Equal(t, true, state["mediaStatus"].(map[string]any)["isAudio"])

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "intent", "intent": "leave"}))
	nav := readUntil(t, ws, "navigate")
	assert.Equal(t, "/goodbye", nav["path"])
	readUntil(t, ws, "left")
	require.Empty(t, env.sessions.List())

	for _, tr := range env.devices.Acquired() {
		assert.Equal(t, "ended", tr.ReadyState().String())
	}
}

func TestGuestCannotRecord(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "join", "room": "standup", "name": "Bob"}))
	readUntil(t, ws, "joined")

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "intent", "intent": "toggle_recording"}))
	alert := readUntil(t, ws, "alert")
	assert.Equal(t, "forbidden", alert["alert"].(map[string]any)["kind"])
	res := readUntil(t, ws, "intent_result")
	assert.Equal(t, "forbidden", res["error"])
}

func TestSignalErrors(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "intent", "intent": "toggle_audio"}))
	assert.Equal(t, "not_joined", readUntil(t, ws, "error")["error"])

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "intent", "intent": "dance"}))
	assert.Equal(t, "unknown_intent", readUntil(t, ws, "error")["error"])

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "join", "room": "standup", "name": ""}))
	assert.Equal(t, "invalid_name", readUntil(t, ws, "error")["error"])

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "ping"}))
	readUntil(t, ws, "pong")
}

func TestDisconnectClosesSession(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "join", "room": "standup", "name": "Alice"}))
	readUntil(t, ws, "joined")
	require.Len(t, env.sessions.List(), 1)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return len(env.sessions.List()) == 0 }, 2*time.Second, 5*time.Millisecond)
}
