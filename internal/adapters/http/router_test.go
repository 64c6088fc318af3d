package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkeye/Webinar/internal/adapters/signal"
	"github.com/dkeye/Webinar/internal/app"
	"github.com/dkeye/Webinar/internal/app/orch"
	"github.com/dkeye/Webinar/internal/config"
	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/core/coretest"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

type testServer struct {
	router   *gin.Engine
	sessions *app.SessionManager[*orch.Orchestrator]
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	builder := &signal.SessionBuilder{
		Devices:    &coretest.Devices{},
		Recorders:  &coretest.RecorderFactory{},
		Mixer:      &coretest.Mixer{},
		Downloader: &coretest.Downloader{},
		Policy:     app.SimplePolicy{},
	}
	factory := func(ctx context.Context, sid core.SessionID, req app.JoinRequest) (*orch.Orchestrator, error) {
		return builder.Build(ctx, sid, req, signal.NewClient(sid, nopConn{}))
	}
	rooms := app.NewRoomManager()
	sessions := app.NewSessionManager(factory, rooms)
	t.Cleanup(sessions.CloseAll)

	cfg := &config.Config{Mode: "test", StaticPath: t.TempDir(), Secret: "secret"}
	r := SetupRouter(context.Background(), cfg, Handlers{
		Signal:   signal.NewSignalWSController(builder, app.SimplePolicy{}, nil),
		Sessions: sessions,
		Rooms:    rooms,
	})
	return &testServer{router: r, sessions: sessions}
}

func (s *testServer) do(t *testing.T, method, path, sid, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", "ct="+sid)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func (s *testServer) join(t *testing.T, sid core.SessionID, name string, role domain.Role) domain.Participant {
	t.Helper()
	p, err := domain.NewParticipant("", name, role)
	require.NoError(t, err)
	_, err = s.sessions.Join(context.Background(), sid, "standup", *p)
	require.NoError(t, err)
	return *p
}

func TestMeRequiresSession(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/api/sessions/me", "sid-1", "")
	require.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_joined", body["error"])

	code, _ = s.do(t, http.MethodPost, "/api/sessions/me/intents", "sid-1", `{"intent":"toggle_audio"}`)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/api/sessions/me/intents", "sid-1", `{"intent":"leave"}`)
	require.Equal(t, http.StatusNotFound, code)
}

func TestHostIntentsAndStreams(t *testing.T) {
	s := newTestServer(t)
	host := s.join(t, "sid-1", "Alice", domain.RoleHost)

	code, body := s.do(t, http.MethodGet, "/api/sessions/me", "sid-1", "")
	require.Equal(t, http.StatusOK, code)
	state := body["state"].(map[string]any)
	assert.Equal(t, "Alice", state["participant"].(map[string]any)["displayName"])

	code, body = s.do(t, http.MethodPost, "/api/sessions/me/intents", "sid-1", `{"intent":"toggle_video"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["state"].(map[string]any)["mediaStatus"].(map[string]any)["isVideo"])

	code, body = s.do(t, http.MethodGet, "/api/sessions/me/participants/"+string(host.ID)+"/streams", "sid-1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "video", body["primary"].(map[string]any)["source"])
	assert.NotContains(t, body, "secondary")

	code, body = s.do(t, http.MethodGet, "/api/sessions", "sid-1", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["sessions"], 1)

	code, body = s.do(t, http.MethodGet, "/api/rooms", "sid-1", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["rooms"], 1)

	code, _ = s.do(t, http.MethodPost, "/api/sessions/me/intents", "sid-1", `{"intent":"leave"}`)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, s.sessions.List())
}

func TestIntentValidationAndPolicy(t *testing.T) {
	s := newTestServer(t)
	s.join(t, "sid-2", "Bob", domain.RoleGuest)

	code, body := s.do(t, http.MethodPost, "/api/sessions/me/intents", "sid-2", `{"intent":"dance"}`)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "unknown_intent", body["error"])

	code, _ = s.do(t, http.MethodPost, "/api/sessions/me/intents", "sid-2", `{}`)
	require.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, http.MethodPost, "/api/sessions/me/intents", "sid-2", `{"intent":"toggle_recording"}`)
	require.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", body["error"])

	code, body = s.do(t, http.MethodPost, "/api/sessions/me/intents", "sid-2", `{"intent":"open_chat"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "chat", body["state"].(map[string]any)["activePanel"])
}
