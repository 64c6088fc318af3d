package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Webinar/internal/app/producers"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	*httptest.Server
	in   chan map[string]any
	conn chan *websocket.Conn
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{in: make(chan map[string]any, 16), conn: make(chan *websocket.Conn, 1)}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.conn <- ws
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var m map[string]any
			if json.Unmarshal(data, &m) == nil {
				fs.in <- m
			}
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) url() string { return "ws" + strings.TrimPrefix(fs.URL, "http") }

func (fs *fakeServer) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case m := <-fs.in:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no upstream message")
		return nil
	}
}

func TestUpstreamLifecycle(t *testing.T) {
	srv := newFakeServer(t)
	room := domain.Room{ID: "r1", Name: "standup"}
	alice := domain.Participant{ID: "p1", DisplayName: "Alice", Role: domain.RoleGuest}

	up := NewUpstream(srv.url(), "sid-1", room, alice, nil)
	up.Producers = producers.NewRegistry(alice.ID, false, nil)
	changed := make(chan struct{}, 8)
	up.OnProducersChanged = func() { changed <- struct{}{} }
	ended := make(chan struct{})
	up.OnWebinarEnded = func() { close(ended) }

	require.NoError(t, up.Connect(context.Background()))
	join := srv.next(t)
	require.Equal(t, "join", join["type"])
	require.Equal(t, "p1", join["participant"].(map[string]any)["id"])

	require.NoError(t, up.RaiseHand(context.Background()))
	require.Equal(t, "raise_hand", srv.next(t)["type"])

	ws := <-srv.conn
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "producer_added", "participant": "p2", "kind": "screen", "track": "t-screen"}))
	<-changed
	require.True(t, up.Producers.Status("p2").IsScreen)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "producer_removed", "participant": "p2", "kind": "screen"}))
	<-changed
	require.False(t, up.Producers.Status("p2").IsScreen)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "webinar_ended"}))
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("webinar_ended not delivered")
	}

	require.NoError(t, up.EndWebinar(context.Background()))
	require.Equal(t, "end_webinar", srv.next(t)["type"])

	require.NoError(t, up.Close())
	require.NoError(t, up.Close())
	require.ErrorIs(t, up.RaiseHand(context.Background()), ErrUpstreamClosed)
	select {
	case <-up.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop still running")
	}
}

func TestUpstreamDialFailure(t *testing.T) {
	up := NewUpstream("ws://127.0.0.1:1/signal", "sid-1", domain.Room{}, domain.Participant{}, nil)
	require.Error(t, up.Connect(context.Background()))
}
