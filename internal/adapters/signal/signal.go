// Package signal is the websocket surface of a joined browser: it carries
// toolbar intents in and pushes alerts, navigation, modal and fullscreen
// commands out. upstream.go speaks to the webinar signaling server.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Webinar/internal/app"
	"github.com/dkeye/Webinar/internal/app/orch"
	"github.com/dkeye/Webinar/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
	ErrNoClient     = errors.New("no signal connection for session")
)

const (
	defaultReadLimit  = 32768
	defaultPingPeriod = 54 * time.Second
	writeWait         = 5 * time.Second
)

type SignalWSController struct {
	Sessions *app.SessionManager[*orch.Orchestrator]
	Builder  *SessionBuilder
	Policy   app.Policy
	Limiter  *RateLimiter

	ReadLimit  int64
	PingPeriod time.Duration

	mu      sync.RWMutex
	clients map[core.SessionID]*Client
}

func NewSignalWSController(builder *SessionBuilder, policy app.Policy, limiter *RateLimiter) *SignalWSController {
	return &SignalWSController{
		Builder:    builder,
		Policy:     policy,
		Limiter:    limiter,
		ReadLimit:  defaultReadLimit,
		PingPeriod: defaultPingPeriod,
		clients:    make(map[core.SessionID]*Client),
	}
}

// NewSession is the SessionFactory handed to the session manager. The
// browser's connection must already be registered.
func (ctl *SignalWSController) NewSession(ctx context.Context, sid core.SessionID, req app.JoinRequest) (*orch.Orchestrator, error) {
	client, ok := ctl.client(sid)
	if !ok {
		return nil, ErrNoClient
	}
	return ctl.Builder.Build(ctx, sid, req, client)
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	client := NewClient(sid, conn)
	client.OnBackpressure(func() { ctl.onBackpressure(sid, conn) })

	if prev := ctl.register(sid, client); prev != nil {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("replacing previous connection")
		prev.conn.Close()
		ctl.Sessions.Close(sid)
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, client, conn)
}

func (ctl *SignalWSController) onBackpressure(sid core.SessionID, conn *WsSignalConn) {
	if ctl.Policy == nil {
		return
	}
	switch ctl.Policy.OnBackPressure(sid) {
	case app.KickMember:
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("backpressure: closing connection")
		conn.Close()
	case app.DropFrame:
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("backpressure: frame dropped")
	}
}

func (ctl *SignalWSController) register(sid core.SessionID, c *Client) *Client {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	prev := ctl.clients[sid]
	ctl.clients[sid] = c
	return prev
}

// unregister drops c and its session unless a newer connection took over.
func (ctl *SignalWSController) unregister(sid core.SessionID, c *Client) {
	ctl.mu.Lock()
	current := ctl.clients[sid] == c
	if current {
		delete(ctl.clients, sid)
	}
	ctl.mu.Unlock()
	if !current {
		return
	}
	if ctl.Sessions != nil {
		ctl.Sessions.Close(sid)
	}
	if ctl.Limiter != nil {
		ctl.Limiter.Forget(sid)
	}
}

func (ctl *SignalWSController) client(sid core.SessionID) (*Client, bool) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	c, ok := ctl.clients[sid]
	return c, ok
}
