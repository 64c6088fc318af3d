package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/rs/zerolog/log"
)

// Client is the browser on the other end of one signal connection. The
// controllers see it as their notifier, navigator, modal factory and
// fullscreen host.
type Client struct {
	sid  core.SessionID
	conn core.SignalConnection

	mu             sync.Mutex
	methods        map[string]bool
	present        bool
	listeners      map[string]map[int]func()
	nextListener   int
	onBackpressure func()
}

func NewClient(sid core.SessionID, conn core.SignalConnection) *Client {
	return &Client{
		sid:       sid,
		conn:      conn,
		methods:   make(map[string]bool),
		listeners: make(map[string]map[int]func()),
	}
}

func (c *Client) OnBackpressure(fn func()) {
	c.mu.Lock()
	c.onBackpressure = fn
	c.mu.Unlock()
}

func (c *Client) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.conn.TrySend(b); err != nil {
		if errors.Is(err, ErrBackpressure) {
			c.mu.Lock()
			fn := c.onBackpressure
			c.mu.Unlock()
			if fn != nil {
				fn()
			}
			return
		}
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("send dropped")
	}
}

func (c *Client) sendError(code string) {
	c.sendJSON(map[string]any{
		"type":  "error",
		"error": code,
	})
}

// PushState sends the toolbar snapshot the UI renders from.
func (c *Client) PushState(state domain.ToolbarState) {
	c.sendJSON(struct {
		Type  string              `json:"type"`
		State domain.ToolbarState `json:"state"`
	}{"state", state})
}

func (c *Client) Notify(alert domain.Alert) {
	c.sendJSON(struct {
		Type  string       `json:"type"`
		Alert domain.Alert `json:"alert"`
	}{"alert", alert})
}

func (c *Client) Navigate(path string) {
	c.sendJSON(struct {
		Type string `json:"type"`
		Path string `json:"path"`
	}{"navigate", path})
}

func (c *Client) NewModal(name string) core.Modal {
	return &modal{client: c, name: name}
}

type modal struct {
	client *Client
	name   string

	mu   sync.Mutex
	open bool
}

func (m *modal) Open()  { m.set(true) }
func (m *modal) Close() { m.set(false) }

func (m *modal) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *modal) set(open bool) {
	m.mu.Lock()
	changed := m.open != open
	m.open = open
	m.mu.Unlock()
	if !changed {
		return
	}
	m.client.sendJSON(struct {
		Type string `json:"type"`
		Name string `json:"name"`
		Open bool   `json:"open"`
	}{"modal", m.name, open})
}

// SetFullscreenCapabilities records which fullscreen methods the browser
// exposes and whether an element is fullscreen right now.
func (c *Client) SetFullscreenCapabilities(methods []string, present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods = make(map[string]bool, len(methods))
	for _, m := range methods {
		c.methods[m] = true
	}
	c.present = present
}

func (c *Client) Has(method string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.methods[method]
}

// Invoke asks the browser to call method. The outcome arrives later as a
// fullscreenchange message.
func (c *Client) Invoke(ctx context.Context, method string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.Has(method) {
		return domain.ErrUnsupportedBrowser
	}
	b, err := json.Marshal(struct {
		Type   string `json:"type"`
		Method string `json:"method"`
	}{"fullscreen", method})
	if err != nil {
		return err
	}
	return c.conn.TrySend(b)
}

func (c *Client) ElementPresent(string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.present
}

func (c *Client) AddEventListener(event string, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	if c.listeners[event] == nil {
		c.listeners[event] = make(map[int]func())
	}
	c.listeners[event][id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners[event], id)
	}
}

// FullscreenChanged applies a change reported by the browser and fires the
// listeners registered for event.
func (c *Client) FullscreenChanged(event string, present bool) {
	c.mu.Lock()
	c.present = present
	fns := make([]func(), 0, len(c.listeners[event]))
	for _, fn := range c.listeners[event] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
