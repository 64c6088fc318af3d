// Package fullscreen normalizes the vendor fullscreen APIs behind one controller.
package fullscreen

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/rs/zerolog/log"
)

type vendor struct {
	name    string
	request string
	exit    string
	element string
	event   string
}

// Order matters: the first vendor the host exposes wins.
var vendors = []vendor{
	{"standard", "requestFullscreen", "exitFullscreen", "fullscreenElement", "fullscreenchange"},
	{"webkit", "webkitRequestFullscreen", "webkitExitFullscreen", "webkitFullscreenElement", "webkitfullscreenchange"},
	{"moz", "mozRequestFullScreen", "mozCancelFullScreen", "mozFullScreenElement", "mozfullscreenchange"},
	{"ms", "msRequestFullscreen", "msExitFullscreen", "msFullscreenElement", "MSFullscreenChange"},
}

type waiter struct {
	want bool
	done chan error
}

// Controller tracks fullscreen state from change events, including exits
// the user triggers outside of this controller (Esc, OS gestures).
type Controller struct {
	host core.FullscreenHost
	api  *vendor

	mu       sync.Mutex
	on       bool
	waiters  []*waiter
	removers []func()
	onChange func(bool)
	closed   bool
}

func NewController(host core.FullscreenHost) *Controller {
	c := &Controller{host: host}
	for i := range vendors {
		if host.Has(vendors[i].request) && host.Has(vendors[i].exit) {
			c.api = &vendors[i]
			break
		}
	}
	if c.api == nil {
		log.Info().Str("module", "app.fullscreen").Msg("fullscreen unsupported")
		return c
	}
	log.Debug().Str("module", "app.fullscreen").Str("vendor", c.api.name).Msg("fullscreen api resolved")

	for _, v := range vendors {
		c.removers = append(c.removers, host.AddEventListener(v.event, c.handleChange))
	}
	c.on = c.present()
	return c
}

func (c *Controller) Supported() bool { return c.api != nil }

func (c *Controller) IsFullscreen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on
}

// OnChange registers fn to observe every state change.
func (c *Controller) OnChange(fn func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Enter requests fullscreen and returns once a change event reports it.
func (c *Controller) Enter(ctx context.Context) error {
	return c.transition(ctx, true)
}

// Exit leaves fullscreen and returns once a change event reports it.
func (c *Controller) Exit(ctx context.Context) error {
	return c.transition(ctx, false)
}

func (c *Controller) Toggle(ctx context.Context) error {
	return c.transition(ctx, !c.IsFullscreen())
}

func (c *Controller) transition(ctx context.Context, want bool) error {
	if c.api == nil {
		return domain.ErrUnsupportedBrowser
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if c.on == want {
		c.mu.Unlock()
		return nil
	}
	w := &waiter{want: want, done: make(chan error, 1)}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	method := c.api.exit
	if want {
		method = c.api.request
	}
	if err := c.host.Invoke(ctx, method); err != nil {
		c.drop(w)
		return fmt.Errorf("fullscreen %s: %w", method, err)
	}

	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		c.drop(w)
		return ctx.Err()
	}
}

func (c *Controller) handleChange() {
	on := c.present()

	c.mu.Lock()
	changed := c.on != on
	c.on = on
	var keep []*waiter
	for _, w := range c.waiters {
		if w.want == on {
			w.done <- nil
			continue
		}
		keep = append(keep, w)
	}
	c.waiters = keep
	fn := c.onChange
	c.mu.Unlock()

	if changed {
		log.Debug().Str("module", "app.fullscreen").Bool("fullscreen", on).Msg("fullscreen changed")
		if fn != nil {
			fn(on)
		}
	}
}

func (c *Controller) present() bool {
	for _, v := range vendors {
		if c.host.ElementPresent(v.element) {
			return true
		}
	}
	return false
}

func (c *Controller) drop(w *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, x := range c.waiters {
		if x == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// Close removes the listeners and leaves fullscreen if still in it.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	removers := c.removers
	c.removers = nil
	waiters := c.waiters
	c.waiters = nil
	wasOn := c.on
	c.on = false
	c.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
	for _, w := range waiters {
		w.done <- domain.ErrSessionClosed
	}
	if wasOn && c.api != nil {
		if err := c.host.Invoke(context.Background(), c.api.exit); err != nil {
			log.Warn().Err(err).Str("module", "app.fullscreen").Msg("force exit failed")
		}
	}
}
