package orch

import (
	"context"
	"io"

	"github.com/dkeye/Webinar/internal/domain"
)

// OpenPanel shows p in the shared side slot; opening the active panel again closes it.
func (o *Orchestrator) OpenPanel(p domain.Panel) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.panel == p {
		o.panel = domain.PanelNone
		return
	}
	o.panel = p
}

func (o *Orchestrator) ClosePanel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.panel = domain.PanelNone
}

func (o *Orchestrator) ActivePanel() domain.Panel {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.panel
}

// Leave ends the webinar for everyone when the host leaves, then navigates
// away and tears every controller down. Guests only navigate.
func (o *Orchestrator) Leave(ctx context.Context) error {
	o.mu.Lock()
	if o.left {
		o.mu.Unlock()
		return nil
	}
	o.left = true
	o.mu.Unlock()

	var err error
	if o.Participant.Role.IsHost() {
		if err = o.Transport.EndWebinar(ctx); err != nil {
			o.logger().Warn().Err(err).Msg("end webinar failed")
		}
	}

	o.Close()

	path := o.LeavePath
	if path == "" {
		path = DefaultLeavePath
	}
	if o.Navigator != nil {
		o.Navigator.Navigate(path)
	}
	o.logger().Info().Str("role", string(o.Participant.Role)).Msg("left")
	return err
}

// Close releases every device, listener, timer and modal. Safe to call twice.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.panel = domain.PanelNone
	o.mu.Unlock()

	if o.Recording != nil {
		o.Recording.Close()
	}
	if o.Media != nil {
		o.Media.Close()
	}
	if o.Fullscreen != nil {
		o.Fullscreen.Close()
	}
	if o.RaiseHand != nil {
		o.RaiseHand.Close()
	}
	if o.Whiteboard != nil {
		o.Whiteboard.Close()
	}
	if o.Producers != nil {
		o.Producers.Clear()
	}
	if c, ok := o.Transport.(io.Closer); ok {
		if err := c.Close(); err != nil {
			o.logger().Warn().Err(err).Msg("transport close")
		}
	}
	o.logger().Info().Msg("session torn down")
}
