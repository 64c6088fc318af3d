// Package orch maps toolbar intents onto the per-session media controllers.
package orch

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Webinar/internal/app"
	"github.com/dkeye/Webinar/internal/app/fullscreen"
	"github.com/dkeye/Webinar/internal/app/mediactl"
	"github.com/dkeye/Webinar/internal/app/producers"
	"github.com/dkeye/Webinar/internal/app/raisehand"
	"github.com/dkeye/Webinar/internal/app/recording"
	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultLeavePath = "/"

// Orchestrator is the façade one joined participant talks to.
type Orchestrator struct {
	Participant domain.Participant
	Room        domain.Room

	Media      *mediactl.Store
	Fullscreen *fullscreen.Controller
	Recording  *recording.Engine
	RaiseHand  *raisehand.Throttle
	Producers  *producers.Registry

	Transport  core.Transport
	Navigator  core.Navigator
	Notifier   core.Notifier
	Whiteboard core.Modal
	Policy     app.Policy

	LeavePath     string
	RecordWithMic bool

	mu     sync.Mutex
	panel  domain.Panel
	left   bool
	closed bool
}

func (o *Orchestrator) logger() *zerolog.Logger {
	l := log.With().Str("module", "app.orch").
		Str("room", string(o.Room.Name)).
		Str("participant", string(o.Participant.ID)).Logger()
	return &l
}

// Dispatch runs a single toolbar intent.
func (o *Orchestrator) Dispatch(ctx context.Context, intent domain.Intent) error {
	if o.Policy != nil && !o.Policy.Allow(o.Participant.Role, intent) {
		err := fmt.Errorf("%s: %w", intent, domain.ErrNotHost)
		o.notify(err)
		return err
	}
	if o.isClosed() && intent != domain.IntentLeave {
		return domain.ErrSessionClosed
	}

	switch intent {
	case domain.IntentOpenChat:
		o.OpenPanel(domain.PanelChat)
	case domain.IntentOpenAttachments:
		o.OpenPanel(domain.PanelAttachments)
	case domain.IntentClosePanel:
		o.ClosePanel()
	case domain.IntentOpenWhiteboard:
		o.Whiteboard.Open()
	case domain.IntentCloseWhiteboard:
		o.Whiteboard.Close()
	case domain.IntentToggleAudio:
		return o.Media.ToggleAudio(ctx)
	case domain.IntentToggleVideo:
		return o.Media.ToggleVideo(ctx)
	case domain.IntentToggleScreen:
		return o.Media.ToggleScreen(ctx)
	case domain.IntentToggleFullscreen:
		return o.ToggleFullscreen(ctx)
	case domain.IntentToggleRecording:
		return o.ToggleRecording(ctx)
	case domain.IntentRaiseHand:
		o.RaiseHandNow(ctx)
	case domain.IntentLeave:
		return o.Leave(ctx)
	default:
		return fmt.Errorf("unknown intent %q", intent)
	}
	return nil
}

// Snapshot is the toolbar's rendering state.
func (o *Orchestrator) Snapshot() domain.ToolbarState {
	o.mu.Lock()
	panel, left := o.panel, o.left
	o.mu.Unlock()

	st := domain.ToolbarState{
		Participant:    o.Participant,
		Room:           o.Room,
		Media:          o.Media.Status(),
		ActivePanel:    panel,
		WhiteboardOpen: o.Whiteboard.IsOpen(),
		Recording:      o.Recording.Snapshot(),
		RaiseHand:      o.RaiseHand.Cooldown(),
		Left:           left,
	}
	if o.Fullscreen != nil {
		st.Fullscreen = o.Fullscreen.IsFullscreen()
		st.FullscreenAvail = o.Fullscreen.Supported()
	}
	return st
}

func (o *Orchestrator) notify(err error) {
	o.logger().Warn().Err(err).Msg("intent rejected")
	if o.Notifier != nil {
		o.Notifier.Notify(domain.NewAlert(err))
	}
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
