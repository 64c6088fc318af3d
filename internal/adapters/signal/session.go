package signal

import (
	"context"
	"time"

	"github.com/dkeye/Webinar/internal/adapters/rtc"
	"github.com/dkeye/Webinar/internal/app"
	"github.com/dkeye/Webinar/internal/app/fullscreen"
	"github.com/dkeye/Webinar/internal/app/mediactl"
	"github.com/dkeye/Webinar/internal/app/orch"
	"github.com/dkeye/Webinar/internal/app/producers"
	"github.com/dkeye/Webinar/internal/app/raisehand"
	"github.com/dkeye/Webinar/internal/app/recording"
	"github.com/dkeye/Webinar/internal/app/sfu"
	"github.com/dkeye/Webinar/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// SessionBuilder assembles the controllers of one joined participant
// around the browser connection that asked to join.
type SessionBuilder struct {
	Devices    core.MediaDevices
	Recorders  core.RecorderFactory
	Mixer      core.AudioMixer
	Downloader core.Downloader
	Relays     *sfu.RelayManager
	Policy     app.Policy
	Clock      core.Clock

	UpstreamURL       string
	WebRTC            webrtc.Configuration
	RaiseHandCooldown time.Duration
	Timeslice         time.Duration
	RecordWithMic     bool
	LeavePath         string

	// OnWebinarEnded runs for guests when the host ends the webinar.
	OnWebinarEnded func(sid core.SessionID)
}

func (b *SessionBuilder) Build(ctx context.Context, sid core.SessionID, req app.JoinRequest, ui *Client) (*orch.Orchestrator, error) {
	p := req.Participant
	logger := log.With().Str("sid", string(sid)).Str("room", string(req.Room.Name)).
		Str("participant", string(p.ID)).Logger()

	var (
		transport core.Transport = Offline{SID: sid}
		upstream  *Upstream
	)
	if b.UpstreamURL != "" {
		pub, err := rtc.NewPublisher(b.WebRTC, sid, b.Relays)
		if err != nil {
			return nil, err
		}
		upstream = NewUpstream(b.UpstreamURL, sid, req.Room, p, pub)
		transport = upstream
	}

	media := mediactl.NewStore(b.Devices, transport, ui).WithLogger(logger)

	rec := recording.NewEngine(b.Devices, b.Recorders, b.Mixer, b.Downloader, ui).WithLogger(logger)
	rec.Host = p.Role.IsHost()
	rec.Room = string(req.Room.Name)
	rec.Participant = p.DisplayName
	if b.Timeslice > 0 {
		rec.Timeslice = b.Timeslice
	}
	if b.Clock != nil {
		rec.Clock = b.Clock
	}

	o := &orch.Orchestrator{
		Participant:   p,
		Room:          req.Room,
		Media:         media,
		Fullscreen:    fullscreen.NewController(ui),
		Recording:     rec,
		RaiseHand:     raisehand.NewThrottle(transport, b.Clock, b.RaiseHandCooldown),
		Producers:     producers.NewRegistry(p.ID, p.Role.IsHost(), media),
		Transport:     transport,
		Navigator:     ui,
		Notifier:      ui,
		Whiteboard:    ui.NewModal("whiteboard"),
		Policy:        b.Policy,
		LeavePath:     b.LeavePath,
		RecordWithMic: b.RecordWithMic,
	}
	o.Fullscreen.OnChange(func(bool) { ui.PushState(o.Snapshot()) })

	if upstream != nil {
		upstream.Producers = o.Producers
		upstream.OnProducersChanged = func() { ui.PushState(o.Snapshot()) }
		upstream.OnWebinarEnded = func() {
			if b.OnWebinarEnded != nil {
				b.OnWebinarEnded(sid)
			}
		}
		if err := upstream.Connect(ctx); err != nil {
			o.Close()
			return nil, err
		}
	}
	return o, nil
}
