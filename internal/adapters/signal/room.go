package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/Webinar/internal/app"
	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(
	ctx context.Context,
	sid core.SessionID,
	client *Client,
	data []byte,
) {
	type joinPayload struct {
		Type       string `json:"type"`
		Room       string `json:"room"`
		Name       string `json:"name"`
		Role       string `json:"role,omitempty"`
		Fullscreen struct {
			Methods []string `json:"methods"`
			Present bool     `json:"present"`
		} `json:"fullscreen"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		client.sendError("bad_payload")
		return
	}
	if p.Room == "" {
		client.sendError("empty_room")
		return
	}
	role, err := domain.ParseRole(p.Role)
	if err != nil {
		client.sendError("invalid_role")
		return
	}
	participant, err := domain.NewParticipant("", p.Name, role)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("invalid participant")
		client.sendError("invalid_name")
		return
	}

	client.SetFullscreenCapabilities(p.Fullscreen.Methods, p.Fullscreen.Present)

	o, err := ctl.Sessions.Join(ctx, sid, domain.RoomName(p.Room), *participant)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).Msg("join failed")
		client.Notify(domain.NewAlert(err))
		client.sendError("join_failed")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).
		Str("participant", string(participant.ID)).Msg("join")
	client.sendJSON(struct {
		Type        string              `json:"type"`
		Participant domain.Participant  `json:"participant"`
		Room        domain.Room         `json:"room"`
		State       domain.ToolbarState `json:"state"`
	}{
		Type:        "joined",
		Participant: o.Participant,
		Room:        o.Room,
		State:       o.Snapshot(),
	})
}

// handleLeave runs the leave flow; the connection itself stays open.
func (ctl *SignalWSController) handleLeave(
	ctx context.Context,
	sid core.SessionID,
	client *Client,
) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	go func() {
		err := ctl.Sessions.Leave(ctx, sid)
		if errors.Is(err, app.ErrNoSession) {
			client.sendError("not_joined")
			return
		}
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("leave")
		}
		client.sendJSON(map[string]any{
			"type": "left",
		})
	}()
}
