package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handlePing(
	client *Client,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	client.sendJSON(resp)
}

// handleIntent runs the intent off the read loop: fullscreen transitions
// wait for fullscreenchange messages that arrive on this same connection.
func (ctl *SignalWSController) handleIntent(
	ctx context.Context,
	sid core.SessionID,
	client *Client,
	data []byte,
) {
	type intentPayload struct {
		Type   string `json:"type"`
		Intent string `json:"intent"`
	}
	var p intentPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad intent payload")
		client.sendError("bad_payload")
		return
	}
	intent, err := domain.ParseIntent(p.Intent)
	if err != nil {
		client.sendError("unknown_intent")
		return
	}
	if intent == domain.IntentLeave {
		ctl.handleLeave(ctx, sid, client)
		return
	}
	o, ok := ctl.Sessions.Get(sid)
	if !ok {
		client.sendError("not_joined")
		return
	}

	go func() {
		err := o.Dispatch(ctx, intent)
		resp := struct {
			Type   string        `json:"type"`
			Intent domain.Intent `json:"intent"`
			Error  string        `json:"error,omitempty"`
		}{Type: "intent_result", Intent: intent}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("intent", string(intent)).Msg("intent failed")
			resp.Error = string(domain.Classify(err))
		}
		client.sendJSON(resp)
		client.PushState(o.Snapshot())
	}()
}

func (ctl *SignalWSController) handleFullscreenChange(
	client *Client,
	data []byte,
) {
	type changePayload struct {
		Type    string `json:"type"`
		Event   string `json:"event"`
		Present bool   `json:"present"`
	}
	var p changePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad fullscreenchange payload")
		return
	}
	if p.Event == "" {
		p.Event = "fullscreenchange"
	}
	client.FullscreenChanged(p.Event, p.Present)
}
