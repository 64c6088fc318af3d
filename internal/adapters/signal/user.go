package signal

import (
	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
)

func (ctl *SignalWSController) handleWhoAmI(
	sid core.SessionID,
	client *Client,
) {
	resp := struct {
		Type        string               `json:"type"`
		Participant *domain.Participant  `json:"participant,omitempty"`
		Room        *domain.Room         `json:"room,omitempty"`
		State       *domain.ToolbarState `json:"state,omitempty"`
	}{
		Type: "whoami",
	}
	if o, ok := ctl.Sessions.Get(sid); ok {
		state := o.Snapshot()
		resp.Participant = &o.Participant
		resp.Room = &o.Room
		resp.State = &state
	}
	client.sendJSON(resp)
}
