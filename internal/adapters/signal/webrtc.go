package signal

import (
	"context"
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

func (u *Upstream) sendCandidate(ci webrtc.ICECandidateInit) {
	resp := struct {
		Type          string `json:"type"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid,omitempty"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
	}{
		Type:      "candidate",
		Candidate: ci.Candidate,
	}
	if ci.SDPMid != nil {
		resp.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		resp.SDPMLineIndex = *ci.SDPMLineIndex
	}
	if err := u.send(resp); err != nil {
		u.logger.Debug().Err(err).Msg("send candidate")
	}
}

// negotiate sends a fresh offer after the set of published tracks changed.
func (u *Upstream) negotiate(ctx context.Context) error {
	if u.Publisher == nil {
		return nil
	}
	offer, err := u.Publisher.CreateOffer(ctx)
	if err != nil {
		u.logger.Error().Err(err).Msg("create offer")
		return err
	}
	return u.send(map[string]string{
		"type": "offer",
		"sdp":  offer.SDP,
	})
}

func (u *Upstream) handleAnswer(data []byte) {
	type answerPayload struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}
	var p answerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		u.logger.Error().Err(err).Msg("bad answer payload")
		return
	}
	if u.Publisher == nil {
		return
	}
	answer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  p.SDP,
	}
	if err := u.Publisher.ApplyAnswer(answer); err != nil {
		u.logger.Error().Err(err).Msg("apply answer")
	}
}

func (u *Upstream) handleCandidate(data []byte) {
	type candidatePayload struct {
		Type          string `json:"type"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex"`
	}
	var p candidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		u.logger.Error().Err(err).Msg("bad candidate payload")
		return
	}
	if u.Publisher == nil {
		return
	}

	cand := webrtc.ICECandidateInit{
		Candidate: p.Candidate,
	}
	if p.SDPMid != "" {
		cand.SDPMid = &p.SDPMid
	}
	cand.SDPMLineIndex = &p.SDPMLineIndex

	if err := u.Publisher.AddICECandidate(cand); err != nil {
		u.logger.Error().Err(err).Msg("add ice candidate")
	}
}
