package sfu

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateDelete
)

// RTPWriter is anything packets can be forwarded to: a local WebRTC track
// or a container writer.
type RTPWriter interface {
	WriteRTP(pkt *rtp.Packet) error
}

// OutTrack is one sink attached to a relay.
type OutTrack struct {
	Sink  RTPWriter
	state atomic.Int32 // Zero by default (TrackStateOk)
}

func NewOutTrack(sink RTPWriter) *OutTrack {
	return &OutTrack{Sink: sink}
}

func (ot *OutTrack) GetState() TrackState {
	return TrackState(ot.state.Load())
}

func (ot *OutTrack) MarkOk() {
	ot.state.Store(int32(TrackStateOk))
}

func (ot *OutTrack) MarkMuted() {
	ot.state.Store(int32(TrackStateMuted))
}

func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}
