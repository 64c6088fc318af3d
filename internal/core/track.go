package core

import (
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// TrackKind reuses the RTP codec type so device and RTP tracks agree on kinds.
type TrackKind = webrtc.RTPCodecType

const (
	TrackKindAudio = webrtc.RTPCodecTypeAudio
	TrackKindVideo = webrtc.RTPCodecTypeVideo
)

type ReadyState int32

const (
	ReadyStateLive ReadyState = iota
	ReadyStateEnded
)

func (s ReadyState) String() string {
	if s == ReadyStateEnded {
		return "ended"
	}
	return "live"
}

// Track is a single captured media track.
//
// Stop ends the track without firing OnEnded handlers. Handlers fire only
// when the source ends on its own (user pressed "stop sharing", device unplugged).
type Track interface {
	ID() string
	Kind() TrackKind
	Label() string
	ReadyState() ReadyState
	Stop()
	OnEnded(fn func())
}

// BaseTrack implements the bookkeeping part of Track. Adapters embed it and
// call End when their source goes away.
type BaseTrack struct {
	id    string
	kind  TrackKind
	label string

	state atomic.Int32

	mu      sync.Mutex
	onEnded []func()
}

func NewBaseTrack(id string, kind TrackKind, label string) *BaseTrack {
	return &BaseTrack{id: id, kind: kind, label: label}
}

func (t *BaseTrack) ID() string      { return t.id }
func (t *BaseTrack) Kind() TrackKind { return t.kind }
func (t *BaseTrack) Label() string   { return t.label }

func (t *BaseTrack) ReadyState() ReadyState {
	return ReadyState(t.state.Load())
}

func (t *BaseTrack) Stop() {
	if t.state.CompareAndSwap(int32(ReadyStateLive), int32(ReadyStateEnded)) {
		t.mu.Lock()
		t.onEnded = nil
		t.mu.Unlock()
	}
}

// End marks the track ended and runs the OnEnded handlers once.
func (t *BaseTrack) End() {
	if !t.state.CompareAndSwap(int32(ReadyStateLive), int32(ReadyStateEnded)) {
		return
	}
	t.mu.Lock()
	handlers := t.onEnded
	t.onEnded = nil
	t.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (t *BaseTrack) OnEnded(fn func()) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ReadyState() == ReadyStateEnded {
		return
	}
	t.onEnded = append(t.onEnded, fn)
}
