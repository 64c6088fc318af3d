package sfu

import (
	"context"
	"sync"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/rs/zerolog/log"
)

// RelayManager keeps at most one relay per source track.
type RelayManager struct {
	mu     sync.RWMutex
	relays map[string]*Relay
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays: make(map[string]*Relay),
	}
}

// AddSink attaches sink to the relay of src, starting the relay on first use.
func (m *RelayManager) AddSink(ctx context.Context, src core.RTPTrack, sinkID string, sink RTPWriter) *OutTrack {
	ot := NewOutTrack(sink)

	m.mu.Lock()
	relay, ok := m.relays[src.ID()]
	if !ok {
		relayCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		relay = NewRelay(src, cancel)
		m.relays[src.ID()] = relay

		logger := log.With().
			Str("module", "relay").
			Str("track", src.ID()).
			Logger()
		logger.Info().Msg("starting relay loop")
		go func() {
			relay.loop(relayCtx, &logger)
			m.forget(src.ID(), relay)
		}()
	}
	relay.AddOutTrack(sinkID, ot)
	m.mu.Unlock()
	return ot
}

// RemoveSink detaches a sink and stops the relay once it has none left.
func (m *RelayManager) RemoveSink(trackID, sinkID string) {
	m.mu.Lock()
	relay, ok := m.relays[trackID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if relay.removeOutTrack(sinkID) == 0 {
		delete(m.relays, trackID)
		m.mu.Unlock()
		relay.cancel()
		return
	}
	m.mu.Unlock()
}

// StopRelay stops a relay and removes it from the manager.
func (m *RelayManager) StopRelay(trackID string) {
	m.mu.Lock()
	relay, ok := m.relays[trackID]
	if ok {
		delete(m.relays, trackID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	relay.markAllDelete()
	relay.cancel()
}

// HasRelay reports whether a relay exists for the track.
func (m *RelayManager) HasRelay(trackID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[trackID]
	return ok
}

func (m *RelayManager) forget(trackID string, relay *Relay) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.relays[trackID] == relay {
		delete(m.relays, trackID)
	}
}
