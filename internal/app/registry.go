package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrJoinSuperseded = errors.New("join superseded")
)

// Session is one joined participant's controller set.
type Session interface {
	Leave(ctx context.Context) error
	Close()
}

type JoinRequest struct {
	Room        domain.Room
	Participant domain.Participant
}

type SessionFactory[S Session] func(ctx context.Context, sid core.SessionID, req JoinRequest) (S, error)

type SessionInfo struct {
	SID         core.SessionID     `json:"sid"`
	Room        domain.Room        `json:"room"`
	Participant domain.Participant `json:"participant"`
	JoinedAt    time.Time          `json:"joinedAt"`
}

type sessionEntry[S Session] struct {
	info    SessionInfo
	session S
	cancel  context.CancelFunc
}

// SessionManager owns one session per client token. Sessions are created on
// join and torn down on leave; nothing is shared between them.
type SessionManager[S Session] struct {
	factory SessionFactory[S]
	rooms   *RoomManager

	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry[S]
	// joins holds the ticket of the newest join in flight per client.
	joins map[core.SessionID]uint64
	seq   uint64
}

func NewSessionManager[S Session](factory SessionFactory[S], rooms *RoomManager) *SessionManager[S] {
	return &SessionManager[S]{
		factory:  factory,
		rooms:    rooms,
		sessions: make(map[core.SessionID]*sessionEntry[S]),
		joins:    make(map[core.SessionID]uint64),
	}
}

// Join builds a fresh session for sid. An existing session for the same
// client is closed first. A join that is overtaken by a newer join, a Leave
// or a Close for the same client while the session is being built is torn
// down and fails with ErrJoinSuperseded.
func (m *SessionManager[S]) Join(ctx context.Context, sid core.SessionID, roomName domain.RoomName, p domain.Participant) (S, error) {
	var zero S
	m.Close(sid)

	m.mu.Lock()
	m.seq++
	ticket := m.seq
	m.joins[sid] = ticket
	m.mu.Unlock()

	room := m.rooms.GetOrCreate(roomName)
	sctx, cancel := context.WithCancel(ctx)
	s, err := m.factory(sctx, sid, JoinRequest{Room: room, Participant: p})
	if err != nil {
		cancel()
		m.mu.Lock()
		if m.joins[sid] == ticket {
			delete(m.joins, sid)
		}
		m.mu.Unlock()
		return zero, err
	}

	m.mu.Lock()
	if m.joins[sid] != ticket {
		m.mu.Unlock()
		s.Close()
		cancel()
		log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Msg("stale join discarded")
		return zero, ErrJoinSuperseded
	}
	delete(m.joins, sid)
	prev := m.sessions[sid]
	m.sessions[sid] = &sessionEntry[S]{
		info:    SessionInfo{SID: sid, Room: room, Participant: p, JoinedAt: time.Now().UTC()},
		session: s,
		cancel:  cancel,
	}
	m.mu.Unlock()
	m.rooms.Attach(room.Name)
	if prev != nil {
		m.rooms.Detach(prev.info.Room.Name)
		prev.session.Close()
		prev.cancel()
	}

	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Str("room", string(room.Name)).
		Str("participant", string(p.ID)).Str("role", string(p.Role)).Msg("joined")
	return s, nil
}

func (m *SessionManager[S]) Get(sid core.SessionID) (S, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sid]
	if !ok {
		var zero S
		return zero, false
	}
	return e.session, true
}

func (m *SessionManager[S]) Info(sid core.SessionID) (SessionInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sid]
	if !ok {
		return SessionInfo{}, false
	}
	return e.info, true
}

// Leave runs the role-specific leave flow and forgets the session.
func (m *SessionManager[S]) Leave(ctx context.Context, sid core.SessionID) error {
	e, ok := m.detach(sid)
	if !ok {
		return ErrNoSession
	}
	defer e.cancel()
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Msg("leave")
	return e.session.Leave(ctx)
}

// Close tears a session down without the leave flow (lost connection).
func (m *SessionManager[S]) Close(sid core.SessionID) bool {
	e, ok := m.detach(sid)
	if !ok {
		return false
	}
	e.session.Close()
	e.cancel()
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Msg("closed session")
	return true
}

func (m *SessionManager[S]) CloseAll() {
	m.mu.RLock()
	sids := make([]core.SessionID, 0, len(m.sessions))
	for sid := range m.sessions {
		sids = append(sids, sid)
	}
	m.mu.RUnlock()
	for _, sid := range sids {
		m.Close(sid)
	}
}

func (m *SessionManager[S]) List() []SessionInfo {
	m.mu.RLock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, e := range m.sessions {
		out = append(out, e.info)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b SessionInfo) int { return a.JoinedAt.Compare(b.JoinedAt) })
	return out
}

// detach forgets the session of sid and cancels any join in flight for it.
func (m *SessionManager[S]) detach(sid core.SessionID) (*sessionEntry[S], bool) {
	m.mu.Lock()
	delete(m.joins, sid)
	e, ok := m.sessions[sid]
	if ok {
		delete(m.sessions, sid)
	}
	m.mu.Unlock()
	if ok {
		m.rooms.Detach(e.info.Room.Name)
	}
	return e, ok
}
