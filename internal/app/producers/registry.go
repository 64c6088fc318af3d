// Package producers tracks what every participant publishes and decides
// which feed a tile renders.
package producers

import (
	"slices"
	"sync"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/rs/zerolog/log"
)

// Producer is one published track. At most one exists per (owner, kind).
type Producer struct {
	Kind    domain.Kind          `json:"kind"`
	TrackID string               `json:"trackId"`
	OwnerID domain.ParticipantID `json:"ownerId"`
	Track   core.Track           `json:"-"`
}

// Registry mirrors the producers announced by the upstream transport.
// It holds no renegotiation logic of its own: every add or remove frame
// replaces the corresponding entry as-is.
type Registry struct {
	mu        sync.RWMutex
	producers map[domain.ParticipantID]map[domain.Kind]Producer

	// Local is the local participant; its state is read from Media instead
	// of the announced producers.
	Local  domain.ParticipantID
	IsHost bool
	Media  core.LocalMedia
}

func NewRegistry(local domain.ParticipantID, isHost bool, media core.LocalMedia) *Registry {
	return &Registry{
		producers: make(map[domain.ParticipantID]map[domain.Kind]Producer),
		Local:     local,
		IsHost:    isHost,
		Media:     media,
	}
}

// Add stores p, replacing any producer of the same kind for the same owner.
func (r *Registry) Add(p Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byKind, ok := r.producers[p.OwnerID]
	if !ok {
		byKind = make(map[domain.Kind]Producer, len(domain.Kinds))
		r.producers[p.OwnerID] = byKind
	}
	if old, ok := byKind[p.Kind]; ok && old.TrackID != p.TrackID {
		log.Debug().Str("module", "app.producers").Str("participant", string(p.OwnerID)).
			Str("kind", string(p.Kind)).Str("replaced", old.TrackID).Msg("producer replaced")
	}
	byKind[p.Kind] = p
}

func (r *Registry) Remove(owner domain.ParticipantID, kind domain.Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	byKind, ok := r.producers[owner]
	if !ok {
		return false
	}
	if _, ok := byKind[kind]; !ok {
		return false
	}
	delete(byKind, kind)
	if len(byKind) == 0 {
		delete(r.producers, owner)
	}
	return true
}

func (r *Registry) RemoveParticipant(owner domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.producers, owner)
}

func (r *Registry) Get(owner domain.ParticipantID, kind domain.Kind) (Producer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.producers[owner][kind]
	return p, ok
}

// Status reports the published kinds of owner.
func (r *Registry) Status(owner domain.ParticipantID) domain.ParticipantMediaState {
	if r.isLocal(owner) {
		return domain.ParticipantMediaState{ParticipantID: owner, MediaStatus: r.Media.Status()}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := domain.ParticipantMediaState{ParticipantID: owner}
	for kind := range r.producers[owner] {
		st.Set(kind, true)
	}
	return st
}

// Participants lists remote participants with at least one producer, sorted by id.
func (r *Registry) Participants() []domain.ParticipantMediaState {
	r.mu.RLock()
	ids := make([]domain.ParticipantID, 0, len(r.producers))
	for id := range r.producers {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	out := make([]domain.ParticipantMediaState, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.Status(id))
	}
	return out
}

func (r *Registry) isLocal(owner domain.ParticipantID) bool {
	return r.Media != nil && owner == r.Local
}

// Clear forgets every announced producer.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.producers)
}
