package producers

import (
	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
)

type Source string

const (
	SourceScreen Source = "screen"
	SourceVideo  Source = "video"
	SourceAvatar Source = "avatar"
)

// Feed is what a tile renders. Track is nil for the avatar placeholder and
// for remote producers announced without a local track reference.
type Feed struct {
	Source   Source     `json:"source"`
	TrackID  string     `json:"trackId,omitempty"`
	Mirrored bool       `json:"mirrored"`
	Track    core.Track `json:"-"`
}

// ResolvePrimary picks screen, then video, then the avatar placeholder.
func (r *Registry) ResolvePrimary(owner domain.ParticipantID) Feed {
	for _, k := range []domain.Kind{domain.KindScreen, domain.KindVideo} {
		if f, ok := r.feed(owner, k); ok {
			return f
		}
	}
	return Feed{Source: SourceAvatar}
}

// ResolveSecondary returns the picture-in-picture camera feed when the tile
// shows a screen and the same participant also has a camera on.
func (r *Registry) ResolveSecondary(owner domain.ParticipantID) (Feed, bool) {
	local := r.isLocal(owner)
	var st domain.MediaStatus
	if local {
		st = r.Media.Status()
	} else {
		st = r.Status(owner).MediaStatus
	}
	localHost := local && r.IsHost
	if !IsSecondaryScreen(localHost, st.IsVideo, st.IsScreen, !local && st.IsVideo, !local && st.IsScreen) {
		return Feed{}, false
	}
	f, ok := r.feed(owner, domain.KindVideo)
	if !ok {
		return Feed{}, false
	}
	f.Mirrored = localHost
	return f, true
}

// IsSecondaryScreen is true iff a host has both local camera and screen on,
// or a remote participant publishes both video and screen.
func IsSecondaryScreen(isHost, localVideo, localScreen, remoteVideo, remoteScreen bool) bool {
	if isHost {
		return localVideo && localScreen
	}
	return remoteVideo && remoteScreen
}

func (r *Registry) feed(owner domain.ParticipantID, kind domain.Kind) (Feed, bool) {
	src := SourceVideo
	if kind == domain.KindScreen {
		src = SourceScreen
	}
	if r.isLocal(owner) {
		t, ok := r.Media.Track(kind)
		if !ok {
			return Feed{}, false
		}
		return Feed{Source: src, TrackID: t.ID(), Track: t}, true
	}
	p, ok := r.Get(owner, kind)
	if !ok {
		return Feed{}, false
	}
	return Feed{Source: src, TrackID: p.TrackID, Track: p.Track}, true
}
