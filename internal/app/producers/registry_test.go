package producers

import (
	"testing"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/core/coretest"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type localMedia struct {
	status domain.MediaStatus
	tracks map[domain.Kind]core.Track
}

func (l *localMedia) Status() domain.MediaStatus { return l.status }

func (l *localMedia) Track(k domain.Kind) (core.Track, bool) {
	t, ok := l.tracks[k]
	return t, ok
}

func (l *localMedia) turnOn(k domain.Kind) {
	if l.tracks == nil {
		l.tracks = make(map[domain.Kind]core.Track)
	}
	if k == domain.KindAudio {
		l.tracks[k] = coretest.NewAudio(string(k))
	} else {
		l.tracks[k] = coretest.NewVideo(string(k))
	}
	l.status.Set(k, true)
}

func TestIsSecondaryScreenTruthTable(t *testing.T) {
	for i := range 32 {
		isHost, lv, ls, rv, rs := i&16 != 0, i&8 != 0, i&4 != 0, i&2 != 0, i&1 != 0
		want := (isHost && lv && ls) || (!isHost && rv && rs)
		assert.Equal(t, want, IsSecondaryScreen(isHost, lv, ls, rv, rs),
			"host=%v lv=%v ls=%v rv=%v rs=%v", isHost, lv, ls, rv, rs)
	}
}

func TestAddReplacesSameKind(t *testing.T) {
	r := NewRegistry("me", true, &localMedia{})
	r.Add(Producer{Kind: domain.KindVideo, TrackID: "v1", OwnerID: "bob"})
	r.Add(Producer{Kind: domain.KindVideo, TrackID: "v2", OwnerID: "bob"})

	p, ok := r.Get("bob", domain.KindVideo)
	require.True(t, ok)
	assert.Equal(t, "v2", p.TrackID)
	assert.Equal(t, []domain.ParticipantMediaState{
		{ParticipantID: "bob", MediaStatus: domain.MediaStatus{IsVideo: true}},
	}, r.Participants())
}

func TestRemove(t *testing.T) {
	r := NewRegistry("me", false, &localMedia{})
	r.Add(Producer{Kind: domain.KindAudio, TrackID: "a", OwnerID: "bob"})
	r.Add(Producer{Kind: domain.KindScreen, TrackID: "s", OwnerID: "bob"})

	assert.True(t, r.Remove("bob", domain.KindAudio))
	assert.False(t, r.Remove("bob", domain.KindAudio))
	assert.Equal(t, domain.MediaStatus{IsScreen: true}, r.Status("bob").MediaStatus)

	r.RemoveParticipant("bob")
	assert.Empty(t, r.Participants())
}

func TestResolvePrimaryPriority(t *testing.T) {
	r := NewRegistry("me", false, &localMedia{})
	assert.Equal(t, SourceAvatar, r.ResolvePrimary("bob").Source)

	r.Add(Producer{Kind: domain.KindAudio, TrackID: "a", OwnerID: "bob"})
	assert.Equal(t, SourceAvatar, r.ResolvePrimary("bob").Source)

	r.Add(Producer{Kind: domain.KindVideo, TrackID: "v", OwnerID: "bob"})
	assert.Equal(t, Feed{Source: SourceVideo, TrackID: "v"}, r.ResolvePrimary("bob"))

	r.Add(Producer{Kind: domain.KindScreen, TrackID: "s", OwnerID: "bob"})
	assert.Equal(t, Feed{Source: SourceScreen, TrackID: "s"}, r.ResolvePrimary("bob"))
}

func TestResolveSecondaryRemote(t *testing.T) {
	r := NewRegistry("me", true, &localMedia{})
	r.Add(Producer{Kind: domain.KindScreen, TrackID: "s", OwnerID: "bob"})
	_, ok := r.ResolveSecondary("bob")
	assert.False(t, ok)

	r.Add(Producer{Kind: domain.KindVideo, TrackID: "v", OwnerID: "bob"})
	f, ok := r.ResolveSecondary("bob")
	require.True(t, ok)
	assert.Equal(t, Feed{Source: SourceVideo, TrackID: "v"}, f)
}

func TestResolveSecondaryLocalHostIsMirroredCamera(t *testing.T) {
	media := &localMedia{}
	r := NewRegistry("me", true, media)

	media.turnOn(domain.KindScreen)
	_, ok := r.ResolveSecondary("me")
	assert.False(t, ok)

	media.turnOn(domain.KindVideo)
	primary := r.ResolvePrimary("me")
	assert.Equal(t, SourceScreen, primary.Source)
	assert.False(t, primary.Mirrored)

	f, ok := r.ResolveSecondary("me")
	require.True(t, ok)
	assert.True(t, f.Mirrored)
	assert.Equal(t, media.tracks[domain.KindVideo].ID(), f.TrackID)
}

func TestLocalGuestHasNoSecondary(t *testing.T) {
	media := &localMedia{}
	media.turnOn(domain.KindScreen)
	media.turnOn(domain.KindVideo)
	r := NewRegistry("me", false, media)

	_, ok := r.ResolveSecondary("me")
	assert.False(t, ok)
}

func TestRegistryReadsLiveStoreState(t *testing.T) {
	media := &localMedia{}
	r := NewRegistry("me", true, media)
	assert.Equal(t, domain.MediaStatus{}, r.Status("me").MediaStatus)

	media.turnOn(domain.KindAudio)
	assert.True(t, r.Status("me").IsAudio)
}
