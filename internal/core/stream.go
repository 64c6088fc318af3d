package core

import (
	"sync"

	"github.com/google/uuid"
)

// MediaStream groups tracks acquired together or assembled for recording.
type MediaStream struct {
	id string

	mu     sync.RWMutex
	tracks []Track
}

func NewMediaStream(tracks ...Track) *MediaStream {
	return &MediaStream{id: uuid.NewString(), tracks: tracks}
}

func (s *MediaStream) ID() string { return s.id }

func (s *MediaStream) AddTrack(t Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, t)
}

func (s *MediaStream) Tracks() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *MediaStream) VideoTracks() []Track { return s.ofKind(TrackKindVideo) }
func (s *MediaStream) AudioTracks() []Track { return s.ofKind(TrackKindAudio) }

func (s *MediaStream) ofKind(k TrackKind) []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Track
	for _, t := range s.tracks {
		if t.Kind() == k {
			out = append(out, t)
		}
	}
	return out
}

// Stop stops every track in the stream.
func (s *MediaStream) Stop() {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
