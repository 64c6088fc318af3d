package domain

import "fmt"

// Kind is the kind of media a participant can publish.
type Kind string

const (
	KindAudio  Kind = "audio"
	KindVideo  Kind = "video"
	KindScreen Kind = "screen"
)

// Kinds lists every publishable kind in a stable order.
var Kinds = []Kind{KindAudio, KindVideo, KindScreen}

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindAudio, KindVideo, KindScreen:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

// MediaStatus is the read-only shape consumed by rendering code.
type MediaStatus struct {
	IsAudio  bool `json:"isAudio"`
	IsVideo  bool `json:"isVideo"`
	IsScreen bool `json:"isScreen"`
}

func (s MediaStatus) Has(k Kind) bool {
	switch k {
	case KindAudio:
		return s.IsAudio
	case KindVideo:
		return s.IsVideo
	case KindScreen:
		return s.IsScreen
	}
	return false
}

func (s *MediaStatus) Set(k Kind, on bool) {
	switch k {
	case KindAudio:
		s.IsAudio = on
	case KindVideo:
		s.IsVideo = on
	case KindScreen:
		s.IsScreen = on
	}
}
