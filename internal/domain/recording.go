package domain

import "time"

type RecordingState int32

const (
	RecordingIdle RecordingState = iota
	RecordingAcquiring
	RecordingRecording
	RecordingStopping
)

func (s RecordingState) String() string {
	switch s {
	case RecordingIdle:
		return "IDLE"
	case RecordingAcquiring:
		return "ACQUIRING"
	case RecordingRecording:
		return "RECORDING"
	case RecordingStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

func (s RecordingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RecordingInfo is the rendering view of the current recording session.
type RecordingInfo struct {
	State     RecordingState `json:"state"`
	MimeType  string         `json:"mimeType,omitempty"`
	Chunks    int            `json:"chunks"`
	StartedAt *time.Time     `json:"startedAt,omitempty"`
}

// RaiseHandCooldown is non-nil ExpiresAt only while the cooldown is active.
type RaiseHandCooldown struct {
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
