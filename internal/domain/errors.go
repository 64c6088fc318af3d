package domain

import (
	"context"
	"errors"
)

var (
	ErrPermissionDenied         = errors.New("permission denied")
	ErrDeviceUnavailable        = errors.New("device unavailable")
	ErrTrackEndedExternally     = errors.New("track ended externally")
	ErrUnsupportedBrowser       = errors.New("unsupported browser")
	ErrConcurrentRequestIgnored = errors.New("concurrent request ignored")

	ErrNotHost       = errors.New("host only")
	ErrRecordingBusy = errors.New("recording already in progress")
	ErrSessionClosed = errors.New("session closed")
)

type AlertKind string

const (
	AlertPermissionDenied   AlertKind = "permission_denied"
	AlertDeviceUnavailable  AlertKind = "device_unavailable"
	AlertUnsupportedBrowser AlertKind = "unsupported_browser"
	AlertTrackEnded         AlertKind = "track_ended"
	AlertForbidden          AlertKind = "forbidden"
	AlertError              AlertKind = "error"
)

// Alert is what the notification dispatcher shows to the user.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
}

// Classify maps an error onto the alert taxonomy.
func Classify(err error) AlertKind {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return AlertPermissionDenied
	case errors.Is(err, ErrDeviceUnavailable), errors.Is(err, context.DeadlineExceeded):
		return AlertDeviceUnavailable
	case errors.Is(err, ErrUnsupportedBrowser):
		return AlertUnsupportedBrowser
	case errors.Is(err, ErrTrackEndedExternally):
		return AlertTrackEnded
	case errors.Is(err, ErrNotHost):
		return AlertForbidden
	default:
		return AlertError
	}
}

func NewAlert(err error) Alert {
	return Alert{Kind: Classify(err), Message: err.Error()}
}
