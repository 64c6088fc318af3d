package core

import (
	"context"

	"github.com/dkeye/Webinar/internal/domain"
)

// Transport is the upstream publishing and signaling service. Calls are
// fire-and-forget from the caller's point of view; retries are its own business.
type Transport interface {
	Publish(ctx context.Context, kind domain.Kind, track Track) error
	Unpublish(ctx context.Context, kind domain.Kind) error
	RaiseHand(ctx context.Context) error
	EndWebinar(ctx context.Context) error
}

type Notifier interface {
	Notify(alert domain.Alert)
}

type Navigator interface {
	Navigate(path string)
}

type Modal interface {
	Open()
	Close()
	IsOpen() bool
}

type ModalFactory interface {
	NewModal(name string) Modal
}

// LocalMedia reports what the local participant currently captures.
type LocalMedia interface {
	Status() domain.MediaStatus
	Track(kind domain.Kind) (Track, bool)
}

//go:generate mockgen -source=signal_iface.go -destination=mocks/transport.go -package=mocks -exclude_interfaces=ModalFactory,LocalMedia
