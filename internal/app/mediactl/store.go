// Package mediactl owns the local participant's audio, video and screen capture.
package mediactl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is the per-session media state. Same-kind toggles are serialized by
// an in-flight flag; a toggle arriving while one is outstanding is dropped.
type Store struct {
	Devices   core.MediaDevices
	Transport core.Transport
	Notifier  core.Notifier

	inflight [3]atomic.Bool

	mu     sync.RWMutex
	status domain.MediaStatus
	tracks map[domain.Kind]core.Track
	closed bool

	logger zerolog.Logger
}

func NewStore(devices core.MediaDevices, transport core.Transport, notifier core.Notifier) *Store {
	return &Store{
		Devices:   devices,
		Transport: transport,
		Notifier:  notifier,
		tracks:    make(map[domain.Kind]core.Track),
		logger:    log.With().Str("module", "app.mediactl").Logger(),
	}
}

// WithLogger tags every log line with session ids.
func (s *Store) WithLogger(l zerolog.Logger) *Store {
	s.logger = l.With().Str("module", "app.mediactl").Logger()
	return s
}

func (s *Store) ToggleAudio(ctx context.Context) error  { return s.Toggle(ctx, domain.KindAudio) }
func (s *Store) ToggleVideo(ctx context.Context) error  { return s.Toggle(ctx, domain.KindVideo) }
func (s *Store) ToggleScreen(ctx context.Context) error { return s.Toggle(ctx, domain.KindScreen) }

// Toggle flips one kind. It blocks until the device call settles.
func (s *Store) Toggle(ctx context.Context, kind domain.Kind) error {
	flag := s.flag(kind)
	if flag == nil {
		return fmt.Errorf("toggle: unknown kind %q", kind)
	}
	if !flag.CompareAndSwap(false, true) {
		s.logger.Debug().Err(domain.ErrConcurrentRequestIgnored).Str("kind", string(kind)).Msg("toggle dropped")
		return nil
	}
	defer flag.Store(false)

	s.mu.RLock()
	closed, on := s.closed, s.status.Has(kind)
	s.mu.RUnlock()
	if closed {
		return domain.ErrSessionClosed
	}
	if on {
		s.turnOff(ctx, kind)
		return nil
	}
	return s.turnOn(ctx, kind)
}

// Pending reports whether a toggle for kind is outstanding.
func (s *Store) Pending(kind domain.Kind) bool {
	if f := s.flag(kind); f != nil {
		return f.Load()
	}
	return false
}

func (s *Store) Status() domain.MediaStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) Track(kind domain.Kind) (core.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tracks[kind]
	return t, ok
}

// Close stops every captured track. Safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tracks := s.tracks
	s.tracks = make(map[domain.Kind]core.Track)
	s.status = domain.MediaStatus{}
	s.mu.Unlock()

	for kind, t := range tracks {
		t.Stop()
		s.logger.Info().Str("kind", string(kind)).Str("track", t.ID()).Msg("released on close")
	}
}

func (s *Store) turnOn(ctx context.Context, kind domain.Kind) error {
	if kind == domain.KindScreen {
		// Display sources cannot be swapped in place.
		s.release(kind)
	}

	track, err := s.acquire(ctx, kind)
	if err != nil {
		return s.fail(kind, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		track.Stop()
		return domain.ErrSessionClosed
	}
	s.tracks[kind] = track
	s.status.Set(kind, true)
	s.mu.Unlock()

	if kind == domain.KindScreen {
		track.OnEnded(func() { s.onEndedExternally(kind, track) })
	}

	if err := s.Transport.Publish(ctx, kind, track); err != nil {
		s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("publish failed")
	}
	s.logger.Info().Str("kind", string(kind)).Str("track", track.ID()).Msg("media on")
	return nil
}

func (s *Store) turnOff(ctx context.Context, kind domain.Kind) {
	s.release(kind)
	if err := s.Transport.Unpublish(ctx, kind); err != nil {
		s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("unpublish failed")
	}
	s.logger.Info().Str("kind", string(kind)).Msg("media off")
}

func (s *Store) release(kind domain.Kind) {
	s.mu.Lock()
	t, ok := s.tracks[kind]
	delete(s.tracks, kind)
	s.status.Set(kind, false)
	s.mu.Unlock()
	if ok {
		t.Stop()
	}
}

func (s *Store) acquire(ctx context.Context, kind domain.Kind) (core.Track, error) {
	var (
		stream *core.MediaStream
		err    error
		want   core.TrackKind
	)
	switch kind {
	case domain.KindAudio:
		want = core.TrackKindAudio
		stream, err = s.Devices.GetUserMedia(ctx, core.UserMediaOptions{Audio: true})
	case domain.KindVideo:
		want = core.TrackKindVideo
		stream, err = s.Devices.GetUserMedia(ctx, core.UserMediaOptions{Video: true})
	case domain.KindScreen:
		want = core.TrackKindVideo
		stream, err = s.Devices.GetDisplayMedia(ctx, core.DisplayMediaOptions{})
	}
	if err != nil {
		if stream != nil {
			stream.Stop()
		}
		return nil, err
	}
	if stream == nil {
		return nil, fmt.Errorf("%s: empty stream: %w", kind, domain.ErrDeviceUnavailable)
	}

	var picked core.Track
	for _, t := range stream.Tracks() {
		if picked == nil && t.Kind() == want && t.ReadyState() == core.ReadyStateLive {
			picked = t
			continue
		}
		t.Stop()
	}
	if picked == nil {
		return nil, fmt.Errorf("%s: no %s track: %w", kind, want, domain.ErrDeviceUnavailable)
	}
	return picked, nil
}

func (s *Store) onEndedExternally(kind domain.Kind, track core.Track) {
	s.mu.Lock()
	current, ok := s.tracks[kind]
	if !ok || current != track {
		s.mu.Unlock()
		return
	}
	delete(s.tracks, kind)
	s.status.Set(kind, false)
	s.mu.Unlock()

	s.logger.Info().Err(domain.ErrTrackEndedExternally).Str("kind", string(kind)).Msg("media ended by source")
	if err := s.Transport.Unpublish(context.Background(), kind); err != nil {
		s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("unpublish failed")
	}
}

func (s *Store) fail(kind domain.Kind, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("media request failed")
	if s.Notifier != nil {
		s.Notifier.Notify(domain.NewAlert(err))
	}
	return err
}

func (s *Store) flag(kind domain.Kind) *atomic.Bool {
	switch kind {
	case domain.KindAudio:
		return &s.inflight[0]
	case domain.KindVideo:
		return &s.inflight[1]
	case domain.KindScreen:
		return &s.inflight[2]
	}
	return nil
}
