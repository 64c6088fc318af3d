// Package recording captures the screen, optionally mixed with the
// microphone, and hands the finished recording to a download sink.
package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultTimeslice = time.Second

var ErrEmptyRecording = errors.New("empty recording")

type StartOptions struct {
	MicAudioRequired bool
}

type Engine struct {
	Devices    core.MediaDevices
	Recorders  core.RecorderFactory
	Mixer      core.AudioMixer
	Downloader core.Downloader
	Notifier   core.Notifier
	Clock      core.Clock

	Host        bool
	Room        string
	Participant string
	Timeslice   time.Duration

	state atomic.Int32

	mu      sync.Mutex
	session *session
	closed  bool

	logger zerolog.Logger
}

func NewEngine(devices core.MediaDevices, recorders core.RecorderFactory, mixer core.AudioMixer, downloader core.Downloader, notifier core.Notifier) *Engine {
	return &Engine{
		Devices:    devices,
		Recorders:  recorders,
		Mixer:      mixer,
		Downloader: downloader,
		Notifier:   notifier,
		Clock:      core.SystemClock{},
		Timeslice:  DefaultTimeslice,
		logger:     log.With().Str("module", "app.recording").Logger(),
	}
}

func (e *Engine) WithLogger(l zerolog.Logger) *Engine {
	e.logger = l.With().Str("module", "app.recording").Logger()
	return e
}

func (e *Engine) State() domain.RecordingState {
	return domain.RecordingState(e.state.Load())
}

func (e *Engine) Snapshot() domain.RecordingInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	info := domain.RecordingInfo{State: e.State()}
	if s := e.session; s != nil {
		info.MimeType = s.mimeType
		info.Chunks = s.chunkCount()
		started := s.startedAt
		info.StartedAt = &started
	}
	return info
}

// Start acquires display capture and starts recording. Only the host may
// record and only one recording runs at a time.
func (e *Engine) Start(ctx context.Context, opts StartOptions) error {
	if !e.Host {
		return domain.ErrNotHost
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if !e.state.CompareAndSwap(int32(domain.RecordingIdle), int32(domain.RecordingAcquiring)) {
		e.mu.Unlock()
		return domain.ErrRecordingBusy
	}
	e.mu.Unlock()

	s := newSession()
	video, err := e.acquire(ctx, s, opts)
	if err != nil {
		if s.recorder != nil {
			_ = s.recorder.Stop()
		}
		s.release()
		e.state.Store(int32(domain.RecordingIdle))
		close(s.done)
		return e.fail(err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		_ = s.recorder.Stop()
		s.release()
		e.state.Store(int32(domain.RecordingIdle))
		close(s.done)
		return domain.ErrSessionClosed
	}
	e.session = s
	e.state.Store(int32(domain.RecordingRecording))
	e.mu.Unlock()

	video.OnEnded(func() { e.endedExternally(s) })
	if video.ReadyState() == core.ReadyStateEnded {
		e.endedExternally(s)
		return nil
	}

	e.logger.Info().Str("mime", s.mimeType).Int("tracks", len(s.composite.Tracks())).Msg("recording started")
	return nil
}

func (e *Engine) acquire(ctx context.Context, s *session, opts StartOptions) (core.Track, error) {
	display, err := e.Devices.GetDisplayMedia(ctx, core.DisplayMediaOptions{Audio: true})
	s.display = display
	if err != nil {
		return nil, fmt.Errorf("display capture: %w", err)
	}
	videos := display.VideoTracks()
	if len(videos) == 0 {
		return nil, fmt.Errorf("display capture: no video track: %w", domain.ErrDeviceUnavailable)
	}
	video := videos[0]

	var sources []core.Track
	if a := display.AudioTracks(); len(a) > 0 {
		sources = append(sources, a[0])
	}
	if opts.MicAudioRequired {
		mic, err := e.Devices.GetUserMedia(ctx, core.UserMediaOptions{Audio: true})
		s.mic = mic
		switch {
		case err != nil:
			e.logger.Warn().Err(err).Msg("microphone unavailable, recording without it")
		case len(mic.AudioTracks()) == 0:
			e.logger.Warn().Msg("microphone stream has no audio track")
		default:
			sources = append(sources, mic.AudioTracks()[0])
		}
	}

	composite := core.NewMediaStream(video)
	switch len(sources) {
	case 0:
	case 1:
		composite.AddTrack(sources[0])
	default:
		node, err := e.Mixer.Mix(sources...)
		if err != nil {
			return nil, fmt.Errorf("mix audio: %w", err)
		}
		s.mix = node
		composite.AddTrack(node.Output())
	}
	s.composite = composite

	rec, err := e.Recorders.NewRecorder(composite)
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	s.recorder = rec
	s.mimeType = rec.MimeType()
	s.startedAt = e.Clock.Now()
	rec.OnDataAvailable(s.append)

	slice := e.Timeslice
	if slice <= 0 {
		slice = DefaultTimeslice
	}
	if err := rec.Start(slice); err != nil {
		return nil, fmt.Errorf("recorder start: %w", err)
	}
	return video, nil
}

// Stop finalizes the running recording. Calling it again, or while no
// recording runs, is a no-op; a concurrent call waits for the first to finish.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()
	if s == nil {
		return nil
	}
	return e.finish(ctx, s)
}

func (e *Engine) finish(ctx context.Context, s *session) error {
	e.mu.Lock()
	if e.session != s || !e.state.CompareAndSwap(int32(domain.RecordingRecording), int32(domain.RecordingStopping)) {
		e.mu.Unlock()
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}
	e.mu.Unlock()

	defer func() {
		s.release()
		e.mu.Lock()
		e.session = nil
		e.state.Store(int32(domain.RecordingIdle))
		e.mu.Unlock()
		close(s.done)
		e.logger.Info().Msg("recording stopped")
	}()

	if err := s.recorder.Stop(); err != nil {
		e.logger.Warn().Err(err).Msg("recorder stop")
	}

	blob := s.blob()
	if len(blob) == 0 {
		return e.fail(ErrEmptyRecording)
	}
	name, err := Filename(e.Room, e.Participant, s.startedAt, s.mimeType)
	if err != nil {
		return e.fail(fmt.Errorf("recording filename: %w", err))
	}
	if err := e.Downloader.Download(ctx, name, s.mimeType, blob); err != nil {
		return e.fail(fmt.Errorf("download %s: %w", name, err))
	}
	e.logger.Info().Str("file", name).Int("bytes", len(blob)).Msg("recording saved")
	return nil
}

// endedExternally runs the regular stop path when the user ends the
// capture from outside (the browser's "stop sharing" control).
func (e *Engine) endedExternally(s *session) {
	e.mu.Lock()
	live := e.session == s && e.State() == domain.RecordingRecording
	e.mu.Unlock()
	if !live {
		return
	}
	e.logger.Info().Err(domain.ErrTrackEndedExternally).Msg("display capture ended, finalizing")
	_ = e.finish(context.Background(), s)
}

// Toggle starts when idle and stops when recording.
func (e *Engine) Toggle(ctx context.Context, opts StartOptions) error {
	if e.State() == domain.RecordingIdle {
		return e.Start(ctx, opts)
	}
	return e.Stop(ctx)
}

// Close finalizes any running recording and refuses further starts.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	_ = e.Stop(context.Background())
}

func (e *Engine) fail(err error) error {
	e.logger.Warn().Err(err).Msg("recording failed")
	if e.Notifier != nil && !errors.Is(err, context.Canceled) {
		e.Notifier.Notify(domain.NewAlert(err))
	}
	return err
}
