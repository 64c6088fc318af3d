// Package recorder writes a recording stream into a container and hands
// it out in timeslice-sized chunks.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dkeye/Webinar/internal/app/sfu"
	"github.com/dkeye/Webinar/internal/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoRTPSource     = errors.New("recorder: stream has no rtp track")
	ErrNoAudioEncoder  = errors.New("recorder: no encoder for raw audio")
	ErrAlreadyStarted  = errors.New("recorder: already started")
	ErrRecorderStopped = errors.New("recorder: stopped")
)

// Factory creates recorders that tap source tracks through the relay manager.
// Encoder turns raw PCM tracks, such as a mixer output, into Opus.
type Factory struct {
	Relays  *sfu.RelayManager
	Encoder core.AudioEncoder
}

func NewFactory(relays *sfu.RelayManager, encoder core.AudioEncoder) *Factory {
	return &Factory{Relays: relays, Encoder: encoder}
}

// NewRecorder records the first live video track together with the first
// live audio track. A VP8 or VP9 video with audio is muxed into WebM; a
// single video goes into IVF or raw H.264 and a single audio into Ogg.
func (f *Factory) NewRecorder(stream *core.MediaStream) (core.MediaRecorder, error) {
	video := pick(stream.VideoTracks())
	audio, encoded, err := f.audioSource(stream.AudioTracks())
	if err != nil {
		return nil, err
	}
	if video == nil && audio == nil {
		return nil, ErrNoRTPSource
	}

	mime := containerMime(video, audio)
	if mime == "" {
		if encoded != nil {
			encoded.Stop()
		}
		return nil, fmt.Errorf("%s: %w", codecNames(video, audio), ErrMediaNotSupported)
	}

	id := uuid.NewString()
	r := &Recorder{
		relays:  f.Relays,
		id:      "recorder-" + id,
		mime:    mime,
		encoded: encoded,
		logger:  log.With().Str("module", "adapters.recorder").Str("recorder", id).Logger(),
	}
	for _, t := range []core.RTPTrack{video, audio} {
		if t != nil {
			r.sources = append(r.sources, t)
		}
	}
	return r, nil
}

func (f *Factory) audioSource(tracks []core.Track) (src core.RTPTrack, encoded core.RTPTrack, err error) {
	if rt := pick(tracks); rt != nil {
		return rt, nil, nil
	}
	for _, t := range tracks {
		pcm, ok := t.(core.PCMTrack)
		if !ok || t.ReadyState() != core.ReadyStateLive {
			continue
		}
		if f.Encoder == nil {
			return nil, nil, fmt.Errorf("%s: %w", t.ID(), ErrNoAudioEncoder)
		}
		enc, err := f.Encoder.EncodeAudio(pcm)
		if err != nil {
			return nil, nil, fmt.Errorf("encode %s: %w", t.ID(), err)
		}
		return enc, enc, nil
	}
	return nil, nil, nil
}

func pick(tracks []core.Track) core.RTPTrack {
	for _, t := range tracks {
		if rt, ok := t.(core.RTPTrack); ok && t.ReadyState() == core.ReadyStateLive {
			return rt
		}
	}
	return nil
}

func codecNames(video, audio core.RTPTrack) string {
	var names []string
	for _, t := range []core.RTPTrack{video, audio} {
		if t != nil {
			names = append(names, t.Codec().MimeType)
		}
	}
	return fmt.Sprint(names)
}

type Recorder struct {
	relays  *sfu.RelayManager
	id      string
	mime    string
	sources []core.RTPTrack
	encoded core.RTPTrack
	logger  zerolog.Logger
	buf     chunkBuffer

	mu        sync.Mutex
	container container
	onData    func([]byte)
	started   bool
	stopped   bool
	quit      chan struct{}
	done      chan struct{}
}

func (r *Recorder) MimeType() string { return r.mime }

func (r *Recorder) OnDataAvailable(fn func(chunk []byte)) {
	r.mu.Lock()
	r.onData = fn
	r.mu.Unlock()
}

func (r *Recorder) Start(timeslice time.Duration) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return ErrRecorderStopped
	}
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	c, err := openContainer(&r.buf, r.mime, r.video(), r.audio())
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.container = c
	r.started = true
	r.quit = make(chan struct{})
	r.done = make(chan struct{})
	r.mu.Unlock()

	for i, sink := range c.sinks() {
		r.relays.AddSink(context.Background(), r.sources[i], r.sinkID(i), sink)
	}
	go r.flushLoop(timeslice)
	r.logger.Info().Int("tracks", len(r.sources)).Str("mime", r.mime).Dur("timeslice", timeslice).Msg("recording started")
	return nil
}

func (r *Recorder) video() core.RTPTrack {
	if len(r.sources) > 0 && r.sources[0].Kind() == core.TrackKindVideo {
		return r.sources[0]
	}
	return nil
}

func (r *Recorder) audio() core.RTPTrack {
	if last := r.sources[len(r.sources)-1]; last.Kind() == core.TrackKindAudio {
		return last
	}
	return nil
}

func (r *Recorder) sinkID(i int) string {
	return r.id + "/" + strconv.Itoa(i)
}

func (r *Recorder) flushLoop(timeslice time.Duration) {
	defer close(r.done)
	ticker := time.NewTicker(timeslice)
	defer ticker.Stop()
	for {
		select {
		case <-r.quit:
			return
		case <-ticker.C:
			r.emit(r.buf.take())
		}
	}
}

func (r *Recorder) emit(chunk []byte) {
	r.mu.Lock()
	fn := r.onData
	r.mu.Unlock()
	if len(chunk) > 0 && fn != nil {
		fn(chunk)
	}
}

// Stop detaches from the sources, closes the container and emits whatever
// was buffered as the final chunk before returning. Encoded audio created
// for this recorder is stopped even when Start never ran.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.started || r.stopped {
		first := !r.stopped
		r.stopped = true
		r.mu.Unlock()
		if first && r.encoded != nil {
			r.encoded.Stop()
		}
		return nil
	}
	r.stopped = true
	c := r.container
	r.mu.Unlock()

	for i, src := range r.sources {
		r.relays.RemoveSink(src.ID(), r.sinkID(i))
	}
	close(r.quit)
	<-r.done

	err := c.Close()
	if r.encoded != nil {
		r.encoded.Stop()
	}
	r.emit(r.buf.take())
	r.logger.Info().Msg("recording stopped")
	return err
}
