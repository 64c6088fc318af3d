package devices

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/audio"
	"github.com/pion/mediadevices/pkg/wave"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

const (
	rtpMTU  = 1200
	rtpSSRC = 0
)

var ErrNotPCM = errors.New("audio chunk is not interleaved int16")

// Track adapts a mediadevices track to core.Track.
type Track struct {
	*core.BaseTrack
	src   mediadevices.Track
	codec webrtc.RTPCodecParameters

	mu      sync.Mutex
	rtp     mediadevices.RTPReadCloser
	queue   []*rtp.Packet
	pcm     audio.Reader
	rate    int
	channel int
}

func wrap(src mediadevices.Track, videoCodec string) *Track {
	t := &Track{
		BaseTrack: core.NewBaseTrack(src.ID(), src.Kind(), src.StreamID()),
		src:       src,
		codec:     codecParameters(src.Kind(), videoCodec),
		rate:      48000,
		channel:   1,
	}
	src.OnEnded(func(error) { t.End() })
	return t
}

func codecParameters(kind core.TrackKind, videoCodec string) webrtc.RTPCodecParameters {
	if kind == core.TrackKindAudio {
		return webrtc.RTPCodecParameters{RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2,
		}}
	}
	mime := webrtc.MimeTypeVP8
	switch strings.ToLower(videoCodec) {
	case "vp9":
		mime = webrtc.MimeTypeVP9
	}
	return webrtc.RTPCodecParameters{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: mime, ClockRate: 90000}}
}

// Stop releases the device. It does not fire OnEnded.
func (t *Track) Stop() {
	t.BaseTrack.Stop()
	t.mu.Lock()
	if t.rtp != nil {
		_ = t.rtp.Close()
		t.rtp = nil
	}
	t.mu.Unlock()
	_ = t.src.Close()
}

func (t *Track) TrackLocal() webrtc.TrackLocal { return t.src }

func (t *Track) Codec() webrtc.RTPCodecParameters { return t.codec }

// ReadRTP hands out encoded packets one at a time.
func (t *Track) ReadRTP() (*rtp.Packet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ReadyState() == core.ReadyStateEnded {
		return nil, fmt.Errorf("track %s ended", t.ID())
	}
	if t.rtp == nil {
		_, name, ok := strings.Cut(t.codec.MimeType, "/")
		if !ok {
			return nil, fmt.Errorf("invalid mime type %q", t.codec.MimeType)
		}
		r, err := t.src.NewRTPReader(name, rtpSSRC, rtpMTU)
		if err != nil {
			return nil, fmt.Errorf("rtp reader: %w", err)
		}
		t.rtp = r
	}
	for len(t.queue) == 0 {
		pkts, release, err := t.rtp.Read()
		if err != nil {
			return nil, err
		}
		for _, p := range pkts {
			if p != nil {
				t.queue = append(t.queue, p.Clone())
			}
		}
		if release != nil {
			release()
		}
	}
	pkt := t.queue[0]
	t.queue = t.queue[1:]
	return pkt, nil
}

func (t *Track) SampleRate() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rate
}

func (t *Track) Channels() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channel
}

// ReadPCM returns one chunk of raw interleaved samples from an audio track.
func (t *Track) ReadPCM() ([]int16, error) {
	at, ok := t.src.(*mediadevices.AudioTrack)
	if !ok {
		return nil, fmt.Errorf("track %s is not audio", t.ID())
	}
	t.mu.Lock()
	if t.pcm == nil {
		t.pcm = at.NewReader(false)
	}
	r := t.pcm
	t.mu.Unlock()

	chunk, release, err := r.Read()
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer release()
	}
	pcm, ok := chunk.(*wave.Int16Interleaved)
	if !ok {
		return nil, ErrNotPCM
	}
	info := pcm.ChunkInfo()
	t.mu.Lock()
	t.rate, t.channel = info.SamplingRate, info.Channels
	t.mu.Unlock()

	out := make([]int16, len(pcm.Data))
	copy(out, pcm.Data)
	return out, nil
}
