package recorder

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/at-wat/ebml-go/webm"
	"github.com/dkeye/Webinar/internal/app/sfu"
	"github.com/dkeye/Webinar/internal/core"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
)

const (
	videoClockRate = 90000
	audioClockRate = 48000
	maxLate        = 128
	closeWait      = 2 * time.Second

	fallbackWidth  = 1280
	fallbackHeight = 720
)

type frameInfo struct {
	key           bool
	width, height int
}

// webmMuxer interleaves one VP8 or VP9 track with one Opus track. Nothing
// is written before the first video keyframe because the track header
// carries the frame size.
type webmMuxer struct {
	out           io.Writer
	vp9           bool
	audioChannels uint64
	done          chan struct{}

	mu           sync.Mutex
	frames       *samplebuilder.SampleBuilder
	video, audio webm.BlockWriteCloser
	videoBase    uint32
	audioBase    uint32
	audioStarted bool
	closed       bool

	ready atomic.Bool
}

func newWebMMuxer(out io.Writer, video, audio core.RTPTrack) *webmMuxer {
	m := &webmMuxer{
		out:           out,
		vp9:           isCodec(video, webrtc.MimeTypeVP9),
		audioChannels: uint64(channels(audio)),
		done:          make(chan struct{}),
	}
	if m.vp9 {
		m.frames = samplebuilder.New(maxLate, &codecs.VP9Packet{}, videoClockRate,
			samplebuilder.WithPacketHeadHandler(vp9Head))
	} else {
		m.frames = samplebuilder.New(maxLate, &codecs.VP8Packet{}, videoClockRate)
	}
	return m
}

type trackSink func(*rtp.Packet) error

func (f trackSink) WriteRTP(pkt *rtp.Packet) error { return f(pkt) }

func (m *webmMuxer) sinks() []sfu.RTPWriter {
	return []sfu.RTPWriter{trackSink(m.writeVideo), trackSink(m.writeAudio)}
}

func (m *webmMuxer) writeVideo(pkt *rtp.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrRecorderStopped
	}
	m.frames.Push(pkt)
	return m.drain()
}

// writeAudio drops packets until the video track has opened the file.
func (m *webmMuxer) writeAudio(pkt *rtp.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrRecorderStopped
	}
	if m.audio == nil || len(pkt.Payload) == 0 {
		return nil
	}
	if !m.audioStarted {
		m.audioBase, m.audioStarted = pkt.Timestamp, true
	}
	_, err := m.audio.Write(true, elapsed(pkt.Timestamp, m.audioBase, audioClockRate), bytes.Clone(pkt.Payload))
	return err
}

func (m *webmMuxer) drain() error {
	for s := m.frames.Pop(); s != nil; s = m.frames.Pop() {
		if err := m.writeFrame(s); err != nil {
			return err
		}
	}
	return nil
}

func (m *webmMuxer) writeFrame(s *media.Sample) error {
	info := m.frameInfo(s)
	if m.video == nil {
		if !info.key {
			return nil
		}
		if err := m.open(info); err != nil {
			return err
		}
		m.videoBase = s.PacketTimestamp
	}
	_, err := m.video.Write(info.key, elapsed(s.PacketTimestamp, m.videoBase, videoClockRate), s.Data)
	return err
}

func (m *webmMuxer) frameInfo(s *media.Sample) frameInfo {
	if !m.vp9 {
		return vp8Frame(s.Data)
	}
	info, _ := s.Metadata.(frameInfo)
	return info
}

func (m *webmMuxer) open(info frameInfo) error {
	w, h := info.width, info.height
	if w == 0 || h == 0 {
		w, h = fallbackWidth, fallbackHeight
	}
	codecID := "V_VP8"
	if m.vp9 {
		codecID = "V_VP9"
	}
	writers, err := webm.NewSimpleBlockWriter(&closeNotifier{Writer: m.out, done: m.done},
		[]webm.TrackEntry{
			{
				Name:            "Video",
				TrackNumber:     1,
				TrackUID:        1,
				CodecID:         codecID,
				TrackType:       1,
				DefaultDuration: 33333333,
				Video:           &webm.Video{PixelWidth: uint64(w), PixelHeight: uint64(h)},
			},
			{
				Name:            "Audio",
				TrackNumber:     2,
				TrackUID:        2,
				CodecID:         "A_OPUS",
				TrackType:       2,
				DefaultDuration: 20000000,
				Audio:           &webm.Audio{SamplingFrequency: audioClockRate, Channels: m.audioChannels},
			},
		})
	if err != nil {
		return err
	}
	m.video, m.audio = writers[0], writers[1]
	m.ready.Store(true)
	return nil
}

// Close writes the frames still held by the sample builder and waits for
// the muxer to finish the file.
func (m *webmMuxer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.frames.Flush()
	err := m.drain()
	m.closed = true
	video, audio := m.video, m.audio
	m.mu.Unlock()

	if video == nil {
		return err
	}
	err = errors.Join(err, video.Close(), audio.Close())
	select {
	case <-m.done:
	case <-time.After(closeWait):
	}
	return err
}

func elapsed(ts, base uint32, clockRate int64) int64 {
	return int64(ts-base) * 1000 / clockRate
}

// vp8Frame reads the keyframe flag and frame size from a VP8 frame header.
func vp8Frame(data []byte) frameInfo {
	if len(data) < 10 || data[0]&0x01 != 0 {
		return frameInfo{}
	}
	raw := uint32(data[6]) | uint32(data[7])<<8 | uint32(data[8])<<16 | uint32(data[9])<<24
	return frameInfo{key: true, width: int(raw & 0x3fff), height: int(raw >> 16 & 0x3fff)}
}

// vp9Head takes the keyframe flag and, when the scalability structure is
// present, the size of the top spatial layer from the first packet of a frame.
func vp9Head(head any) any {
	p, ok := head.(*codecs.VP9Packet)
	if !ok {
		return frameInfo{}
	}
	info := frameInfo{key: !p.P}
	if n := min(len(p.Width), len(p.Height)); p.V && n > 0 {
		info.width, info.height = int(p.Width[n-1]), int(p.Height[n-1])
	}
	return info
}

type closeNotifier struct {
	io.Writer
	once sync.Once
	done chan struct{}
}

func (c *closeNotifier) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
