package recorder

import (
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/dkeye/Webinar/internal/app/sfu"
	"github.com/dkeye/Webinar/internal/core"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/h264writer"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

var ErrMediaNotSupported = errors.New("media not supported")

const (
	mimeIVF  = "video/x-ivf"
	mimeH264 = "video/h264"
	mimeOgg  = "audio/ogg"
	mimeWebM = "video/webm"
)

func isCodec(t core.RTPTrack, mime string) bool {
	return t != nil && strings.EqualFold(t.Codec().MimeType, mime)
}

func isVPX(t core.RTPTrack) bool {
	return isCodec(t, webrtc.MimeTypeVP8) || isCodec(t, webrtc.MimeTypeVP9)
}

// containerMime picks the container for a video and an audio source.
// Either may be nil. An empty result means the pair cannot be recorded.
func containerMime(video, audio core.RTPTrack) string {
	switch {
	case video != nil && audio != nil:
		if isVPX(video) && isCodec(audio, webrtc.MimeTypeOpus) {
			return mimeWebM
		}
	case video != nil:
		switch {
		case isVPX(video):
			return mimeIVF
		case isCodec(video, webrtc.MimeTypeH264):
			return mimeH264
		}
	case audio != nil:
		if isCodec(audio, webrtc.MimeTypeOpus) {
			return mimeOgg
		}
	}
	return ""
}

// container receives packets from every source track and writes a single file.
type container interface {
	// sinks returns one writer per source, in source order.
	sinks() []sfu.RTPWriter
	// Close flushes pending frames. Nothing is written after it returns.
	Close() error
}

func openContainer(out io.Writer, mime string, video, audio core.RTPTrack) (container, error) {
	switch mime {
	case mimeWebM:
		return newWebMMuxer(out, video, audio), nil
	case mimeIVF:
		w, err := ivfwriter.NewWith(out, ivfwriter.WithCodec(ivfCodec(video)))
		if err != nil {
			return nil, err
		}
		return &single{w: w}, nil
	case mimeH264:
		return &single{w: h264writer.NewWith(out)}, nil
	case mimeOgg:
		w, err := oggwriter.NewWith(out, 48000, channels(audio))
		if err != nil {
			return nil, err
		}
		return &single{w: w}, nil
	default:
		return nil, ErrMediaNotSupported
	}
}

func ivfCodec(video core.RTPTrack) string {
	if isCodec(video, webrtc.MimeTypeVP9) {
		return webrtc.MimeTypeVP9
	}
	return webrtc.MimeTypeVP8
}

func channels(audio core.RTPTrack) uint16 {
	if n := audio.Codec().Channels; n > 0 {
		return n
	}
	return 2
}

// single wraps one pion media writer fed by one source.
type single struct {
	mu sync.Mutex
	w  media.Writer
}

func (s *single) sinks() []sfu.RTPWriter { return []sfu.RTPWriter{s} }

func (s *single) WriteRTP(pkt *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return ErrRecorderStopped
	}
	return s.w.WriteRTP(pkt)
}

func (s *single) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	err := s.w.Close()
	s.w = nil
	return err
}

// chunkBuffer collects container bytes between timeslices. Muxers may
// write to it from their own goroutines.
type chunkBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *chunkBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.buf = append(b.buf, p...)
	b.mu.Unlock()
	return len(p), nil
}

func (b *chunkBuffer) take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return nil
	}
	chunk := b.buf
	b.buf = nil
	return chunk
}
