package core

import (
	"context"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type UserMediaOptions struct {
	Audio bool
	Video bool
}

type DisplayMediaOptions struct {
	Audio bool
}

// MediaDevices acquires capture tracks. Both calls may block for as long
// as the user takes to answer a permission prompt.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, opts UserMediaOptions) (*MediaStream, error)
	GetDisplayMedia(ctx context.Context, opts DisplayMediaOptions) (*MediaStream, error)
}

// MediaRecorder turns a composite stream into container bytes.
type MediaRecorder interface {
	MimeType() string
	OnDataAvailable(fn func(chunk []byte))
	Start(timeslice time.Duration) error
	// Stop emits the final chunk through OnDataAvailable before returning.
	Stop() error
}

type RecorderFactory interface {
	NewRecorder(stream *MediaStream) (MediaRecorder, error)
}

// MixNode is a live audio graph node producing one output track.
type MixNode interface {
	Output() Track
	Disconnect()
}

type AudioMixer interface {
	Mix(inputs ...Track) (MixNode, error)
}

// AudioEncoder turns a raw PCM track into an encoded track that can be
// relayed and recorded.
type AudioEncoder interface {
	EncodeAudio(track PCMTrack) (RTPTrack, error)
}

type Downloader interface {
	Download(ctx context.Context, name, mimeType string, blob []byte) error
}

// RTPTrack is implemented by tracks that can hand out encoded packets.
type RTPTrack interface {
	Track
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, error)
}

// PCMTrack is implemented by audio tracks exposing raw interleaved samples.
type PCMTrack interface {
	Track
	SampleRate() int
	Channels() int
	ReadPCM() ([]int16, error)
}
