package devices

import (
	"errors"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/wave"
	"github.com/rs/zerolog/log"
)

var ErrNoEncoder = errors.New("no audio encoder linked in")

// pcmSource feeds a raw PCM track into mediadevices so it gets encoded the
// same way a captured microphone does.
type pcmSource struct {
	id string
	in core.PCMTrack
}

func (s *pcmSource) ID() string { return s.id }

func (s *pcmSource) Close() error {
	s.in.Stop()
	return nil
}

func (s *pcmSource) Read() (wave.Audio, func(), error) {
	samples, err := s.in.ReadPCM()
	if err != nil {
		return nil, func() {}, err
	}
	channels := max(s.in.Channels(), 1)
	chunk := wave.NewInt16Interleaved(wave.ChunkInfo{
		Len:          len(samples) / channels,
		Channels:     channels,
		SamplingRate: s.in.SampleRate(),
	})
	copy(chunk.Data, samples)
	return chunk, func() {}, nil
}

// EncodeAudio wraps a PCM track, typically a mixer output, as an Opus
// track. Stopping the result stops the input.
func (d *Devices) EncodeAudio(in core.PCMTrack) (core.RTPTrack, error) {
	if !hasEncoders {
		return nil, ErrNoEncoder
	}
	src := mediadevices.NewAudioTrack(&pcmSource{id: "encoded-" + in.ID(), in: in}, d.selector)
	log.Debug().Str("module", "adapters.devices").Str("input", in.ID()).Msg("encoding pcm track")
	return wrap(src, d.Codec), nil
}
