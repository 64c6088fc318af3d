// Package devices captures camera, microphone and screen through pion/mediadevices.
package devices

import (
	"context"
	"fmt"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/rs/zerolog/log"
)

type VideoConstraints struct {
	Width     int
	Height    int
	FrameRate float32
}

type Devices struct {
	Codec    string
	Video    VideoConstraints
	selector *mediadevices.CodecSelector
}

// New builds the device layer. Encoders are only linked in with the
// "devices" build tag; without it tracks still capture raw media.
func New(codec string) (*Devices, error) {
	selector, err := newCodecSelector(codec)
	if err != nil {
		return nil, fmt.Errorf("codec selector: %w", err)
	}
	return &Devices{
		Codec:    codec,
		Video:    VideoConstraints{Width: 1280, Height: 720, FrameRate: 30},
		selector: selector,
	}, nil
}

func (d *Devices) GetUserMedia(ctx context.Context, opts core.UserMediaOptions) (*core.MediaStream, error) {
	c := mediadevices.MediaStreamConstraints{Codec: d.selector}
	if opts.Audio {
		c.Audio = func(m *mediadevices.MediaTrackConstraints) {
			m.SampleRate = prop.Int(48000)
			m.ChannelCount = prop.Int(1)
		}
	}
	if opts.Video {
		c.Video = d.videoConstraints
	}
	return d.capture(ctx, "getUserMedia", func() (mediadevices.MediaStream, error) {
		return mediadevices.GetUserMedia(c)
	})
}

// GetDisplayMedia captures the screen. The screen driver carries no
// system audio, so opts.Audio never yields an audio track here.
func (d *Devices) GetDisplayMedia(ctx context.Context, opts core.DisplayMediaOptions) (*core.MediaStream, error) {
	if opts.Audio {
		log.Debug().Str("module", "adapters.devices").Msg("display audio not available from screen driver")
	}
	c := mediadevices.MediaStreamConstraints{Codec: d.selector, Video: d.videoConstraints}
	return d.capture(ctx, "getDisplayMedia", func() (mediadevices.MediaStream, error) {
		return mediadevices.GetDisplayMedia(c)
	})
}

func (d *Devices) videoConstraints(m *mediadevices.MediaTrackConstraints) {
	m.Width = prop.Int(d.Video.Width)
	m.Height = prop.Int(d.Video.Height)
	m.FrameRate = prop.Float(d.Video.FrameRate)
}

type captureResult struct {
	stream mediadevices.MediaStream
	err    error
}

// capture runs a blocking driver call and gives up when ctx ends; a late
// grant is closed instead of leaking the device.
func (d *Devices) capture(ctx context.Context, op string, fn func() (mediadevices.MediaStream, error)) (*core.MediaStream, error) {
	ch := make(chan captureResult, 1)
	go func() {
		s, err := fn()
		ch <- captureResult{s, err}
	}()

	var res captureResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		go func() {
			if late := <-ch; late.stream != nil {
				closeAll(late.stream)
			}
		}()
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	}
	if res.err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, domain.ErrDeviceUnavailable, res.err)
	}

	out := core.NewMediaStream()
	for _, t := range res.stream.GetTracks() {
		out.AddTrack(wrap(t, d.Codec))
	}
	log.Info().Str("module", "adapters.devices").Str("op", op).Int("tracks", len(out.Tracks())).Msg("capture granted")
	return out, nil
}

func closeAll(s mediadevices.MediaStream) {
	for _, t := range s.GetTracks() {
		_ = t.Close()
	}
}
