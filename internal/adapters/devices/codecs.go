//go:build devices

package devices

import (
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"

	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
)

const hasEncoders = true

func newCodecSelector(codec string) (*mediadevices.CodecSelector, error) {
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}
	opusParams.Latency = opus.Latency20ms

	var video mediadevices.CodecSelectorOption
	switch codec {
	case "vp9":
		vpxParams, err := vpx.NewVP9Params()
		if err != nil {
			return nil, err
		}
		vpxParams.BitRate = 1_500_000
		video = mediadevices.WithVideoEncoders(&vpxParams)
	default:
		vpxParams, err := vpx.NewVP8Params()
		if err != nil {
			return nil, err
		}
		vpxParams.BitRate = 1_500_000
		vpxParams.RateControlEndUsage = vpx.RateControlVBR
		video = mediadevices.WithVideoEncoders(&vpxParams)
	}

	return mediadevices.NewCodecSelector(video, mediadevices.WithAudioEncoders(&opusParams)), nil
}
