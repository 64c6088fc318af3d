package orch

import (
	"context"

	"github.com/dkeye/Webinar/internal/app/recording"
	"github.com/dkeye/Webinar/internal/domain"
)

func (o *Orchestrator) ToggleFullscreen(ctx context.Context) error {
	if o.Fullscreen == nil || !o.Fullscreen.Supported() {
		return domain.ErrUnsupportedBrowser
	}
	return o.Fullscreen.Toggle(ctx)
}

func (o *Orchestrator) ToggleRecording(ctx context.Context) error {
	return o.Recording.Toggle(ctx, recording.StartOptions{MicAudioRequired: o.RecordWithMic})
}

// RaiseHandNow reports whether the signal went out or the cooldown swallowed it.
func (o *Orchestrator) RaiseHandNow(ctx context.Context) bool {
	sent := o.RaiseHand.RaiseHand(ctx)
	o.logger().Debug().Bool("sent", sent).Msg("raise hand")
	return sent
}
