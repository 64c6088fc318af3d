// Package mixer sums raw PCM tracks into one output track.
package mixer

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoInputs = errors.New("mixer: no inputs")
	ErrNotPCM   = errors.New("mixer: input does not expose pcm")
)

type Mixer struct{}

func New() *Mixer { return &Mixer{} }

// Mix connects the inputs to a new output. Every input must carry PCM at
// the same sample rate and channel count.
func (m *Mixer) Mix(inputs ...core.Track) (core.MixNode, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	pcm := make([]core.PCMTrack, 0, len(inputs))
	for _, in := range inputs {
		p, ok := in.(core.PCMTrack)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotPCM, in.ID())
		}
		if len(pcm) > 0 && (p.SampleRate() != pcm[0].SampleRate() || p.Channels() != pcm[0].Channels()) {
			return nil, fmt.Errorf("mixer: %s format %d/%d differs from %d/%d",
				in.ID(), p.SampleRate(), p.Channels(), pcm[0].SampleRate(), pcm[0].Channels())
		}
		pcm = append(pcm, p)
	}

	out := &Output{
		BaseTrack: core.NewBaseTrack("mix-"+uuid.NewString(), core.TrackKindAudio, "mix"),
		inputs:    pcm,
		rate:      pcm[0].SampleRate(),
		channels:  pcm[0].Channels(),
	}
	log.Debug().Str("module", "adapters.mixer").Str("track", out.ID()).Int("inputs", len(pcm)).Msg("mix connected")
	return &Node{out: out}, nil
}

type Node struct {
	out *Output
}

func (n *Node) Output() core.Track { return n.out }

// Disconnect detaches the inputs and ends the output. Inputs keep running.
func (n *Node) Disconnect() {
	n.out.Stop()
}

// Output pulls one chunk from every input per read and adds them sample by sample.
type Output struct {
	*core.BaseTrack

	mu       sync.Mutex
	inputs   []core.PCMTrack
	rate     int
	channels int
}

func (o *Output) SampleRate() int { return o.rate }
func (o *Output) Channels() int   { return o.channels }

func (o *Output) ReadPCM() ([]int16, error) {
	acc, ok := o.pull()
	if !ok {
		o.End()
		return nil, io.EOF
	}
	return clamp(acc), nil
}

func (o *Output) pull() ([]int32, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ReadyState() == core.ReadyStateEnded {
		return nil, false
	}

	var acc []int32
	live := o.inputs[:0]
	for _, in := range o.inputs {
		chunk, err := in.ReadPCM()
		if err != nil {
			log.Debug().Str("module", "adapters.mixer").Str("input", in.ID()).Err(err).Msg("input dropped")
			continue
		}
		live = append(live, in)
		if len(chunk) > len(acc) {
			acc = append(acc, make([]int32, len(chunk)-len(acc))...)
		}
		for i, s := range chunk {
			acc[i] += int32(s)
		}
	}
	o.inputs = live
	return acc, len(live) > 0
}

func clamp(acc []int32) []int16 {
	out := make([]int16, len(acc))
	for i, v := range acc {
		switch {
		case v > math.MaxInt16:
			out[i] = math.MaxInt16
		case v < math.MinInt16:
			out[i] = math.MinInt16
		default:
			out[i] = int16(v)
		}
	}
	return out
}
