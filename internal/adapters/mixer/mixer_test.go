package mixer

import (
	"io"
	"math"
	"testing"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/stretchr/testify/require"
)

type pcmTrack struct {
	*core.BaseTrack
	rate   int
	chunks [][]int16
}

func newPCM(id string, rate int, chunks ...[]int16) *pcmTrack {
	return &pcmTrack{BaseTrack: core.NewBaseTrack(id, core.TrackKindAudio, id), rate: rate, chunks: chunks}
}

func (p *pcmTrack) SampleRate() int { return p.rate }
func (p *pcmTrack) Channels() int   { return 1 }

func (p *pcmTrack) ReadPCM() ([]int16, error) {
	if len(p.chunks) == 0 {
		return nil, io.EOF
	}
	c := p.chunks[0]
	p.chunks = p.chunks[1:]
	return c, nil
}

func TestMixSumsAndClamps(t *testing.T) {
	a := newPCM("system", 48000, []int16{100, math.MaxInt16, math.MinInt16, 5})
	b := newPCM("mic", 48000, []int16{1, 10, -10})

	node, err := New().Mix(a, b)
	require.NoError(t, err)

	out := node.Output().(*Output)
	require.Equal(t, core.TrackKindAudio, out.Kind())
	require.Equal(t, 48000, out.SampleRate())

	got, err := out.ReadPCM()
	require.NoError(t, err)
	require.Equal(t, []int16{101, math.MaxInt16, math.MinInt16, 5}, got)
}

func TestMixEndsWhenAllInputsEnd(t *testing.T) {
	a := newPCM("system", 48000, []int16{1})
	b := newPCM("mic", 48000)

	node, err := New().Mix(a, b)
	require.NoError(t, err)
	out := node.Output().(*Output)

	ended := make(chan struct{})
	out.OnEnded(func() { close(ended) })

	got, err := out.ReadPCM()
	require.NoError(t, err)
	require.Equal(t, []int16{1}, got)

	_, err = out.ReadPCM()
	require.ErrorIs(t, err, io.EOF)
	<-ended
	require.Equal(t, core.ReadyStateEnded, out.ReadyState())
}

func TestDisconnectStopsOutputOnly(t *testing.T) {
	a := newPCM("system", 48000, []int16{1}, []int16{2})
	node, err := New().Mix(a)
	require.NoError(t, err)

	node.Disconnect()
	require.Equal(t, core.ReadyStateEnded, node.Output().ReadyState())
	require.Equal(t, core.ReadyStateLive, a.ReadyState())

	_, err = node.Output().(*Output).ReadPCM()
	require.ErrorIs(t, err, io.EOF)
}

func TestMixRejectsBadInputs(t *testing.T) {
	_, err := New().Mix()
	require.ErrorIs(t, err, ErrNoInputs)

	plain := core.NewBaseTrack("plain", core.TrackKindAudio, "plain")
	_, err = New().Mix(plain)
	require.ErrorIs(t, err, ErrNotPCM)

	_, err = New().Mix(newPCM("a", 48000), newPCM("b", 44100))
	require.Error(t, err)
}
