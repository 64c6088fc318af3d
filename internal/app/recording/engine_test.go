package recording

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/core/coretest"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine     *Engine
	devices    *coretest.Devices
	recorders  *coretest.RecorderFactory
	mixer      *coretest.Mixer
	downloader *coretest.Downloader
	notifier   *coretest.Notifier
}

var startedAt = time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("MSK", 3*3600))

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		devices:    &coretest.Devices{},
		recorders:  &coretest.RecorderFactory{MimeType: "video/webm;codecs=vp8", Final: []byte("tail")},
		mixer:      &coretest.Mixer{},
		downloader: &coretest.Downloader{},
		notifier:   &coretest.Notifier{},
	}
	f.engine = NewEngine(f.devices, f.recorders, f.mixer, f.downloader, f.notifier)
	f.engine.Host = true
	f.engine.Room = "weekly sync"
	f.engine.Participant = "alice"
	f.engine.Clock = coretest.NewClock(startedAt)
	return f
}

func (f *fixture) requireAllEnded(t *testing.T) {
	t.Helper()
	acquired := f.devices.Acquired()
	require.NotEmpty(t, acquired)
	for _, tr := range acquired {
		assert.Equal(t, core.ReadyStateEnded, tr.ReadyState(), tr.Label())
	}
	for _, n := range f.mixer.Nodes() {
		assert.True(t, n.Disconnected())
		assert.Equal(t, core.ReadyStateEnded, n.Output().ReadyState())
	}
}

func videoOnlyDisplay(context.Context, core.DisplayMediaOptions) (*core.MediaStream, error) {
	return core.NewMediaStream(coretest.NewVideo("screen")), nil
}

func TestStartRequiresHost(t *testing.T) {
	f := newFixture(t)
	f.engine.Host = false

	require.ErrorIs(t, f.engine.Start(context.Background(), StartOptions{}), domain.ErrNotHost)
	assert.Equal(t, domain.RecordingIdle, f.engine.State())
	_, display := f.devices.Calls()
	assert.Zero(t, display)
}

func TestMicOnlyAudioIsUsedUnmixed(t *testing.T) {
	f := newFixture(t)
	f.devices.DisplayMedia = videoOnlyDisplay

	require.NoError(t, f.engine.Start(context.Background(), StartOptions{MicAudioRequired: true}))
	assert.Equal(t, domain.RecordingRecording, f.engine.State())

	composite := f.recorders.Last().Stream
	require.Len(t, composite.VideoTracks(), 1)
	require.Len(t, composite.AudioTracks(), 1)
	assert.Equal(t, "microphone", composite.AudioTracks()[0].Label())
	assert.Empty(t, f.mixer.Nodes())

	require.NoError(t, f.engine.Stop(context.Background()))
	f.requireAllEnded(t)
}

func TestTwoAudioSourcesAreMixed(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.Start(context.Background(), StartOptions{MicAudioRequired: true}))

	nodes := f.mixer.Nodes()
	require.Len(t, nodes, 1)
	composite := f.recorders.Last().Stream
	require.Len(t, composite.AudioTracks(), 1)
	assert.Same(t, nodes[0].Output(), composite.AudioTracks()[0])
	assert.Len(t, composite.Tracks(), 2)

	require.NoError(t, f.engine.Stop(context.Background()))
	f.requireAllEnded(t)
}

func TestStopDownloadsJoinedChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx, StartOptions{}))
	rec := f.recorders.Last()
	rec.Emit([]byte("one-"))
	rec.Emit([]byte("two-"))
	assert.Equal(t, 2, f.engine.Snapshot().Chunks)

	require.NoError(t, f.engine.Stop(ctx))
	require.NoError(t, f.engine.Stop(ctx))

	downloads := f.downloader.Downloads()
	require.Len(t, downloads, 1)
	assert.Equal(t, "weekly_sync-alice-20260314-062653.webm", downloads[0].Name)
	assert.Equal(t, "video/webm;codecs=vp8", downloads[0].MimeType)
	assert.Equal(t, []byte("one-two-tail"), downloads[0].Blob)
	assert.Equal(t, domain.RecordingIdle, f.engine.State())
	assert.True(t, rec.Stopped())
	f.requireAllEnded(t)
}

func TestDisplayEndedFinalizesWithoutStop(t *testing.T) {
	f := newFixture(t)
	f.recorders.Final = nil

	require.NoError(t, f.engine.Start(context.Background(), StartOptions{}))
	f.recorders.Last().Emit([]byte("buffered"))

	display := f.recorders.Last().Stream.VideoTracks()[0]
	display.(*coretest.Track).End()

	assert.Equal(t, domain.RecordingIdle, f.engine.State())
	downloads := f.downloader.Downloads()
	require.Len(t, downloads, 1)
	assert.NotEmpty(t, downloads[0].Blob)
	assert.Empty(t, f.notifier.Alerts())
	f.requireAllEnded(t)

	require.NoError(t, f.engine.Stop(context.Background()))
	assert.Len(t, f.downloader.Downloads(), 1)
}

func TestDownloadErrorStillReleasesTracks(t *testing.T) {
	f := newFixture(t)
	f.downloader.Err = fmt.Errorf("disk full")

	require.NoError(t, f.engine.Start(context.Background(), StartOptions{MicAudioRequired: true}))
	err := f.engine.Stop(context.Background())
	require.Error(t, err)

	assert.Equal(t, domain.RecordingIdle, f.engine.State())
	f.requireAllEnded(t)
	require.Len(t, f.notifier.Alerts(), 1)
}

func TestEmptyRecordingStillReleasesTracks(t *testing.T) {
	f := newFixture(t)
	f.recorders.Final = nil

	require.NoError(t, f.engine.Start(context.Background(), StartOptions{}))
	require.ErrorIs(t, f.engine.Stop(context.Background()), ErrEmptyRecording)

	assert.Empty(t, f.downloader.Downloads())
	f.requireAllEnded(t)
}

func TestAcquisitionFailureRevertsToIdle(t *testing.T) {
	f := newFixture(t)
	f.devices.DisplayMedia = func(context.Context, core.DisplayMediaOptions) (*core.MediaStream, error) {
		return nil, fmt.Errorf("getDisplayMedia: %w", domain.ErrPermissionDenied)
	}

	err := f.engine.Start(context.Background(), StartOptions{MicAudioRequired: true})
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Equal(t, domain.RecordingIdle, f.engine.State())
	assert.Nil(t, f.recorders.Last())

	alerts := f.notifier.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertPermissionDenied, alerts[0].Kind)

	user, _ := f.devices.Calls()
	assert.Zero(t, user)
}

func TestRecorderFailureReleasesAcquiredTracks(t *testing.T) {
	f := newFixture(t)
	f.recorders.Err = fmt.Errorf("no encoder: %w", domain.ErrUnsupportedBrowser)

	err := f.engine.Start(context.Background(), StartOptions{MicAudioRequired: true})
	require.ErrorIs(t, err, domain.ErrUnsupportedBrowser)
	assert.Equal(t, domain.RecordingIdle, f.engine.State())
	f.requireAllEnded(t)
}

func TestRecorderStartFailureStopsRecorder(t *testing.T) {
	f := newFixture(t)
	f.recorders.StartErr = errors.New("container refused")

	err := f.engine.Start(context.Background(), StartOptions{MicAudioRequired: true})
	require.ErrorContains(t, err, "container refused")
	assert.Equal(t, domain.RecordingIdle, f.engine.State())

	rec := f.recorders.Last()
	require.NotNil(t, rec)
	assert.True(t, rec.Stopped())
	f.requireAllEnded(t)
	assert.Empty(t, f.downloader.Downloads())
}

func TestCloseWhileAcquiringReleasesLateGrant(t *testing.T) {
	f := newFixture(t)
	prompted := make(chan struct{})
	answer := make(chan struct{})
	f.devices.DisplayMedia = func(context.Context, core.DisplayMediaOptions) (*core.MediaStream, error) {
		close(prompted)
		<-answer
		return core.NewMediaStream(coretest.NewVideo("screen"), coretest.NewAudio("system")), nil
	}

	done := make(chan error, 1)
	go func() { done <- f.engine.Start(context.Background(), StartOptions{MicAudioRequired: true}) }()
	<-prompted
	assert.Equal(t, domain.RecordingAcquiring, f.engine.State())

	closed := make(chan struct{})
	go func() {
		f.engine.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close waited for the permission prompt")
	}

	close(answer)
	require.ErrorIs(t, <-done, domain.ErrSessionClosed)
	assert.Equal(t, domain.RecordingIdle, f.engine.State())

	rec := f.recorders.Last()
	require.NotNil(t, rec)
	assert.True(t, rec.Stopped())
	f.requireAllEnded(t)
	assert.Empty(t, f.downloader.Downloads())
	assert.ErrorIs(t, f.engine.Start(context.Background(), StartOptions{}), domain.ErrSessionClosed)
}

func TestMicFailureIsTolerated(t *testing.T) {
	f := newFixture(t)
	f.devices.UserMedia = func(context.Context, core.UserMediaOptions) (*core.MediaStream, error) {
		return nil, domain.ErrDeviceUnavailable
	}

	require.NoError(t, f.engine.Start(context.Background(), StartOptions{MicAudioRequired: true}))
	composite := f.recorders.Last().Stream
	require.Len(t, composite.AudioTracks(), 1)
	assert.Equal(t, "system", composite.AudioTracks()[0].Label())
	assert.Empty(t, f.notifier.Alerts())
}

func TestSecondStartIsBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx, StartOptions{}))
	require.ErrorIs(t, f.engine.Start(ctx, StartOptions{}), domain.ErrRecordingBusy)
	require.NoError(t, f.engine.Stop(ctx))
	require.NoError(t, f.engine.Start(ctx, StartOptions{}))
	require.NoError(t, f.engine.Stop(ctx))
	assert.Len(t, f.downloader.Downloads(), 2)
}

func TestCloseFinalizesAndRefusesStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx, StartOptions{}))
	f.engine.Close()
	f.engine.Close()

	assert.Equal(t, domain.RecordingIdle, f.engine.State())
	assert.Len(t, f.downloader.Downloads(), 1)
	f.requireAllEnded(t)
	assert.ErrorIs(t, f.engine.Start(ctx, StartOptions{}), domain.ErrSessionClosed)
}

func TestToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Toggle(ctx, StartOptions{}))
	assert.Equal(t, domain.RecordingRecording, f.engine.State())
	require.NoError(t, f.engine.Toggle(ctx, StartOptions{}))
	assert.Equal(t, domain.RecordingIdle, f.engine.State())
}
