package coretest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/google/uuid"
)

// Track is a core.Track backed only by BaseTrack bookkeeping.
type Track struct {
	*core.BaseTrack
}

func NewTrack(kind core.TrackKind, label string) *Track {
	return &Track{BaseTrack: core.NewBaseTrack(uuid.NewString(), kind, label)}
}

func NewAudio(label string) *Track { return NewTrack(core.TrackKindAudio, label) }
func NewVideo(label string) *Track { return NewTrack(core.TrackKindVideo, label) }

// Devices hands out fresh tracks and remembers each one so tests can assert
// that everything acquired has ended.
type Devices struct {
	// Optional overrides; when nil the default builds tracks from the options.
	UserMedia    func(ctx context.Context, opts core.UserMediaOptions) (*core.MediaStream, error)
	DisplayMedia func(ctx context.Context, opts core.DisplayMediaOptions) (*core.MediaStream, error)

	mu           sync.Mutex
	acquired     []core.Track
	userCalls    int
	displayCalls int
}

func (d *Devices) GetUserMedia(ctx context.Context, opts core.UserMediaOptions) (*core.MediaStream, error) {
	d.mu.Lock()
	d.userCalls++
	fn := d.UserMedia
	d.mu.Unlock()

	var (
		s   *core.MediaStream
		err error
	)
	if fn != nil {
		s, err = fn(ctx, opts)
	} else {
		s = core.NewMediaStream()
		if opts.Audio {
			s.AddTrack(NewAudio("microphone"))
		}
		if opts.Video {
			s.AddTrack(NewVideo("camera"))
		}
	}
	d.remember(s)
	return s, err
}

func (d *Devices) GetDisplayMedia(ctx context.Context, opts core.DisplayMediaOptions) (*core.MediaStream, error) {
	d.mu.Lock()
	d.displayCalls++
	fn := d.DisplayMedia
	d.mu.Unlock()

	var (
		s   *core.MediaStream
		err error
	)
	if fn != nil {
		s, err = fn(ctx, opts)
	} else {
		s = core.NewMediaStream(NewVideo("screen"))
		if opts.Audio {
			s.AddTrack(NewAudio("system"))
		}
	}
	d.remember(s)
	return s, err
}

func (d *Devices) remember(s *core.MediaStream) {
	if s == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquired = append(d.acquired, s.Tracks()...)
}

func (d *Devices) Acquired() []core.Track {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]core.Track, len(d.acquired))
	copy(out, d.acquired)
	return out
}

func (d *Devices) Calls() (user, display int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.userCalls, d.displayCalls
}

// Recorder emits whatever chunks the test pushes plus one final chunk on Stop.
type Recorder struct {
	Stream   *core.MediaStream
	Final    []byte
	StartErr error

	mu       sync.Mutex
	mimeType string
	onData   func([]byte)
	started  bool
	stopped  bool
	slice    time.Duration
}

func (r *Recorder) MimeType() string { return r.mimeType }

func (r *Recorder) OnDataAvailable(fn func([]byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onData = fn
}

func (r *Recorder) Start(timeslice time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("recorder already started")
	}
	if r.StartErr != nil {
		return r.StartErr
	}
	r.started = true
	r.slice = timeslice
	return nil
}

// Emit pushes one timeslice chunk.
func (r *Recorder) Emit(chunk []byte) {
	r.mu.Lock()
	fn := r.onData
	r.mu.Unlock()
	if fn != nil {
		fn(chunk)
	}
}

func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	fn := r.onData
	r.mu.Unlock()
	if fn != nil && len(r.Final) > 0 {
		fn(r.Final)
	}
	return nil
}

func (r *Recorder) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

type RecorderFactory struct {
	MimeType string
	Final    []byte
	Err      error
	StartErr error

	mu        sync.Mutex
	recorders []*Recorder
}

func (f *RecorderFactory) NewRecorder(stream *core.MediaStream) (core.MediaRecorder, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	mime := f.MimeType
	if mime == "" {
		mime = "video/webm"
	}
	r := &Recorder{Stream: stream, Final: f.Final, StartErr: f.StartErr, mimeType: mime}
	f.mu.Lock()
	f.recorders = append(f.recorders, r)
	f.mu.Unlock()
	return r, nil
}

func (f *RecorderFactory) Last() *Recorder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recorders) == 0 {
		return nil
	}
	return f.recorders[len(f.recorders)-1]
}

// Mixer returns a node whose output is a fresh audio track.
type Mixer struct {
	mu     sync.Mutex
	inputs [][]core.Track
	nodes  []*MixNode
}

type MixNode struct {
	out          *Track
	disconnected bool
	mu           sync.Mutex
}

func (m *Mixer) Mix(inputs ...core.Track) (core.MixNode, error) {
	n := &MixNode{out: NewAudio("mix")}
	m.mu.Lock()
	m.inputs = append(m.inputs, inputs)
	m.nodes = append(m.nodes, n)
	m.mu.Unlock()
	return n, nil
}

func (m *Mixer) Nodes() []*MixNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MixNode(nil), m.nodes...)
}

func (n *MixNode) Output() core.Track { return n.out }

func (n *MixNode) Disconnect() {
	n.mu.Lock()
	n.disconnected = true
	n.mu.Unlock()
	n.out.Stop()
}

func (n *MixNode) Disconnected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disconnected
}

type Download struct {
	Name     string
	MimeType string
	Blob     []byte
}

type Downloader struct {
	Err error

	mu        sync.Mutex
	downloads []Download
}

func (d *Downloader) Download(_ context.Context, name, mimeType string, blob []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.downloads = append(d.downloads, Download{Name: name, MimeType: mimeType, Blob: blob})
	return d.Err
}

func (d *Downloader) Downloads() []Download {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Download(nil), d.downloads...)
}
