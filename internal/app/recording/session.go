package recording

import (
	"bytes"
	"sync"
	"time"

	"github.com/dkeye/Webinar/internal/core"
)

// session holds everything acquired for one recording. Every track it
// references is stopped by release.
type session struct {
	display   *core.MediaStream
	mic       *core.MediaStream
	mix       core.MixNode
	composite *core.MediaStream
	recorder  core.MediaRecorder
	mimeType  string
	startedAt time.Time

	mu     sync.Mutex
	chunks [][]byte

	done chan struct{}
}

func newSession() *session {
	return &session{done: make(chan struct{})}
}

func (s *session) append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
}

func (s *session) chunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

func (s *session) blob() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Join(s.chunks, nil)
}

func (s *session) release() {
	if s.mix != nil {
		s.mix.Disconnect()
		s.mix.Output().Stop()
	}
	for _, ms := range []*core.MediaStream{s.display, s.mic, s.composite} {
		if ms != nil {
			ms.Stop()
		}
	}
}
