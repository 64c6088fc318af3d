package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Webinar/internal/app/sfu"
	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrTrackNotPublishable = errors.New("track cannot be published")

// LocalTrackProvider is implemented by device tracks that pion can send directly.
type LocalTrackProvider interface {
	TrackLocal() webrtc.TrackLocal
}

type sender struct {
	rtp     *webrtc.RTPSender
	trackID string
	relayed bool
}

// Publisher owns the upstream PeerConnection and one sender per media kind.
type Publisher struct {
	pc       *webrtc.PeerConnection
	sid      core.SessionID
	streamID string
	relays   *sfu.RelayManager

	mu      sync.Mutex
	senders map[domain.Kind]*sender
	onICE   func(webrtc.ICECandidateInit)
	closed  bool
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

func NewPublisher(cfg webrtc.Configuration, sid core.SessionID, relays *sfu.RelayManager) (*Publisher, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	p := &Publisher{
		pc:       pc,
		sid:      sid,
		streamID: "webinar-" + string(sid),
		relays:   relays,
		senders:  make(map[domain.Kind]*sender),
	}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "webrtc").Str("sid", string(sid)).Str("ice_state", s.String()).Msg("ICE state")
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Str("sid", string(sid)).Str("peer_connection_state", s.String()).Msg("Peer state")
	})
	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		p.mu.Lock()
		fn := p.onICE
		p.mu.Unlock()
		if cand != nil && fn != nil {
			fn(cand.ToJSON())
		}
	})
	return p, nil
}

func (p *Publisher) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onICE = fn
}

// Publish sends track under kind, replacing whatever was sent for that kind.
func (p *Publisher) Publish(ctx context.Context, kind domain.Kind, track core.Track) error {
	if err := p.Unpublish(kind); err != nil {
		return err
	}

	var (
		local   webrtc.TrackLocal
		relayed bool
	)
	switch t := track.(type) {
	case LocalTrackProvider:
		local = t.TrackLocal()
	case core.RTPTrack:
		static, err := webrtc.NewTrackLocalStaticRTP(t.Codec().RTPCodecCapability, string(kind), p.streamID)
		if err != nil {
			return fmt.Errorf("publish %s: %w", kind, err)
		}
		local = static
		relayed = true
	default:
		return fmt.Errorf("publish %s: %w", kind, ErrTrackNotPublishable)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrSessionClosed
	}
	rtpSender, err := p.pc.AddTrack(local)
	if err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	if relayed {
		p.relays.AddSink(ctx, track.(core.RTPTrack), p.sinkID(kind), local.(*webrtc.TrackLocalStaticRTP))
	}
	p.senders[kind] = &sender{rtp: rtpSender, trackID: track.ID(), relayed: relayed}
	go drainRTCP(rtpSender)

	log.Info().Str("module", "webrtc").Str("sid", string(p.sid)).Str("kind", string(kind)).Str("track", track.ID()).Msg("track published")
	return nil
}

func (p *Publisher) Unpublish(kind domain.Kind) error {
	p.mu.Lock()
	s, ok := p.senders[kind]
	delete(p.senders, kind)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	if s.relayed {
		p.relays.RemoveSink(s.trackID, p.sinkID(kind))
	}
	if err := p.pc.RemoveTrack(s.rtp); err != nil {
		return fmt.Errorf("unpublish %s: %w", kind, err)
	}
	log.Info().Str("module", "webrtc").Str("sid", string(p.sid)).Str("kind", string(kind)).Msg("track unpublished")
	return nil
}

// CreateOffer renegotiates and returns the complete local description.
func (p *Publisher) CreateOffer(ctx context.Context) (*webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.pc.LocalDescription(), nil
}

func (p *Publisher) ApplyAnswer(answer webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(answer)
}

func (p *Publisher) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(ci)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	senders := p.senders
	p.senders = make(map[domain.Kind]*sender)
	p.mu.Unlock()

	for kind, s := range senders {
		if s.relayed {
			p.relays.RemoveSink(s.trackID, p.sinkID(kind))
		}
	}
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "webrtc").Str("sid", string(p.sid)).Msg("close error")
		return err
	}
	log.Info().Str("module", "webrtc").Str("sid", string(p.sid)).Msg("closed")
	return nil
}

func (p *Publisher) sinkID(kind domain.Kind) string {
	return "publisher/" + string(p.sid) + "/" + string(kind)
}

func drainRTCP(s *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := s.Read(buf); err != nil {
			return
		}
	}
}
