package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dkeye/Webinar/internal/adapters/rtc"
	"github.com/dkeye/Webinar/internal/app/producers"
	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrUpstreamClosed = errors.New("upstream closed")

// Upstream is the Transport backed by the webinar signaling server. Media
// goes out through Publisher; the server announces everyone's producers back.
type Upstream struct {
	URL         string
	SID         core.SessionID
	Room        domain.Room
	Participant domain.Participant

	Publisher *rtc.Publisher
	Producers *producers.Registry
	Dialer    *websocket.Dialer

	// OnWebinarEnded runs when the server reports the host ended the webinar.
	OnWebinarEnded func()
	// OnProducersChanged runs after every producer announcement.
	OnProducersChanged func()

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu     sync.Mutex
	closed bool
	done   chan struct{}

	logger zerolog.Logger
}

func NewUpstream(rawURL string, sid core.SessionID, room domain.Room, p domain.Participant, pub *rtc.Publisher) *Upstream {
	return &Upstream{
		URL:         rawURL,
		SID:         sid,
		Room:        room,
		Participant: p,
		Publisher:   pub,
		Dialer:      websocket.DefaultDialer,
		done:        make(chan struct{}),
		logger: log.With().Str("module", "signal.upstream").
			Str("sid", string(sid)).Str("room", string(room.Name)).Logger(),
	}
}

// Connect dials the server, announces the participant and starts reading.
func (u *Upstream) Connect(ctx context.Context) error {
	if _, err := url.Parse(u.URL); err != nil {
		return fmt.Errorf("upstream url: %w", err)
	}
	header := http.Header{}
	header.Set("X-Session-ID", string(u.SID))
	conn, _, err := u.Dialer.DialContext(ctx, u.URL, header)
	if err != nil {
		return fmt.Errorf("dial upstream: %w", err)
	}
	u.conn = conn

	if u.Publisher != nil {
		u.Publisher.OnICECandidate(u.sendCandidate)
	}

	if err := u.send(struct {
		Type        string             `json:"type"`
		Room        domain.Room        `json:"room"`
		Participant domain.Participant `json:"participant"`
	}{"join", u.Room, u.Participant}); err != nil {
		_ = conn.Close()
		return err
	}

	go u.readLoop(ctx)
	u.logger.Info().Str("url", u.URL).Msg("upstream connected")
	return nil
}

func (u *Upstream) Publish(ctx context.Context, kind domain.Kind, track core.Track) error {
	if u.Publisher != nil {
		if err := u.Publisher.Publish(ctx, kind, track); err != nil {
			return err
		}
	}
	if err := u.send(struct {
		Type  string      `json:"type"`
		Kind  domain.Kind `json:"kind"`
		Track string      `json:"track"`
	}{"publish", kind, track.ID()}); err != nil {
		return err
	}
	return u.negotiate(ctx)
}

func (u *Upstream) Unpublish(ctx context.Context, kind domain.Kind) error {
	if u.Publisher != nil {
		if err := u.Publisher.Unpublish(kind); err != nil {
			return err
		}
	}
	if err := u.send(struct {
		Type string      `json:"type"`
		Kind domain.Kind `json:"kind"`
	}{"unpublish", kind}); err != nil {
		return err
	}
	return u.negotiate(ctx)
}

func (u *Upstream) RaiseHand(context.Context) error {
	return u.send(struct {
		Type        string               `json:"type"`
		Participant domain.ParticipantID `json:"participant"`
	}{"raise_hand", u.Participant.ID})
}

func (u *Upstream) EndWebinar(context.Context) error {
	return u.send(struct {
		Type string        `json:"type"`
		Room domain.RoomID `json:"room"`
	}{"end_webinar", u.Room.ID})
}

func (u *Upstream) Close() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	u.closed = true
	u.mu.Unlock()

	var errs []error
	if u.Publisher != nil {
		errs = append(errs, u.Publisher.Close())
	}
	if u.conn != nil {
		u.writeMu.Lock()
		_ = u.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		u.writeMu.Unlock()
		errs = append(errs, u.conn.Close())
	}
	u.logger.Info().Msg("upstream closed")
	return errors.Join(errs...)
}

// Done is closed when the read loop exits.
func (u *Upstream) Done() <-chan struct{} { return u.done }

func (u *Upstream) isClosed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.closed
}

func (u *Upstream) send(v any) error {
	if u.isClosed() || u.conn == nil {
		return ErrUpstreamClosed
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	u.writeMu.Lock()
	defer u.writeMu.Unlock()
	if err := u.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return u.conn.WriteMessage(websocket.TextMessage, b)
}

func (u *Upstream) readLoop(ctx context.Context) {
	defer close(u.done)
	for {
		_, data, err := u.conn.ReadMessage()
		if err != nil {
			if !u.isClosed() {
				u.logger.Warn().Err(err).Msg("upstream read error")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		u.handle(data)
	}
}

func (u *Upstream) handle(data []byte) {
	var env struct {
		Type        string               `json:"type"`
		Participant domain.ParticipantID `json:"participant"`
		Kind        string               `json:"kind"`
		Track       string               `json:"track"`
		Error       string               `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		u.logger.Error().Err(err).Msg("bad upstream json")
		return
	}

	switch env.Type {
	case "answer":
		u.handleAnswer(data)
	case "candidate":
		u.handleCandidate(data)
	case "producer_added":
		kind, err := domain.ParseKind(env.Kind)
		if err != nil || env.Participant == "" {
			u.logger.Warn().Str("kind", env.Kind).Msg("bad producer_added")
			return
		}
		if u.Producers != nil {
			u.Producers.Add(producers.Producer{Kind: kind, TrackID: env.Track, OwnerID: env.Participant})
		}
		u.changed()
	case "producer_removed":
		kind, err := domain.ParseKind(env.Kind)
		if err != nil {
			u.logger.Warn().Str("kind", env.Kind).Msg("bad producer_removed")
			return
		}
		if u.Producers != nil && u.Producers.Remove(env.Participant, kind) {
			u.changed()
		}
	case "participant_left":
		if u.Producers != nil {
			u.Producers.RemoveParticipant(env.Participant)
		}
		u.changed()
	case "webinar_ended":
		u.logger.Info().Msg("webinar ended by host")
		if u.OnWebinarEnded != nil {
			go u.OnWebinarEnded()
		}
	case "error":
		u.logger.Warn().Str("error", env.Error).Msg("upstream error")
	default:
		u.logger.Debug().Str("type", env.Type).Msg("unknown upstream message")
	}
}

func (u *Upstream) changed() {
	if u.OnProducersChanged != nil {
		u.OnProducersChanged()
	}
}

// Offline stands in for the signaling server when none is configured:
// capture works locally and nothing leaves the process.
type Offline struct {
	SID core.SessionID
}

func (o Offline) Publish(_ context.Context, kind domain.Kind, track core.Track) error {
	log.Debug().Str("module", "signal.offline").Str("sid", string(o.SID)).Str("kind", string(kind)).Str("track", track.ID()).Msg("publish")
	return nil
}

func (o Offline) Unpublish(_ context.Context, kind domain.Kind) error {
	log.Debug().Str("module", "signal.offline").Str("sid", string(o.SID)).Str("kind", string(kind)).Msg("unpublish")
	return nil
}

func (o Offline) RaiseHand(context.Context) error {
	log.Info().Str("module", "signal.offline").Str("sid", string(o.SID)).Msg("raise hand")
	return nil
}

func (o Offline) EndWebinar(context.Context) error {
	log.Info().Str("module", "signal.offline").Str("sid", string(o.SID)).Msg("end webinar")
	return nil
}
