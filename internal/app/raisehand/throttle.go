// Package raisehand rate-limits the raise-hand signal with a fixed cooldown.
package raisehand

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultCooldown = 15 * time.Second

type Throttle struct {
	transport core.Transport
	clock     core.Clock
	cooldown  time.Duration

	mu        sync.Mutex
	timer     core.Timer
	expiresAt time.Time
	gen       uint64
	closed    bool
}

func NewThrottle(transport core.Transport, clock core.Clock, cooldown time.Duration) *Throttle {
	if clock == nil {
		clock = core.SystemClock{}
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Throttle{transport: transport, clock: clock, cooldown: cooldown}
}

// RaiseHand signals immediately unless a cooldown is running. It reports
// whether the signal was sent.
func (t *Throttle) RaiseHand(ctx context.Context) bool {
	t.mu.Lock()
	if t.closed || t.timer != nil {
		t.mu.Unlock()
		return false
	}
	t.expiresAt = t.clock.Now().Add(t.cooldown)
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.cooldown, func() { t.expire(gen) })
	t.mu.Unlock()

	if err := t.transport.RaiseHand(ctx); err != nil {
		log.Warn().Err(err).Str("module", "app.raisehand").Msg("raise hand failed")
	}
	return true
}

func (t *Throttle) Cooldown() domain.RaiseHandCooldown {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer == nil {
		return domain.RaiseHandCooldown{}
	}
	exp := t.expiresAt
	return domain.RaiseHandCooldown{Active: true, ExpiresAt: &exp}
}

// Close cancels a running cooldown. Later calls are no-ops.
func (t *Throttle) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Throttle) expire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen == gen {
		t.timer = nil
	}
}
