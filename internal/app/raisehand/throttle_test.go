package raisehand

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Webinar/internal/core/coretest"
	"github.com/dkeye/Webinar/internal/core/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCooldownWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	transport.EXPECT().RaiseHand(gomock.Any()).Return(nil).Times(2)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := coretest.NewClock(start)
	th := NewThrottle(transport, clock, 15*time.Second)
	ctx := context.Background()

	require.True(t, th.RaiseHand(ctx))
	cd := th.Cooldown()
	require.True(t, cd.Active)
	assert.Equal(t, start.Add(15*time.Second), *cd.ExpiresAt)

	clock.Advance(10000 * time.Millisecond)
	assert.False(t, th.RaiseHand(ctx))
	assert.Equal(t, cd, th.Cooldown())

	clock.Advance(5001 * time.Millisecond)
	assert.False(t, th.Cooldown().Active)
	require.True(t, th.RaiseHand(ctx))

	cd = th.Cooldown()
	require.True(t, cd.Active)
	assert.Equal(t, start.Add(15001*time.Millisecond+15*time.Second), *cd.ExpiresAt)
}

func TestCloseClearsTimer(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	transport.EXPECT().RaiseHand(gomock.Any()).Return(nil).Times(1)

	clock := coretest.NewClock(time.Unix(0, 0))
	th := NewThrottle(transport, clock, 0)

	require.True(t, th.RaiseHand(context.Background()))
	assert.Equal(t, 1, clock.Pending())

	th.Close()
	th.Close()
	assert.Zero(t, clock.Pending())
	assert.False(t, th.Cooldown().Active)

	clock.Advance(DefaultCooldown)
	assert.False(t, th.RaiseHand(context.Background()))
}

func TestTransportErrorStillStartsCooldown(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	transport.EXPECT().RaiseHand(gomock.Any()).Return(assert.AnError)

	clock := coretest.NewClock(time.Unix(0, 0))
	th := NewThrottle(transport, clock, time.Second)

	assert.True(t, th.RaiseHand(context.Background()))
	assert.True(t, th.Cooldown().Active)
}
