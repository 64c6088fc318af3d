package fullscreen

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Webinar/internal/core/coretest"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterResolvesAfterChangeEvent(t *testing.T) {
	for _, v := range []coretest.Vendor{coretest.StandardVendor, coretest.WebkitVendor} {
		t.Run(v.Request, func(t *testing.T) {
			host := coretest.NewFullscreenHost(&v)
			c := NewController(host)
			require.True(t, c.Supported())

			require.NoError(t, c.Enter(context.Background()))
			assert.True(t, c.IsFullscreen())

			require.NoError(t, c.Exit(context.Background()))
			assert.False(t, c.IsFullscreen())
		})
	}
}

func TestEnterWaitsForEventNotRequest(t *testing.T) {
	v := coretest.StandardVendor
	host := coretest.NewFullscreenHost(&v)
	host.SkipEvent = true
	c := NewController(host)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.Enter(ctx), context.DeadlineExceeded)
	assert.False(t, c.IsFullscreen())
}

func TestOSLevelExitCollapsesState(t *testing.T) {
	v := coretest.StandardVendor
	host := coretest.NewFullscreenHost(&v)
	c := NewController(host)

	changes := make(chan bool, 4)
	c.OnChange(func(on bool) { changes <- on })

	require.NoError(t, c.Enter(context.Background()))
	require.True(t, c.IsFullscreen())
	assert.True(t, <-changes)

	host.ExitFromOS()
	assert.False(t, <-changes)
	assert.False(t, c.IsFullscreen())
}

func TestUnsupportedHost(t *testing.T) {
	host := coretest.NewFullscreenHost(nil)
	c := NewController(host)

	assert.False(t, c.Supported())
	assert.ErrorIs(t, c.Enter(context.Background()), domain.ErrUnsupportedBrowser)
	assert.ErrorIs(t, c.Exit(context.Background()), domain.ErrUnsupportedBrowser)
	c.Close()
}

func TestCloseRemovesListenersAndForceExits(t *testing.T) {
	v := coretest.WebkitVendor
	host := coretest.NewFullscreenHost(&v)
	c := NewController(host)
	assert.Equal(t, 4, host.Listeners())

	require.NoError(t, c.Enter(context.Background()))

	c.Close()
	c.Close()
	host.Wait()

	assert.Zero(t, host.Listeners())
	assert.False(t, host.ElementPresent(v.Element))
	assert.False(t, c.IsFullscreen())
	assert.ErrorIs(t, c.Enter(context.Background()), domain.ErrSessionClosed)
}
