package dispatch_test

import (
	"context"
	"testing"

	"github.com/matrix-org/mchan/pkg/dispatch"
	"github.com/matrix-org/mchan/pkg/mchan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_ChannelCreatesLazily(t *testing.T) {
	router := dispatch.NewRouter[string, int](4)

	a, err := router.Channel("a")
	require.NoError(t, err)
	require.NotNil(t, a)

	again, err := router.Channel("a")
	require.NoError(t, err)
	assert.Same(t, a, again)
}

func TestRouter_RouteDeliversToCorrectKey(t *testing.T) {
	router := dispatch.NewRouter[string, string](4)

	require.NoError(t, router.Route(context.Background(), "x", "hello"))

	ch, err := router.Channel("x")
	require.NoError(t, err)

	value, status, err := ch.Receive(false)
	require.NoError(t, err)
	assert.Equal(t, mchan.StatusSuccess, status)
	assert.Equal(t, "hello", value)
}

func TestRouter_RouteToClosedKeyReturnsErrRouteClosed(t *testing.T) {
	router := dispatch.NewRouter[string, string](4)

	require.NoError(t, router.Route(context.Background(), "x", "first"))

	status, err := router.Close("x")
	require.NoError(t, err)
	assert.Equal(t, mchan.StatusSuccess, status)

	err = router.Route(context.Background(), "x", "second")
	assert.ErrorIs(t, err, dispatch.ErrRouteClosed)
}

func TestRouter_CloseUnknownKeyIsNoop(t *testing.T) {
	router := dispatch.NewRouter[string, string](4)

	status, err := router.Close("never-seen")
	require.NoError(t, err)
	assert.Equal(t, mchan.StatusClosed, status)
}

func TestRouter_CloseAllClosesEveryTrackedChannel(t *testing.T) {
	router := dispatch.NewRouter[string, int](4)

	a, err := router.Channel("a")
	require.NoError(t, err)

	b, err := router.Channel("b")
	require.NoError(t, err)

	router.CloseAll()

	status, err := a.Send(1, false)
	require.NoError(t, err)
	assert.Equal(t, mchan.StatusClosed, status)

	status, err = b.Send(1, false)
	require.NoError(t, err)
	assert.Equal(t, mchan.StatusClosed, status)

	// CloseAll forgets every key, so routing again creates a fresh channel.
	require.NoError(t, router.Route(context.Background(), "a", 42))
}
