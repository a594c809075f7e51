package mchan_test

import (
	"context"
	"testing"
	"time"

	"github.com/matrix-org/mchan/pkg/mchan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSelect_LowestIndexReadyWins is spec scenario 5: X is an empty
// capacity-1 channel (send-ready), Y already holds a value (receive-ready). Both
// are ready on the first poll, so the lowest index (send to X) wins.
func TestSelect_LowestIndexReadyWins(t *testing.T) {
	x, err := mchan.Create[string](1)
	require.NoError(t, err)

	y, err := mchan.Create[string](1)
	require.NoError(t, err)

	status, err := y.Send("already-there", true)
	require.NoError(t, err)
	require.Equal(t, mchan.StatusSuccess, status)

	descriptors := []mchan.Descriptor[string]{
		{Channel: x, Direction: mchan.DirectionSend, Value: "w"},
		{Channel: y, Direction: mchan.DirectionReceive},
	}

	coordinator := mchan.NewCoordinator[string]()

	idx, status, _, err := coordinator.Select(context.Background(), descriptors)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, mchan.StatusSuccess, status)
	assert.Equal(t, 1, x.Len())
}

// TestSelect_UnblocksOnClose is spec scenario 6: two empty channels in a
// receive-select; closing one unblocks the select with CLOSED and the
// closed channel's index.
func TestSelect_UnblocksOnClose(t *testing.T) {
	a, err := mchan.Create[int](1)
	require.NoError(t, err)

	b, err := mchan.Create[int](1)
	require.NoError(t, err)

	descriptors := []mchan.Descriptor[int]{
		{Channel: a, Direction: mchan.DirectionReceive},
		{Channel: b, Direction: mchan.DirectionReceive},
	}

	coordinator := mchan.NewCoordinator[int]()

	result := make(chan struct {
		idx    int
		status mchan.Status
	}, 1)

	go func() {
		idx, status, _, _ := coordinator.Select(context.Background(), descriptors)
		result <- struct {
			idx    int
			status mchan.Status
		}{idx, status}
	}()

	time.Sleep(20 * time.Millisecond)

	status, err := b.Close()
	require.NoError(t, err)
	require.Equal(t, mchan.StatusSuccess, status)

	select {
	case r := <-result:
		assert.Equal(t, 1, r.idx)
		assert.Equal(t, mchan.StatusClosed, r.status)
	case <-time.After(2 * time.Second):
		t.Fatal("select did not unblock after close")
	}
}

func TestSelect_ReceivesFromAlreadyClosedChannel(t *testing.T) {
	ch, err := mchan.Create[int](1)
	require.NoError(t, err)

	status, err := ch.Close()
	require.NoError(t, err)
	require.Equal(t, mchan.StatusSuccess, status)

	descriptors := []mchan.Descriptor[int]{
		{Channel: ch, Direction: mchan.DirectionReceive},
	}

	coordinator := mchan.NewCoordinator[int]()

	idx, status, _, err := coordinator.Select(context.Background(), descriptors)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, mchan.StatusClosed, status)
}

func TestSelect_DuplicateChannelsAreIndependentEntries(t *testing.T) {
	ch, err := mchan.Create[int](1)
	require.NoError(t, err)

	status, err := ch.Send(7, true)
	require.NoError(t, err)
	require.Equal(t, mchan.StatusSuccess, status)

	descriptors := []mchan.Descriptor[int]{
		{Channel: ch, Direction: mchan.DirectionReceive},
		{Channel: ch, Direction: mchan.DirectionReceive},
	}

	coordinator := mchan.NewCoordinator[int]()

	idx, status, value, err := coordinator.Select(context.Background(), descriptors)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, mchan.StatusSuccess, status)
	assert.Equal(t, 7, value)
}

func TestSelect_NoDescriptors(t *testing.T) {
	coordinator := mchan.NewCoordinator[int]()

	_, status, _, err := coordinator.Select(context.Background(), nil)
	assert.Equal(t, mchan.StatusOther, status)
	assert.ErrorIs(t, err, mchan.ErrNoDescriptors)
}

// TestSelect_UnregistersAfterReturn exercises a channel after a select that
// spanned it has returned (and deregistered its readiness signal): later
// sends on that channel behave exactly as on a channel no select ever
// touched, filling it to capacity and then reporting WOULDBLOCK.
func TestSelect_UnregistersAfterReturn(t *testing.T) {
	ch, err := mchan.Create[int](2)
	require.NoError(t, err)

	other, err := mchan.Create[int](1)
	require.NoError(t, err)

	status, err := other.Send(1, true)
	require.NoError(t, err)
	require.Equal(t, mchan.StatusSuccess, status)

	descriptors := []mchan.Descriptor[int]{
		{Channel: ch, Direction: mchan.DirectionReceive},
		{Channel: other, Direction: mchan.DirectionReceive},
	}

	coordinator := mchan.NewCoordinator[int]()

	_, status, _, err = coordinator.Select(context.Background(), descriptors)
	require.NoError(t, err)
	require.Equal(t, mchan.StatusSuccess, status)

	// The select returned; further sends on ch must not block on anything
	// related to the finished select.
	for i := 0; i < 3; i++ {
		ch.Send(i, false)
	}

	assert.Equal(t, 2, ch.Len())
}
