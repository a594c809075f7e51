package mchan

import (
	"context"
	"errors"
)

// ErrNoDescriptors is returned by Select when given an empty descriptor
// list - there is nothing to wait on.
var ErrNoDescriptors = errors.New("mchan: select called with no descriptors")

// Descriptor describes one intended operation on one channel: a direction
// and, for a send, the value to enqueue. Duplicate channels across
// descriptors in the same call are permitted and behave as separate
// entries.
type Descriptor[T any] struct {
	Channel   *Channel[T]
	Direction Direction
	Value     T // only read when Direction == DirectionSend
}

// Coordinator runs a single Select call: it attaches a shared readiness
// signal to a set of channels, polls their readiness under each channel's
// own lock, and commits the first descriptor (in index order) that becomes
// ready. It carries no state of its own between calls - a fresh Coordinator
// (or the zero value) is cheap to use once per Select.
type Coordinator[T any] struct{}

// NewCoordinator returns a ready-to-use Coordinator.
func NewCoordinator[T any]() *Coordinator[T] {
	return &Coordinator[T]{}
}

// Select blocks until at least one descriptor can be completed, completes
// exactly the first ready one (in index order, "lowest ready index wins" on
// every polling pass), and returns its index, status, and (for a completed
// receive) the dequeued value. If a channel in the list is already closed,
// its receive-direction descriptor is immediately ready; a send-direction
// descriptor on a closed channel is discovered the same way, and the
// follow-up Send reports StatusClosed.
//
// ctx bounds only the polling sleep between passes (so a caller - or a
// test - can bail out of a Select that would otherwise wait forever); it is
// not a general cancellation mechanism. Apart from ctx, a Select that has no
// ready descriptor is woken only by a Send, Receive or Close on one of the
// channels it spans; closing one of them always ends it.
func (co *Coordinator[T]) Select(ctx context.Context, descriptors []Descriptor[T]) (int, Status, T, error) {
	var zero T

	if len(descriptors) == 0 {
		return -1, StatusOther, zero, ErrNoDescriptors
	}

	signal := newReadinessSignal()

	for _, d := range descriptors {
		d.Channel.register(signal)
	}

	defer func() {
		for _, d := range descriptors {
			d.Channel.unregister(signal)
		}
	}()

	for {
		for i, d := range descriptors {
			var ready bool
			if d.Direction == DirectionSend {
				ready = d.Channel.sendReady()
			} else {
				ready = d.Channel.receiveReady()
			}

			if !ready {
				continue
			}

			switch d.Direction {
			case DirectionSend:
				status, err := d.Channel.Send(d.Value, true)
				return i, status, zero, err
			case DirectionReceive:
				value, status, err := d.Channel.Receive(true)
				return i, status, value, err
			}
		}

		if err := signal.wait(ctx); err != nil {
			return -1, StatusOther, zero, err
		}
	}
}
