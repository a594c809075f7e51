// Package dispatch routes messages to per-key mchan.Channel instances,
// creating each channel lazily on first use. It generalizes the pattern of
// routing incoming events to one sink per logical group (originally one
// channel per conference) to an arbitrary comparable key and payload type.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/matrix-org/mchan/pkg/mchan"
	"github.com/matrix-org/mchan/pkg/telemetry"
	"github.com/sirupsen/logrus"
)

// ErrRouteClosed is returned by Route when the target channel is closed.
var ErrRouteClosed = errors.New("dispatch: route target is closed")

// Router maintains one mchan.Channel per key, created with a fixed capacity
// the first time that key is routed to.
type Router[K comparable, T any] struct {
	mu       sync.Mutex
	channels map[K]*mchan.Channel[T]
	capacity int
}

// NewRouter returns a Router whose channels are created with the given
// capacity.
func NewRouter[K comparable, T any](capacity int) *Router[K, T] {
	return &Router[K, T]{
		channels: make(map[K]*mchan.Channel[T]),
		capacity: capacity,
	}
}

// Channel returns the channel for key, creating it if this is the first
// time key has been seen.
func (r *Router[K, T]) Channel(key K) (*mchan.Channel[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.channelLocked(key)
}

func (r *Router[K, T]) channelLocked(key K) (*mchan.Channel[T], error) {
	if ch, ok := r.channels[key]; ok {
		return ch, nil
	}

	ch, err := mchan.Create[T](r.capacity)
	if err != nil {
		return nil, err
	}

	r.channels[key] = ch
	logrus.WithField("key", key).Info("dispatch: created channel")

	return ch, nil
}

// Route blocks until value has been enqueued on the channel for key, or the
// channel turns out to be closed.
func (r *Router[K, T]) Route(ctx context.Context, key K, value T) error {
	t := telemetry.NewTelemetry(ctx, "dispatch.Route")
	defer t.End()

	r.mu.Lock()
	ch, err := r.channelLocked(key)
	r.mu.Unlock()

	if err != nil {
		t.Fail(err)
		return err
	}

	status, err := ch.Send(value, true)
	logger := logrus.WithFields(logrus.Fields{"key": key, "status": status})

	switch status {
	case mchan.StatusSuccess:
		logger.Debug("dispatch: routed message")
		return nil
	case mchan.StatusClosed:
		logger.Warn("dispatch: route target is closed")
		t.AddEvent("route target closed")
		return ErrRouteClosed
	default:
		logger.WithError(err).Error("dispatch: route failed")
		t.Fail(err)
		return err
	}
}

// Close closes and forgets the channel for key. It's a no-op if key was
// never routed to.
func (r *Router[K, T]) Close(key K) (mchan.Status, error) {
	r.mu.Lock()
	ch, ok := r.channels[key]
	if ok {
		delete(r.channels, key)
	}
	r.mu.Unlock()

	if !ok {
		return mchan.StatusClosed, nil
	}

	logrus.WithField("key", key).Info("dispatch: closing channel")

	return ch.Close()
}

// CloseAll closes every channel currently tracked by the router.
func (r *Router[K, T]) CloseAll() {
	r.mu.Lock()
	channels := r.channels
	r.channels = make(map[K]*mchan.Channel[T])
	r.mu.Unlock()

	for key, ch := range channels {
		logrus.WithField("key", key).Info("dispatch: closing channel")
		ch.Close()
	}
}
