// Package worker provides a generic bounded worker: a single goroutine that
// processes tasks submitted through Send, calling OnTimeout if none arrive
// within Timeout. It is built directly on mchan.Channel rather than a
// native Go channel, and uses mchan's Select coordinator - bounded by a
// context deadline - to get timeout-while-waiting behavior that the
// underlying channel itself deliberately doesn't support.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matrix-org/mchan/pkg/mchan"
)

// Errors that may occur when sending tasks to a worker.
var (
	ErrWorkerClosed  = errors.New("worker is closed")
	ErrWorkerTooBusy = errors.New("worker is already overloaded")
)

// Config configures a worker.
type Config[T any] struct {
	// The capacity of the bounded channel feeding the worker.
	ChannelSize int
	// Timeout after which OnTimeout is called, if no task arrived meanwhile.
	Timeout time.Duration
	// Called once Timeout is reached without a task.
	OnTimeout func()
	// Called upon reception of a task.
	OnTask func(T)
}

// Worker wraps an mchan.Channel so that the channel can be closed from the
// outside exactly once, and so Send can check whether it's already closed
// before attempting to send.
type Worker[T any] struct {
	channel *mchan.Channel[T]
	mutex   sync.Mutex
	closed  bool
}

// StartWorker starts a worker that processes tasks sent to it via Send,
// calling c.OnTask for each one, and c.OnTimeout whenever c.Timeout elapses
// with nothing to process. The worker stops once Stop is called.
func StartWorker[T any](c Config[T]) *Worker[T] {
	size := c.ChannelSize
	if size <= 0 {
		size = 1
	}

	// Create is only fallible for a non-positive capacity, already guarded above.
	incoming, _ := mchan.Create[T](size)

	go func() {
		coordinator := mchan.NewCoordinator[T]()
		descriptors := []mchan.Descriptor[T]{
			{Channel: incoming, Direction: mchan.DirectionReceive},
		}

		for {
			ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
			_, status, task, err := coordinator.Select(ctx, descriptors)
			cancel()

			switch {
			case err != nil:
				// The deadline elapsed before the receive became ready.
				c.OnTimeout()
			case status == mchan.StatusClosed:
				return
			case status == mchan.StatusSuccess:
				c.OnTask(task)
			}
		}
	}()

	return &Worker[T]{channel: incoming}
}

// Stop closes the worker's channel unless it's already closed.
func (w *Worker[T]) Stop() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.closed {
		w.channel.Close()
		w.closed = true
	}
}

// Send submits a task to the worker without blocking. It returns
// ErrWorkerTooBusy if the worker's channel is full, and ErrWorkerClosed if
// the worker has already been stopped.
func (w *Worker[T]) Send(task T) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return ErrWorkerClosed
	}

	status, err := w.channel.Send(task, false)

	switch status {
	case mchan.StatusSuccess:
		return nil
	case mchan.StatusWouldBlock:
		return ErrWorkerTooBusy
	case mchan.StatusClosed:
		return ErrWorkerClosed
	default:
		return err
	}
}
