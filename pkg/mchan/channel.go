// Package mchan implements a bounded, multi-producer/multi-consumer message
// channel: a fixed-capacity FIFO queue guarded by a mutex and two condition
// variables, with an explicit close signal that wakes every blocked sender
// and receiver, and a Select coordinator that waits on several channels at
// once.
//
// Unlike a native Go channel, Close does not discard buffered messages:
// Receive keeps returning already-buffered values after Close until the
// buffer is drained, and only then starts returning StatusClosed. Send,
// on the other hand, returns StatusClosed immediately once the channel is
// closed, regardless of remaining capacity.
package mchan

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCapacityZero is returned by Create when asked for a non-positive
// capacity. Unbuffered (rendezvous) channels are not supported.
var ErrCapacityZero = errors.New("mchan: capacity must be positive")

// ErrDestroyOpen is the error carried by StatusDestroyError when Destroy is
// called on a channel that is still open.
var ErrDestroyOpen = errors.New("mchan: destroy called on an open channel")

// ErrDestroyNotEmpty is the error carried by StatusDestroyError when Destroy
// is called on a closed channel that still holds buffered, undelivered
// messages. The channel does not silently discard payloads it does not own.
var ErrDestroyNotEmpty = errors.New("mchan: destroy called on a channel with buffered messages")

// Channel is an independently addressable synchronization object: any number
// of goroutines may Send to or Receive from it concurrently. The zero value
// is not usable; construct one with Create.
type Channel[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	buffer   *ringBuffer[T]
	open     bool

	// signals are the readiness signals of every Select call currently
	// registered on this channel. A channel may be spanned by more than one
	// concurrent Select, so this is a slice rather than a single pointer -
	// see readinessSignal below for the register/unregister discipline that
	// keeps this list from outliving the Select call that owns each entry.
	signals []*readinessSignal
}

// Create returns a newly allocated, open channel with an empty FIFO of the
// given capacity. Capacity must be positive; capacity 0 (rendezvous mode)
// is not supported.
func Create[T any](capacity int) (*Channel[T], error) {
	if capacity <= 0 {
		return nil, ErrCapacityZero
	}

	c := &Channel[T]{
		buffer: newRingBuffer[T](capacity),
		open:   true,
	}
	c.notFull = sync.NewCond(&c.mu)
	c.notEmpty = sync.NewCond(&c.mu)

	return c, nil
}

// Cap returns the channel's fixed capacity.
func (c *Channel[T]) Cap() int {
	return c.buffer.Capacity()
}

// Len returns the number of currently buffered messages.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.buffer.Size()
}

// Send writes value to the channel. In blocking mode it waits, re-checking
// both the closed flag and the fullness predicate on every wakeup, until a
// slot becomes free, the channel closes, or the value is enqueued. In
// non-blocking mode it returns StatusWouldBlock immediately if the channel
// is full.
func (c *Channel[T]) Send(value T, blocking bool) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return StatusClosed, nil
	}

	if c.buffer.Size() == c.buffer.Capacity() {
		if !blocking {
			return StatusWouldBlock, nil
		}

		for {
			c.notFull.Wait()

			if !c.open {
				return StatusClosed, nil
			}

			if c.buffer.Size() < c.buffer.Capacity() {
				break
			}
		}
	}

	if err := c.buffer.push(value); err != nil {
		return StatusOther, fmt.Errorf("mchan: send: %w", err)
	}

	c.postReadiness()
	c.notEmpty.Signal()

	return StatusSuccess, nil
}

// Receive pops the oldest buffered value into the return slot. It returns
// StatusSuccess for as long as the buffer is non-empty, even after Close -
// the channel drains cleanly rather than discarding what was already
// enqueued. Only once the buffer is empty AND the channel is closed does it
// return StatusClosed. In non-blocking mode an empty-and-open channel yields
// StatusWouldBlock instead of waiting.
func (c *Channel[T]) Receive(blocking bool) (T, Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T

	if c.buffer.Size() == 0 {
		if !c.open {
			return zero, StatusClosed, nil
		}

		if !blocking {
			return zero, StatusWouldBlock, nil
		}

		for {
			c.notEmpty.Wait()

			if c.buffer.Size() > 0 {
				break
			}

			if !c.open {
				return zero, StatusClosed, nil
			}
		}
	}

	value, err := c.buffer.pop()
	if err != nil {
		return zero, StatusOther, fmt.Errorf("mchan: receive: %w", err)
	}

	c.postReadiness()
	c.notFull.Signal()

	return value, StatusSuccess, nil
}

// Close transitions the channel from open to closed. The transition happens
// at most once: a second call returns StatusClosed without touching state.
// Every goroutine currently blocked in Send or Receive on this channel wakes
// up, and every Select currently registered on it is woken as well.
func (c *Channel[T]) Close() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return StatusClosed, nil
	}

	c.open = false
	c.notFull.Broadcast()
	c.notEmpty.Broadcast()
	c.postReadiness()

	return StatusSuccess, nil
}

// Destroy releases a channel's resources. It is only legal on a closed
// channel with an empty buffer - the caller is expected to close and drain
// (or abandon) a channel before destroying it, since Channel never silently
// discards payloads it does not own. Go's garbage collector does the actual
// reclamation once the caller drops its last reference; Destroy exists to
// preserve the create/close/destroy lifecycle contract and to catch misuse.
func (c *Channel[T]) Destroy() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return StatusDestroyError, ErrDestroyOpen
	}

	if c.buffer.Size() != 0 {
		return StatusDestroyError, ErrDestroyNotEmpty
	}

	return StatusSuccess, nil
}

// sendReady reports whether a blocking Send would complete immediately:
// either there's room in the buffer, or the channel is closed (in which case
// Send would return StatusClosed right away).
func (c *Channel[T]) sendReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return !c.open || c.buffer.Size() < c.buffer.Capacity()
}

// receiveReady reports whether a blocking Receive would complete
// immediately: either there's a buffered value, or the channel is closed
// (in which case Receive would return StatusClosed right away).
func (c *Channel[T]) receiveReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.buffer.Size() > 0 || !c.open
}

// register attaches sig to this channel so that every subsequent successful
// Send, Receive, or Close posts to it. Must be paired with unregister.
func (c *Channel[T]) register(sig *readinessSignal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.signals = append(c.signals, sig)
}

// unregister detaches one registration of sig from this channel. It's a
// no-op if sig is not currently registered.
func (c *Channel[T]) unregister(sig *readinessSignal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.signals {
		if s == sig {
			c.signals = append(c.signals[:i], c.signals[i+1:]...)
			return
		}
	}
}

// postReadiness wakes every Select currently registered on this channel.
// Callers must hold c.mu.
func (c *Channel[T]) postReadiness() {
	for _, s := range c.signals {
		s.post()
	}
}

// readinessSignal is the per-Select wakeup described in the package's
// select coordinator: every registered channel posts to it on state change,
// and the coordinator sleeps on it between polling passes. It's a
// single-slot notify channel rather than a true counting semaphore - posts
// only ever need to guarantee "at least one more poll happens," so any
// posts that arrive while one is already pending coalesce into that single
// pending wakeup instead of queuing up. This also means post never blocks
// and never needs a matching wait to have happened first, unlike a
// semaphore release.
type readinessSignal struct {
	wake chan struct{}
}

func newReadinessSignal() *readinessSignal {
	return &readinessSignal{wake: make(chan struct{}, 1)}
}

// post wakes a pending or future wait. It never blocks: if a wakeup is
// already pending, this is a no-op.
func (r *readinessSignal) post() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// wait blocks until a post is pending, or ctx is done. A post made before
// wait was entered stays pending, so wait then returns immediately.
func (r *readinessSignal) wait(ctx context.Context) error {
	select {
	case <-r.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
