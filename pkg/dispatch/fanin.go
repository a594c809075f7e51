package dispatch

import "github.com/matrix-org/mchan/pkg/mchan"

// FanIn starts one goroutine per entry in producers, each blocking-sending
// its values in order onto a single shared channel of the given capacity.
// It returns the channel and a function the caller should run (typically in
// its own goroutine) that waits for every producer to finish and then
// closes the channel - draining readers keep seeing StatusSuccess for
// whatever is still buffered, and see StatusClosed only once it's empty.
func FanIn[T any](capacity int, producers [][]T) (*mchan.Channel[T], func(), error) {
	ch, err := mchan.Create[T](capacity)
	if err != nil {
		return nil, nil, err
	}

	done := make(chan struct{}, len(producers))

	for _, values := range producers {
		values := values

		go func() {
			defer func() { done <- struct{}{} }()

			for _, v := range values {
				ch.Send(v, true)
			}
		}()
	}

	closeWhenDone := func() {
		for range producers {
			<-done
		}

		ch.Close()
	}

	return ch, closeWhenDone, nil
}
