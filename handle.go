package inkscan

import (
	"errors"
	"fmt"
)

// Errors returned by Handle.Submit.
var (
	ErrQueueFull = errors.New("inkscan: job queue full")
	ErrStopped   = errors.New("inkscan: coordinator stopped")
	ErrLineRange = errors.New("inkscan: line out of range")
)

// Handle submits jobs to a running coordinator. Handles are plain values:
// copy one to hand a producer its own submission capability. A Handle never
// touches the display; only the coordinator does.
type Handle struct {
	jobs chan<- Job
	done <-chan struct{}
	rows int
}

// Rows is the screen's text row capacity. UpdateLine jobs must target a line
// in [0, Rows).
func (h Handle) Rows() int {
	return h.rows
}

// Submit enqueues a job without blocking. It fails fast with ErrQueueFull
// when the queue is at capacity and ErrStopped once the coordinator has shut
// down. UpdateLine jobs with an out-of-range line are rejected with
// ErrLineRange before they reach the queue.
func (h Handle) Submit(job Job) error {
	if u, ok := job.(UpdateLine); ok {
		if u.Line < 0 || u.Line >= h.rows {
			return fmt.Errorf("%w: %d of %d rows", ErrLineRange, u.Line, h.rows)
		}
	}
	select {
	case <-h.done:
		return ErrStopped
	default:
	}
	select {
	case h.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}
