// Package inkscan coordinates a line-oriented text screen on a bistable
// e-paper panel fed by asynchronous producers such as a serial barcode
// scanner.
//
// One coordinator goroutine owns the framebuffer and the display driver
// exclusively. Producers never touch hardware: they submit Clear, ShowText
// and UpdateLine jobs through a Handle and the coordinator drains them in
// FIFO order, picking a full or quick refresh per job and reconciling the
// panel's base plane at strategy transitions.
package inkscan

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/image/font"
)

// Errors returned by Start.
var (
	ErrNoDriver  = errors.New("inkscan: display driver is nil")
	ErrPanelSize = errors.New("inkscan: invalid panel size")
)

// Driver is the display hardware contract the coordinator drives. All calls
// are blocking and may fail; the coordinator is the only caller. Reset is
// expected to have run before the driver is handed to Start.
type Driver interface {
	// Reset wakes the panel and re-runs controller init.
	Reset() error

	// SyncBase loads the controller's base plane from pix without a
	// visible refresh.
	SyncBase(pix []byte) error

	// RefreshFull shows pix with the full, flashing waveform.
	RefreshFull(pix []byte) error

	// RefreshQuick shows pix with the partial waveform, differencing
	// against the base plane.
	RefreshQuick(pix []byte) error

	// Sleep puts the panel into deep sleep.
	Sleep() error
}

// Config is the coordinator configuration.
type Config struct {
	// Width of the panel in pixels, 122 when zero.
	Width int

	// Height of the panel in pixels, 250 when zero.
	Height int

	// QueueSize bounds the job queue, 8 when zero. Submissions beyond it
	// fail fast instead of blocking the producer.
	QueueSize int

	// Face renders text rows; the built-in 7x13 bitmap face when nil.
	Face font.Face

	// Logger receives refresh failures and shutdown noise. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// Coordinator owns a panel and applies queued jobs to it, one at a time.
type Coordinator struct {
	handle Handle
	stop   chan struct{}
	done   chan struct{}
}

// Start spawns the coordinator goroutine and takes exclusive ownership of
// drv until Close. The driver must already be reset and ready.
func Start(drv Driver, config *Config) (*Coordinator, error) {
	if drv == nil {
		return nil, ErrNoDriver
	}
	if config == nil {
		config = new(Config)
	}
	width := config.Width
	if width == 0 {
		width = 122
	}
	height := config.Height
	if height == 0 {
		height = 250
	}
	if width < 8 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrPanelSize, width, height)
	}
	queueSize := config.QueueSize
	if queueSize == 0 {
		queueSize = 8
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fb := NewFramebuffer(width, height, config.Face)
	jobs := make(chan Job, queueSize)
	c := &Coordinator{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	c.handle = Handle{jobs: jobs, done: c.done, rows: fb.Rows()}

	go c.run(drv, fb, jobs, logger)
	return c, nil
}

// Handle returns a submission handle for producers. Handles stay valid after
// Close but every Submit then fails with ErrStopped.
func (c *Coordinator) Handle() Handle {
	return c.handle
}

// Close stops the coordinator, applies the jobs it has already accepted,
// puts the panel to sleep and waits for the goroutine to exit. Submissions
// racing Close may be rejected with ErrStopped or dropped. Close is
// idempotent.
func (c *Coordinator) Close() error {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	<-c.done
	return nil
}

func (c *Coordinator) run(drv Driver, fb *Framebuffer, jobs <-chan Job, logger *slog.Logger) {
	defer close(c.done)

	last := StrategyNone
	for {
		select {
		case <-c.stop:
			// Drain jobs accepted before the stop so a Submit that
			// returned nil is never silently lost.
			for {
				select {
				case job := <-jobs:
					last = apply(drv, fb, job, last, logger)
				default:
					if err := drv.Sleep(); err != nil {
						logger.Warn("display sleep failed", "err", err)
					}
					return
				}
			}
		case job := <-jobs:
			last = apply(drv, fb, job, last, logger)
		}
	}
}

// apply runs one job against the framebuffer and the panel, returning the
// strategy to record as history. A driver failure leaves history at
// StrategyNone so the next quick refresh re-primes the base plane.
func apply(drv Driver, fb *Framebuffer, job Job, last Strategy, logger *slog.Logger) Strategy {
	switch j := job.(type) {
	case Clear:
		fb.Clear()
	case ShowText:
		fb.SetText(j.Text)
	case UpdateLine:
		fb.SetLine(j.Line, j.Text)
	}

	strategy, sync := decide(job, last)
	if sync {
		if err := drv.SyncBase(fb.Pix()); err != nil {
			logger.Error("base plane sync failed", "err", err)
			return StrategyNone
		}
	}

	var err error
	if strategy == StrategyQuick {
		err = drv.RefreshQuick(fb.Pix())
	} else {
		err = drv.RefreshFull(fb.Pix())
	}
	if err != nil {
		logger.Error("refresh failed", "strategy", strategy, "err", err)
		return StrategyNone
	}
	return strategy
}
