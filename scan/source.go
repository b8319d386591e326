package scan

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
)

// Source errors.
var (
	ErrNoSource  = errors.New("scan: byte source is nil")
	ErrNoHandler = errors.New("scan: event handler is nil")
)

// Event is a single scanner outcome: either a decoded line or a failure.
// Err is nil exactly when Text carries a scanned line.
type Event struct {
	Text string
	Err  error
}

// Config holds the scanner source configuration.
type Config struct {
	// MaxLineLen bounds a single scanned line, DefaultMaxLineLen when zero.
	MaxLineLen int

	// Logger used for read-loop diagnostics, slog.Default when nil.
	Logger *slog.Logger

	// Optional scanner control pins, owned by the read loop once Start
	// returns. Any of them may be nil; the matching Set call is then a
	// no-op. Trigger is active-low, as on GM65-class scanner modules.
	Trigger gpio.PinOut
	LED     gpio.PinOut
	Beep    gpio.PinOut
}

type controlTarget uint8

const (
	ctlTrigger controlTarget = iota
	ctlLED
	ctlBeep
)

type control struct {
	target controlTarget
	on     bool
}

// Source owns the read loop feeding a Framer from a byte source. It is a
// lightweight handle; the loop runs in its own goroutine and the caller
// interacts with it only through Stop and Done.
type Source struct {
	control chan control
	stop    chan struct{}
	done    chan struct{}
}

// Start takes ownership of the byte source and begins reading it in a new
// goroutine, invoking onEvent for every framed line and every failure.
//
// onEvent is called synchronously from the read loop and must not block:
// it is expected to do cheap forwarding only, such as a non-blocking job
// submission. A read that returns no data (n == 0, or io.EOF from a serial
// read timeout) is not an error; the loop keeps polling. Any other read
// error is surfaced once through onEvent and terminates the loop, after
// which the source is permanently inert.
func Start(r io.Reader, onEvent func(Event), config *Config) (*Source, error) {
	if r == nil {
		return nil, ErrNoSource
	}
	if onEvent == nil {
		return nil, ErrNoHandler
	}
	if config == nil {
		config = new(Config)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Source{
		control: make(chan control, 16),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run(r, NewFramer(config.MaxLineLen), onEvent, config, logger)

	return s, nil
}

// SetTrigger drives the scanner's trigger pin; active pulls it low to start
// a scan. No-op without a Trigger pin.
func (s *Source) SetTrigger(active bool) {
	s.send(control{target: ctlTrigger, on: active})
}

// SetLED drives the scanner's illumination LED pin. No-op without an LED pin.
func (s *Source) SetLED(on bool) {
	s.send(control{target: ctlLED, on: on})
}

// SetBeep drives the scanner's beeper pin. No-op without a Beep pin.
func (s *Source) SetBeep(on bool) {
	s.send(control{target: ctlBeep, on: on})
}

// send hands a control to the read loop. The loop picks controls up between
// reads, so delivery can lag by up to one read timeout. Controls sent after
// the loop has terminated are discarded.
func (s *Source) send(c control) {
	select {
	case s.control <- c:
	case <-s.done:
	}
}

// Stop asks the read loop to exit. It takes effect once the current read
// returns, so byte sources should be opened with a read timeout. Stop is
// idempotent and does not wait; use Done to observe termination.
func (s *Source) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Done is closed when the read loop has terminated, either by Stop or by an
// unrecoverable read error.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

func (s *Source) run(r io.Reader, framer *Framer, onEvent func(Event), config *Config, logger *slog.Logger) {
	defer close(s.done)

	buf := make([]byte, 64)
	for {
		select {
		case <-s.stop:
			return
		case c := <-s.control:
			s.applyControl(config, c, logger)
			continue
		default:
		}

		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			line, ok, ferr := framer.Feed(b)
			switch {
			case ferr != nil:
				logger.Warn("scan: dropped over-length line")
				onEvent(Event{Err: ferr})
			case ok:
				onEvent(Event{Text: line})
			}
		}

		switch {
		case err == nil:
			// Timeout with no data reads as (0, nil) on some sources;
			// keep polling either way.
		case errors.Is(err, io.EOF):
			// Serial reads opened with a timeout report io.EOF when no
			// data arrived. Not a fault.
		default:
			logger.Error("scan: read failed", "err", err)
			onEvent(Event{Err: fmt.Errorf("scan: read failed: %w", err)})
			return
		}
	}
}

func (s *Source) applyControl(config *Config, c control, logger *slog.Logger) {
	var (
		pin   gpio.PinOut
		level gpio.Level
	)
	switch c.target {
	case ctlTrigger:
		// Active-low.
		pin, level = config.Trigger, gpio.Level(!c.on)
	case ctlLED:
		pin, level = config.LED, gpio.Level(c.on)
	case ctlBeep:
		pin, level = config.Beep, gpio.Level(c.on)
	}
	if pin == nil {
		return
	}
	if err := pin.Out(level); err != nil {
		logger.Warn("scan: control pin write failed", "err", err)
	}
}
