// Package blink drives a status LED from a dedicated goroutine. The pin is
// owned exclusively by the worker; callers change the blink pattern through
// Set and never touch the pin directly.
package blink

import (
	"errors"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// ErrNoPin is returned by Start when the LED pin is invalid.
var ErrNoPin = errors.New("blink: LED pin is invalid")

const (
	// Shortest half-period the worker will honor. Faster toggling is not
	// visible and just burns CPU.
	minHalfPeriod = 10 * time.Millisecond

	// How often a disabled worker wakes to check for a new mode.
	idlePoll = 100 * time.Millisecond
)

type mode struct {
	enabled bool
	period  time.Duration
}

// Blinker is a handle to a running LED worker.
type Blinker struct {
	mode chan mode
	stop chan struct{}
	done chan struct{}
}

// Start spawns the worker and takes exclusive ownership of pin until Stop.
// The LED starts dark.
func Start(pin gpio.PinOut) (*Blinker, error) {
	if pin == nil || pin == gpio.INVALID {
		return nil, ErrNoPin
	}
	b := &Blinker{
		mode: make(chan mode, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go b.run(pin)
	return b, nil
}

// Set switches the blink pattern. A disabled blinker holds the LED dark.
// Set never blocks; when called faster than the worker drains, only the
// latest mode wins.
func (b *Blinker) Set(enabled bool, period time.Duration) {
	m := mode{enabled: enabled, period: period}
	for {
		select {
		case b.mode <- m:
			return
		default:
		}
		// Full: drop the stale mode and retry.
		select {
		case <-b.mode:
		default:
		}
	}
}

// Stop shuts the worker down and leaves the LED dark. Idempotent.
func (b *Blinker) Stop() {
	select {
	case <-b.stop:
	default:
		close(b.stop)
	}
	<-b.done
}

func (b *Blinker) run(pin gpio.PinOut) {
	defer close(b.done)
	defer pin.Out(gpio.Low)

	var (
		m     mode
		level gpio.Level
	)
	for {
		wait := idlePoll
		if m.enabled {
			level = !level
			pin.Out(level)
			wait = m.period / 2
			if wait < minHalfPeriod {
				wait = minHalfPeriod
			}
		} else if level {
			level = gpio.Low
			pin.Out(gpio.Low)
		}

		select {
		case <-b.stop:
			return
		case next := <-b.mode:
			m = next
		case <-time.After(wait):
		}
	}
}
