// Command inkscan shows barcode scans on a 2.13" e-paper panel.
//
// A serial barcode scanner feeds the display coordinator: every decoded code
// lands on its own line with a quick partial refresh, and a full refresh
// clears the screen at startup and shutdown. An optional status LED blinks
// while the scanner is healthy.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tarm/serial"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/kobubox/inkscan"
	"github.com/kobubox/inkscan/blink"
	"github.com/kobubox/inkscan/epd"
	"github.com/kobubox/inkscan/scan"
)

func main() {
	spiPortFlag := flag.String("spi", "", "SPI port name (default: first available)")
	dcPinFlag := flag.String("dc", "GPIO25", "Data/Command GPIO pin (DC)")
	resetPinFlag := flag.String("reset", "GPIO17", "Reset GPIO pin")
	busyPinFlag := flag.String("busy", "GPIO24", "Busy GPIO pin")
	ledPinFlag := flag.String("led", "", "Status LED GPIO pin (optional)")
	widthFlag := flag.Int("width", 0, "Panel width in pixels")
	heightFlag := flag.Int("height", 0, "Panel height in pixels")
	serialPortFlag := flag.String("port", "/dev/ttyUSB0", "Scanner serial port")
	baudFlag := flag.Int("baud", 9600, "Scanner baud rate")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if _, err := host.Init(); err != nil {
		fatal(logger, err)
	}

	port, err := spireg.Open(*spiPortFlag)
	if err != nil {
		fatal(logger, fmt.Errorf("open SPI: %w", err))
	}
	defer port.Close()

	dev, err := epd.New(port,
		gpioreg.ByName(*dcPinFlag),
		gpioreg.ByName(*resetPinFlag),
		gpioreg.ByName(*busyPinFlag),
		&epd.Opts{Width: *widthFlag, Height: *heightFlag})
	if err != nil {
		fatal(logger, fmt.Errorf("open panel: %w", err))
	}
	logger.Info("panel ready", "dev", dev.String())

	coord, err := inkscan.Start(dev, &inkscan.Config{
		Width:  dev.Bounds().Dx(),
		Height: dev.Bounds().Dy(),
		Logger: logger,
	})
	if err != nil {
		fatal(logger, err)
	}
	handle := coord.Handle()

	var led *blink.Blinker
	if *ledPinFlag != "" {
		led, err = blink.Start(gpioreg.ByName(*ledPinFlag))
		if err != nil {
			fatal(logger, fmt.Errorf("open LED: %w", err))
		}
		led.Set(true, time.Second)
	}

	submit(logger, handle, inkscan.ShowText{Text: "ready to scan"})

	tty, err := serial.OpenPort(&serial.Config{
		Name:        *serialPortFlag,
		Baud:        *baudFlag,
		ReadTimeout: 200 * time.Millisecond,
	})
	if err != nil {
		fatal(logger, fmt.Errorf("open scanner: %w", err))
	}
	defer tty.Close()

	// Scans rotate through the rows below the header line.
	row := 1
	source, err := scan.Start(tty, func(ev scan.Event) {
		if ev.Err != nil {
			logger.Warn("scan error", "err", ev.Err)
			if led != nil {
				led.Set(true, 100*time.Millisecond)
			}
			return
		}
		logger.Info("scanned", "code", ev.Text)
		submit(logger, handle, inkscan.UpdateLine{Line: row, Text: ev.Text})
		if row++; row >= handle.Rows() {
			row = 1
		}
	}, &scan.Config{Logger: logger})
	if err != nil {
		fatal(logger, err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Info("shutting down")
	case <-source.Done():
		logger.Error("scanner source terminated")
	}

	source.Stop()
	if led != nil {
		led.Stop()
	}
	submit(logger, handle, inkscan.Clear{})
	if err := coord.Close(); err != nil {
		fatal(logger, err)
	}
}

// submit drops the job on a full queue; the display simply misses one
// update, which beats stalling the scanner.
func submit(logger *slog.Logger, h inkscan.Handle, job inkscan.Job) {
	if err := h.Submit(job); err != nil {
		logger.Warn("job dropped", "job", fmt.Sprintf("%T", job), "err", err)
	}
}

func fatal(logger *slog.Logger, err error) {
	logger.Error(err.Error())
	os.Exit(1)
}
