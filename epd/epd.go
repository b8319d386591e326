// Package epd drives SSD1680-class 2.13" bistable e-paper panels over SPI.
//
// The controller keeps two RAM planes: the frame being shown (0x24) and a
// base plane (0x26) holding the previously shown content. Full refreshes
// rewrite the whole panel and clear ghosting at the cost of a multi-second
// flash; quick refreshes difference the frame against the base plane and
// complete in a fraction of that. SyncBase must be called to reconcile the
// base plane whenever the caller switches from full to quick refreshes.
package epd

import (
	"errors"
	"fmt"
	"image"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Errors.
var (
	ErrDCPin       = errors.New("epd: data/command (DC) GPIO pin is invalid")
	ErrResetPin    = errors.New("epd: reset GPIO pin is invalid")
	ErrBusyPin     = errors.New("epd: busy GPIO pin is invalid")
	ErrBufferSize  = errors.New("epd: invalid buffer size")
	ErrBusyTimeout = errors.New("epd: timeout waiting for busy signal")
	ErrAsleep      = errors.New("epd: display is in deep sleep")
)

// SSD1680 command set (the subset this driver uses).
const (
	cmdDriverOutputControl   = 0x01
	cmdDeepSleep             = 0x10
	cmdDataEntryMode         = 0x11
	cmdSoftReset             = 0x12
	cmdTempSensorControl     = 0x18
	cmdMasterActivation      = 0x20
	cmdDisplayUpdateControl1 = 0x21
	cmdDisplayUpdateControl2 = 0x22
	cmdWriteRAM              = 0x24
	cmdWriteRAMBase          = 0x26
	cmdBorderWaveform        = 0x3C
	cmdSetRAMXRange          = 0x44
	cmdSetRAMYRange          = 0x45
	cmdSetRAMXCounter        = 0x4E
	cmdSetRAMYCounter        = 0x4F
)

// Display update sequences for DisplayUpdateControl2.
const (
	updateFull  = 0xF7
	updateQuick = 0xFF
)

const (
	defaultWidth  = 122
	defaultHeight = 250

	// Max bytes per SPI transfer; spidev commonly caps a transaction at one
	// page of its bounce buffer.
	batchSize = 4096
)

// Opts is the panel configuration.
type Opts struct {
	// Width of the panel in pixels, 122 when zero.
	Width int

	// Height of the panel in pixels, 250 when zero.
	Height int

	// BusyTimeout bounds every wait on the busy pin. A full refresh takes
	// about two seconds; the default of ten seconds leaves headroom for
	// cold panels.
	BusyTimeout time.Duration
}

// Dev is an open handle to the panel.
type Dev struct {
	c    conn.Conn
	dc   gpio.PinOut
	rst  gpio.PinOut
	busy gpio.PinIn

	rect        image.Rectangle
	stride      int
	busyTimeout time.Duration
	asleep      bool
}

// New opens the panel on the given SPI port. dc selects data versus command
// bytes, rst drives the hardware reset line, and busy is the controller's
// busy output. The panel is reset and initialized before New returns; a
// failure here is fatal and the device must not be used.
func New(p spi.Port, dc, rst gpio.PinOut, busy gpio.PinIn, opts *Opts) (*Dev, error) {
	if dc == nil || dc == gpio.INVALID {
		return nil, ErrDCPin
	}
	if rst == nil || rst == gpio.INVALID {
		return nil, ErrResetPin
	}
	if busy == nil {
		return nil, ErrBusyPin
	}

	if opts == nil {
		opts = new(Opts)
	}
	width := opts.Width
	if width == 0 {
		width = defaultWidth
	}
	height := opts.Height
	if height == 0 {
		height = defaultHeight
	}
	if width <= 0 || height <= 0 || height > 296 {
		return nil, fmt.Errorf("epd: unsupported panel size %dx%d", width, height)
	}
	busyTimeout := opts.BusyTimeout
	if busyTimeout == 0 {
		busyTimeout = 10 * time.Second
	}

	c, err := p.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}

	if err := busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("epd: busy pin: %w", err)
	}

	d := &Dev{
		c:           c,
		dc:          dc,
		rst:         rst,
		busy:        busy,
		rect:        image.Rect(0, 0, width, height),
		stride:      (width + 7) / 8,
		busyTimeout: busyTimeout,
	}

	if err := d.Reset(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("EPD %dx%d", d.rect.Dx(), d.rect.Dy())
}

// Bounds is the panel bounding box.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// BufferLen is the expected length in bytes of a frame passed to SyncBase,
// RefreshFull and RefreshQuick: one bit per pixel, rows padded to whole
// bytes, MSB first, 1 = white.
func (d *Dev) BufferLen() int {
	return d.stride * d.rect.Dy()
}

// Reset pulses the hardware reset line and re-runs the controller init
// sequence. It wakes the panel from deep sleep.
func (d *Dev) Reset() (err error) {
	if err = d.rst.Out(gpio.High); err != nil {
		return
	}
	time.Sleep(20 * time.Millisecond)
	if err = d.rst.Out(gpio.Low); err != nil {
		return
	}
	time.Sleep(2 * time.Millisecond)
	if err = d.rst.Out(gpio.High); err != nil {
		return
	}
	time.Sleep(20 * time.Millisecond)

	if err = d.waitUntilIdle(); err != nil {
		return
	}
	if err = d.command(cmdSoftReset); err != nil {
		return
	}
	if err = d.waitUntilIdle(); err != nil {
		return
	}

	if err = d.init(); err != nil {
		return
	}

	d.asleep = false
	return nil
}

func (d *Dev) init() (err error) {
	height := d.rect.Dy()

	if err = d.command(cmdDriverOutputControl,
		byte((height-1)&0xff), byte((height-1)>>8), 0x00); err != nil {
		return
	}

	// X increments across a row, Y increments down the panel.
	if err = d.command(cmdDataEntryMode, 0x03); err != nil {
		return
	}
	if err = d.setWindow(); err != nil {
		return
	}

	if err = d.command(cmdBorderWaveform, 0x05); err != nil {
		return
	}
	if err = d.command(cmdDisplayUpdateControl1, 0x00, 0x80); err != nil {
		return
	}
	if err = d.command(cmdTempSensorControl, 0x80); err != nil {
		return
	}

	return d.waitUntilIdle()
}

func (d *Dev) setWindow() (err error) {
	var (
		xEnd = byte(d.stride - 1)
		yEnd = d.rect.Dy() - 1
	)
	if err = d.command(cmdSetRAMXRange, 0x00, xEnd); err != nil {
		return
	}
	return d.command(cmdSetRAMYRange, 0x00, 0x00, byte(yEnd&0xff), byte(yEnd>>8))
}

func (d *Dev) setCursor() (err error) {
	if err = d.command(cmdSetRAMXCounter, 0x00); err != nil {
		return
	}
	return d.command(cmdSetRAMYCounter, 0x00, 0x00)
}

// SyncBase writes pix into the controller's base plane without triggering a
// visible refresh. Quick refreshes difference against this plane; call it
// before the first quick refresh after any full refresh.
func (d *Dev) SyncBase(pix []byte) error {
	if err := d.checkFrame(pix); err != nil {
		return err
	}
	if err := d.setCursor(); err != nil {
		return err
	}
	return d.command(cmdWriteRAMBase, pix...)
}

// RefreshFull shows pix using the full waveform. Slow, visibly flashes, and
// clears accumulated ghosting.
func (d *Dev) RefreshFull(pix []byte) error {
	return d.refresh(pix, updateFull)
}

// RefreshQuick shows pix using the partial waveform. Fast and low-flicker,
// but only valid when the base plane matches what the panel currently shows.
func (d *Dev) RefreshQuick(pix []byte) error {
	return d.refresh(pix, updateQuick)
}

func (d *Dev) refresh(pix []byte, mode byte) error {
	if err := d.checkFrame(pix); err != nil {
		return err
	}
	if err := d.setCursor(); err != nil {
		return err
	}
	if err := d.command(cmdWriteRAM, pix...); err != nil {
		return err
	}
	if err := d.command(cmdDisplayUpdateControl2, mode); err != nil {
		return err
	}
	if err := d.command(cmdMasterActivation); err != nil {
		return err
	}
	return d.waitUntilIdle()
}

// Sleep puts the controller into deep sleep. The panel keeps its image; a
// Reset is required before further use.
func (d *Dev) Sleep() error {
	if d.asleep {
		return nil
	}
	if err := d.command(cmdDeepSleep, 0x01); err != nil {
		return err
	}
	d.asleep = true
	return nil
}

func (d *Dev) checkFrame(pix []byte) error {
	if d.asleep {
		return ErrAsleep
	}
	if len(pix) != d.BufferLen() {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrBufferSize, d.BufferLen(), len(pix))
	}
	return nil
}

func (d *Dev) command(cmd byte, data ...byte) (err error) {
	if err = d.dc.Out(gpio.Low); err != nil {
		return
	}
	if err = d.c.Tx([]byte{cmd}, nil); err != nil {
		return
	}
	if len(data) == 0 {
		return
	}
	if err = d.dc.Out(gpio.High); err != nil {
		return
	}
	return d.writeChunked(data)
}

func (d *Dev) writeChunked(data []byte) (err error) {
	for len(data) > 0 {
		n := len(data)
		if n > batchSize {
			n = batchSize
		}
		if err = d.c.Tx(data[:n], nil); err != nil {
			return
		}
		data = data[n:]
	}
	return
}

// waitUntilIdle polls the busy pin until the controller is ready. The pin is
// high while an operation is in flight.
func (d *Dev) waitUntilIdle() error {
	deadline := time.Now().Add(d.busyTimeout)
	for d.busy.Read() == gpio.High {
		if time.Now().After(deadline) {
			return ErrBusyTimeout
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
