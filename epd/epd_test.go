package epd

import (
	"errors"
	"image"
	"testing"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// fakePin implements both gpio.PinOut and gpio.PinIn.
type fakePin struct {
	name  string
	level gpio.Level
}

func (p *fakePin) String() string                            { return p.name }
func (p *fakePin) Halt() error                               { return nil }
func (p *fakePin) Name() string                              { return p.name }
func (p *fakePin) Number() int                               { return -1 }
func (p *fakePin) Function() string                          { return "fake" }
func (p *fakePin) Out(l gpio.Level) error                    { p.level = l; return nil }
func (p *fakePin) PWM(gpio.Duty, physic.Frequency) error     { return nil }
func (p *fakePin) In(gpio.Pull, gpio.Edge) error             { return nil }
func (p *fakePin) Read() gpio.Level                          { return p.level }
func (p *fakePin) WaitForEdge(time.Duration) bool            { return false }
func (p *fakePin) Pull() gpio.Pull                           { return gpio.PullNoChange }
func (p *fakePin) DefaultPull() gpio.Pull                    { return gpio.PullNoChange }

var (
	_ gpio.PinOut = (*fakePin)(nil)
	_ gpio.PinIn  = (*fakePin)(nil)
)

// op is a single SPI transfer, tagged by the DC pin level at send time.
type op struct {
	isData bool
	bytes  []byte
}

// recordConn captures every transfer so tests can assert the command stream.
type recordConn struct {
	dc  *fakePin
	ops []op
}

func (c *recordConn) String() string { return "record" }

func (c *recordConn) Tx(w, r []byte) error {
	c.ops = append(c.ops, op{
		isData: c.dc.level == gpio.High,
		bytes:  append([]byte(nil), w...),
	})
	return nil
}

func (c *recordConn) Duplex() conn.Duplex { return conn.Half }

// commands flattens the recorded stream into the sequence of command bytes.
func (c *recordConn) commands() []byte {
	var cmds []byte
	for _, o := range c.ops {
		if !o.isData {
			cmds = append(cmds, o.bytes[0])
		}
	}
	return cmds
}

func testDev(w, h int) (*Dev, *recordConn) {
	dc := &fakePin{name: "dc"}
	c := &recordConn{dc: dc}
	return &Dev{
		c:           c,
		dc:          dc,
		rst:         &fakePin{name: "rst"},
		busy:        &fakePin{name: "busy", level: gpio.Low},
		rect:        image.Rect(0, 0, w, h),
		stride:      (w + 7) / 8,
		busyTimeout: time.Second,
	}, c
}

func TestBufferLen(t *testing.T) {
	tests := []struct {
		w, h, want int
	}{
		{122, 250, 16 * 250},
		{128, 296, 16 * 296},
		{8, 1, 1},
	}
	for _, tt := range tests {
		d, _ := testDev(tt.w, tt.h)
		if got := d.BufferLen(); got != tt.want {
			t.Errorf("BufferLen(%dx%d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestRefreshCommandSequence(t *testing.T) {
	d, c := testDev(122, 250)
	pix := make([]byte, d.BufferLen())

	if err := d.RefreshFull(pix); err != nil {
		t.Fatalf("RefreshFull failed: %v", err)
	}

	want := []byte{cmdSetRAMXCounter, cmdSetRAMYCounter, cmdWriteRAM, cmdDisplayUpdateControl2, cmdMasterActivation}
	got := c.commands()
	if len(got) != len(want) {
		t.Fatalf("expected %d commands, got %d: %#x", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d: expected %#02x, got %#02x", i, want[i], got[i])
		}
	}
}

func TestRefreshModes(t *testing.T) {
	modeOf := func(c *recordConn) byte {
		for i, o := range c.ops {
			if !o.isData && o.bytes[0] == cmdDisplayUpdateControl2 {
				return c.ops[i+1].bytes[0]
			}
		}
		return 0
	}

	d, c := testDev(122, 250)
	pix := make([]byte, d.BufferLen())
	if err := d.RefreshFull(pix); err != nil {
		t.Fatalf("RefreshFull failed: %v", err)
	}
	if m := modeOf(c); m != updateFull {
		t.Errorf("full refresh used update mode %#02x, want %#02x", m, updateFull)
	}

	d, c = testDev(122, 250)
	if err := d.RefreshQuick(pix); err != nil {
		t.Fatalf("RefreshQuick failed: %v", err)
	}
	if m := modeOf(c); m != updateQuick {
		t.Errorf("quick refresh used update mode %#02x, want %#02x", m, updateQuick)
	}
}

func TestSyncBaseDoesNotRefresh(t *testing.T) {
	d, c := testDev(122, 250)
	pix := make([]byte, d.BufferLen())

	if err := d.SyncBase(pix); err != nil {
		t.Fatalf("SyncBase failed: %v", err)
	}
	for _, cmd := range c.commands() {
		if cmd == cmdMasterActivation {
			t.Fatal("SyncBase must not trigger a visible refresh")
		}
	}

	var wrote bool
	for _, cmd := range c.commands() {
		if cmd == cmdWriteRAMBase {
			wrote = true
		}
	}
	if !wrote {
		t.Error("SyncBase did not write the base plane")
	}
}

func TestBufferSizeValidation(t *testing.T) {
	d, _ := testDev(122, 250)
	for _, n := range []int{0, 1, d.BufferLen() - 1, d.BufferLen() + 1} {
		if err := d.RefreshFull(make([]byte, n)); !errors.Is(err, ErrBufferSize) {
			t.Errorf("RefreshFull with %d bytes: expected ErrBufferSize, got %v", n, err)
		}
	}
}

func TestSleepGuards(t *testing.T) {
	d, _ := testDev(122, 250)
	pix := make([]byte, d.BufferLen())

	if err := d.Sleep(); err != nil {
		t.Fatalf("Sleep failed: %v", err)
	}
	if err := d.Sleep(); err != nil {
		t.Fatalf("Sleep must be idempotent, got %v", err)
	}

	if err := d.RefreshFull(pix); !errors.Is(err, ErrAsleep) {
		t.Errorf("RefreshFull after Sleep: expected ErrAsleep, got %v", err)
	}
	if err := d.SyncBase(pix); !errors.Is(err, ErrAsleep) {
		t.Errorf("SyncBase after Sleep: expected ErrAsleep, got %v", err)
	}

	// Reset wakes the panel again.
	if err := d.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := d.RefreshFull(pix); err != nil {
		t.Errorf("RefreshFull after Reset failed: %v", err)
	}
}

func TestBusyTimeout(t *testing.T) {
	d, _ := testDev(122, 250)
	d.busy.(*fakePin).level = gpio.High // stuck busy
	d.busyTimeout = 5 * time.Millisecond

	pix := make([]byte, d.BufferLen())
	if err := d.RefreshFull(pix); !errors.Is(err, ErrBusyTimeout) {
		t.Errorf("expected ErrBusyTimeout, got %v", err)
	}
}

func TestChunkedDataWrites(t *testing.T) {
	d, c := testDev(122, 250)
	big := make([]byte, batchSize+100)

	if err := d.command(cmdWriteRAM, big...); err != nil {
		t.Fatalf("command failed: %v", err)
	}

	var dataOps int
	var total int
	for _, o := range c.ops {
		if o.isData {
			dataOps++
			total += len(o.bytes)
			if len(o.bytes) > batchSize {
				t.Errorf("data transfer of %d bytes exceeds batch size", len(o.bytes))
			}
		}
	}
	if dataOps != 2 || total != len(big) {
		t.Errorf("expected 2 chunked transfers carrying %d bytes, got %d carrying %d", len(big), dataOps, total)
	}
}
