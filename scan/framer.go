// Package scan turns the unframed byte stream of a serial barcode scanner
// into discrete, bounded text events.
//
// A Framer is fed one byte at a time and emits a line whenever a terminator
// (CR or LF) completes a non-empty accumulator. A Source runs a Framer
// against a live byte source in its own goroutine and forwards events to a
// handler, so callers never touch the serial port directly.
package scan

import (
	"errors"
	"strings"
)

// Framing errors.
var (
	ErrLineTooLong = errors.New("scan: line too long")
)

// DefaultMaxLineLen bounds the accumulator. Barcodes longer than this are
// dropped and reported, never truncated silently.
const DefaultMaxLineLen = 128

// Framer accumulates bytes until a line terminator and emits the framed
// line. It holds no reference to the byte source; callers feed it.
type Framer struct {
	buf     []byte
	max     int
	discard bool
}

// NewFramer returns a framer bounded to maxLen accumulated bytes.
// A maxLen of zero or less selects DefaultMaxLineLen.
func NewFramer(maxLen int) *Framer {
	if maxLen <= 0 {
		maxLen = DefaultMaxLineLen
	}
	return &Framer{
		buf: make([]byte, 0, maxLen),
		max: maxLen,
	}
}

// Feed consumes a single byte.
//
// It returns (line, true, nil) when a terminator completes a non-empty line,
// ("", false, ErrLineTooLong) once when the accumulator overflows, and
// ("", false, nil) for any ordinary byte. A terminator on an empty
// accumulator is ignored, so CRLF pairs and repeated terminators never emit
// empty lines. An over-length line is dropped whole: the overflow is
// reported once and every remaining byte up to the next terminator is
// swallowed, after which the framer is ready for the next line.
func (f *Framer) Feed(b byte) (string, bool, error) {
	switch {
	case b == '\r' || b == '\n':
		if f.discard {
			f.discard = false
			return "", false, nil
		}
		if len(f.buf) == 0 {
			return "", false, nil
		}
		line := decode(f.buf)
		f.buf = f.buf[:0]
		if line == "" {
			return "", false, nil
		}
		return line, true, nil

	case f.discard:
		return "", false, nil

	case len(f.buf) < f.max:
		f.buf = append(f.buf, b)
		return "", false, nil

	default:
		f.buf = f.buf[:0]
		f.discard = true
		return "", false, ErrLineTooLong
	}
}

// decode converts accumulated bytes to text, replacing invalid UTF-8
// sequences and trimming surrounding whitespace. Scanners occasionally emit
// garbage bytes mid-code; decoding is lossy rather than a fault.
func decode(buf []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(buf), "�"))
}
