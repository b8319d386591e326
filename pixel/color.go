package pixel

import "image/color"

// MonoModel converts any color to a 1-bit monochrome color.
var MonoModel color.Model = color.ModelFunc(monoModel)

// The two representable colors. On a bistable panel White maps to a set bit
// (the controller's idle state) and Black to a cleared bit.
var (
	Black = Mono{false}
	White = Mono{true}
)

// Mono represents a 1-bit monochrome color.
type Mono struct {
	White bool
}

func (c Mono) RGBA() (r, g, b, a uint32) {
	if c.White {
		return 0xffff, 0xffff, 0xffff, 0xffff
	}
	return 0, 0, 0, 0xffff
}

func monoModel(c color.Color) color.Color {
	if _, ok := c.(Mono); ok {
		return c
	}
	r, g, b, _ := c.RGBA()

	// These coefficients (the fractions 0.299, 0.587 and 0.114) are the same
	// as those given by the JFIF specification and used by func RGBToYCbCr in
	// ycbcr.go.
	//
	// Note that 19595 + 38470 + 7471 equals 65536.
	y := (19595*r + 38470*g + 7471*b + 1<<15) >> 16

	return Mono{White: y >= 0x8000}
}
