package pixel

import (
	"image"
	"image/color"
	"image/draw"
)

// Image is a mutable image whose pixels can be cleared or filled in bulk.
type Image interface {
	draw.Image

	// Clear the image to black.
	Clear()

	// Fill the image with a single color.
	Fill(color.Color)
}

// Buffer holds the packed pixel values.
type Buffer struct {
	// Rect is the image bounding box.
	Rect image.Rectangle

	// Pix are the packed image pixels.
	Pix []byte

	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
}

func (p *Buffer) Bounds() image.Rectangle {
	return p.Rect
}

func (p *Buffer) Clear() {
	for i := range p.Pix {
		p.Pix[i] = 0x00
	}
}

// MonoImage is a 1-bit per pixel monochrome image, packed horizontally with
// the most significant bit first. This is the layout e-paper controllers
// (SSD1680 and friends) consume directly, so Pix can be streamed to the
// panel RAM without reshuffling.
type MonoImage struct {
	Buffer
}

func NewMonoImage(w, h int) *MonoImage {
	stride := (w + 7) / 8 // round up to whole bytes
	return &MonoImage{
		Buffer: Buffer{
			Rect:   image.Rect(0, 0, w, h),
			Pix:    make([]byte, stride*h),
			Stride: stride,
		},
	}
}

func (p *MonoImage) ColorModel() color.Model {
	return MonoModel
}

func (p *MonoImage) PixOffset(x, y int) int {
	return y*p.Stride + x/8
}

func (p *MonoImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return color.Transparent
	}

	var (
		pos = y*p.Stride + x/8
		bit = byte(0x80) >> uint(x&7)
	)
	return Mono{
		White: p.Pix[pos]&bit != 0,
	}
}

func (p *MonoImage) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return
	}

	var (
		pos = y*p.Stride + x/8
		bit = byte(0x80) >> uint(x&7)
	)
	if monoModel(c).(Mono).White {
		p.Pix[pos] |= bit
	} else {
		p.Pix[pos] &^= bit
	}
}

func (p *MonoImage) Fill(c color.Color) {
	var value byte
	if monoModel(c).(Mono).White {
		value = 0xff
	}
	for i := range p.Pix {
		p.Pix[i] = value
	}
}

// FillRows fills the horizontal band of rows [y0, y1) with a single color.
// Rows outside the image are ignored.
func (p *MonoImage) FillRows(y0, y1 int, c color.Color) {
	if y0 < p.Rect.Min.Y {
		y0 = p.Rect.Min.Y
	}
	if y1 > p.Rect.Max.Y {
		y1 = p.Rect.Max.Y
	}

	var value byte
	if monoModel(c).(Mono).White {
		value = 0xff
	}
	for y := y0; y < y1; y++ {
		row := p.Pix[y*p.Stride : (y+1)*p.Stride]
		for i := range row {
			row[i] = value
		}
	}
}

// Interface checks.
var _ Image = (*MonoImage)(nil)
