package inkscan

import (
	"image"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kobubox/inkscan/pixel"
)

// Text starts a couple of pixels in from the panel edge.
const leftMargin = 2

// Framebuffer is the coordinator's persistent image of the screen: a packed
// monochrome bitmap divided into fixed-height text rows. It is not safe for
// concurrent use; the coordinator owns it exclusively.
type Framebuffer struct {
	img    *pixel.MonoImage
	face   font.Face
	rowH   int
	ascent int
	rows   int
}

// NewFramebuffer allocates a blank (white) framebuffer of the given pixel
// size. A nil face selects the built-in 7x13 bitmap face. The row capacity
// is the pixel height divided by the face's line height.
func NewFramebuffer(w, h int, face font.Face) *Framebuffer {
	if face == nil {
		face = basicfont.Face7x13
	}
	m := face.Metrics()
	rowH := m.Height.Ceil()
	if rowH <= 0 {
		rowH = 13
	}

	fb := &Framebuffer{
		img:    pixel.NewMonoImage(w, h),
		face:   face,
		rowH:   rowH,
		ascent: m.Ascent.Ceil(),
		rows:   h / rowH,
	}
	fb.Clear()
	return fb
}

// Rows is the number of text rows the screen fits.
func (fb *Framebuffer) Rows() int {
	return fb.rows
}

// Bounds is the framebuffer bounding box.
func (fb *Framebuffer) Bounds() image.Rectangle {
	return fb.img.Bounds()
}

// Pix is the packed bitmap in panel RAM layout. The slice aliases the
// framebuffer's storage; it is only valid until the next mutation.
func (fb *Framebuffer) Pix() []byte {
	return fb.img.Pix
}

// Clear blanks the whole screen.
func (fb *Framebuffer) Clear() {
	fb.img.Fill(pixel.White)
}

// SetText clears the screen and renders text from the top row down, one
// screen row per '\n'-separated line. Lines beyond the row capacity are
// dropped.
func (fb *Framebuffer) SetText(text string) {
	fb.Clear()
	for i, line := range strings.Split(text, "\n") {
		if i >= fb.rows {
			break
		}
		fb.drawLine(i, line)
	}
}

// SetLine blanks a single text row and renders text into it. Rows outside
// the screen are ignored.
func (fb *Framebuffer) SetLine(row int, text string) {
	if row < 0 || row >= fb.rows {
		return
	}
	fb.img.FillRows(row*fb.rowH, (row+1)*fb.rowH, pixel.White)
	fb.drawLine(row, text)
}

func (fb *Framebuffer) drawLine(row int, text string) {
	d := font.Drawer{
		Dst:  fb.img,
		Src:  image.NewUniform(pixel.Black),
		Face: fb.face,
		Dot:  fixed.P(leftMargin, row*fb.rowH+fb.ascent),
	}
	d.DrawString(text)
}
