// Package pixel implements the packed monochrome color and image types used
// by bistable e-paper displays.
//
// The color model is compatible with Go's native [color.Color], and the image
// type with the [image.Image] / [draw.Image] interfaces, so text can be
// rendered onto a display buffer with the standard library and
// golang.org/x/image font machinery.
package pixel
