package inkscan

import (
	"fmt"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

// ParseFace parses TTF font data into a face usable with Config.Face. Larger
// point sizes mean fewer text rows on the panel.
func ParseFace(data []byte, points float64) (font.Face, error) {
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("inkscan: parse font: %w", err)
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    points,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}
