package utils

import (
	"fmt"
	"image/color"
	"strings"
)

// HexToRGBA converts a color expressed as a hexadecimal string ("#rgb",
// "#rrggbb" or "#rrggbbaa") to an NRGBA color.
func HexToRGBA(x string) (color.NRGBA, error) {
	var r, g, b uint8
	a := uint8(255)

	hex := strings.TrimPrefix(x, "#")
	var (
		n   int
		err error
	)
	switch len(hex) {
	case 3:
		n, err = fmt.Sscanf(hex, "%1x%1x%1x", &r, &g, &b)
		r |= r << 4
		g |= g << 4
		b |= b << 4
		n++
	case 6:
		n, err = fmt.Sscanf(hex, "%2x%2x%2x", &r, &g, &b)
		n++
	case 8:
		n, err = fmt.Sscanf(hex, "%2x%2x%2x%2x", &r, &g, &b, &a)
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", x)
	}
	if err != nil || n != 4 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", x)
	}
	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}
