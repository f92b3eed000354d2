package render

import (
	"image/color"

	"ledmcu/hal"
	"ledmcu/proto"
)

var dark = color.RGBA{A: 0xFF}

// BasePattern lights every stride-th pixel of dst starting at index 0 and
// darkens the rest. A percentage of 0 leaves dst dark.
func BasePattern(dst []color.RGBA, c proto.Color, percentage uint8) {
	stride := proto.Stride(percentage)
	lit := c.RGBA()
	for i := range dst {
		if stride > 0 && i%stride == 0 {
			dst[i] = lit
		} else {
			dst[i] = dark
		}
	}
}

// RotateRight shifts buf one slot to the right; the last pixel wraps to index 0.
func RotateRight(buf []color.RGBA) {
	n := len(buf)
	if n < 2 {
		return
	}
	last := buf[n-1]
	copy(buf[1:], buf[:n-1])
	buf[0] = last
}

// Recolor paints every lit pixel of buf with c.
func Recolor(buf []color.RGBA, c proto.Color) {
	lit := c.RGBA()
	for i := range buf {
		if !IsDark(buf[i]) {
			buf[i] = lit
		}
	}
}

// IsDark reports whether a pixel emits no light.
func IsDark(c color.RGBA) bool { return hal.IsDark(c) }

// Clear darkens every pixel of buf.
func Clear(buf []color.RGBA) {
	for i := range buf {
		buf[i] = dark
	}
}
