package app

import (
	"image/color"
	"strings"
	"unicode/utf8"

	"ledmcu/hal"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

// reportFault logs err and paints it on the preview display, if there is one.
func reportFault(h hal.HAL, err error) {
	if h == nil || err == nil {
		return
	}
	lines := []string{"ledmcu fault:"}
	lines = append(lines, strings.Split(err.Error(), "\n")...)

	if l := h.Logger(); l != nil {
		for _, line := range lines {
			l.WriteLineString(line)
		}
	}

	disp := h.Display()
	if disp == nil {
		return
	}
	fb := disp.Framebuffer()
	if fb == nil {
		return
	}
	drawFault(fb, lines)
}

func drawFault(fb hal.Framebuffer, lines []string) {
	fb.ClearRGB(0x40, 0, 0)

	font := &tinyfont.TomThumb
	_, outboxWidth := tinyfont.LineWidth(font, "0")
	fontWidth := int16(outboxWidth)
	fontHeight := int16(font.GetYAdvance())
	if fontWidth <= 0 || fontHeight <= 0 {
		_ = fb.Present()
		return
	}

	var d drivers.Displayer = faultDisplay{fb: fb}
	fg := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

	_, maxH := d.Size()
	cols := int16(fb.Width()) / fontWidth
	if cols <= 0 {
		cols = 1
	}

	y := fontHeight
	for _, line := range lines {
		for len(line) > 0 {
			if y > maxH {
				_ = d.Display()
				return
			}
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(d, font, 0, y, chunk, fg)
			y += fontHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	_ = d.Display()
}

// faultDisplay adapts an RGB565 framebuffer to drivers.Displayer.
type faultDisplay struct {
	fb hal.Framebuffer
}

func (d faultDisplay) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d faultDisplay) SetPixel(x, y int16, c color.RGBA) {
	hal.SetPixelRGB565(d.fb, int(x), int(y), c)
}

func (d faultDisplay) Display() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Present()
}

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if int64(len(s)) <= int64(n) {
		return s, ""
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}
