package hal

import (
	"errors"
	"image/color"
	"io"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

var ErrNotImplemented = errors.New("not implemented")

const defaultStripLength = 60

// Strip is the pixel sink for an addressable LED strip.
//
// Every WriteColors call replaces the whole frame; there is no partial update.
type Strip interface {
	Len() int
	WriteColors(buf []color.RGBA) error
}

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the preview framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Options selects pins and sizes for a board.
type Options struct {
	// StripLength is the number of pixels on the strip.
	StripLength int
	// StripPin is the data pin of the strip (MCU only).
	StripPin int
	// ButtonPin is the button pin number (MCU) or virtual pin index (host).
	ButtonPin int
	// GPIOChip and ButtonLine select a gpiocdev line for the button on Linux hosts.
	GPIOChip   string
	ButtonLine int
	// TraceFrames logs every strip frame (host only).
	TraceFrames bool
	// Console exposes stdin/stdout as the command console on the host. The
	// MCU console is always its default serial port.
	Console bool
}

// HAL provides the only contact point between the firmware and the outside world.
type HAL interface {
	Logger() Logger
	LED() LED
	Strip() Strip
	GPIO() GPIO
	Button() GPIOPin
	Display() Display
	// Console is the line-oriented command console, or nil.
	Console() io.ReadWriter
}
