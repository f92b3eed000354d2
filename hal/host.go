//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type hostHAL struct {
	logger *hostLogger
	led    *hostLED
	gpio   GPIO
	button GPIOPin
	btn    *VirtualPin
	strip  *previewStrip
	fb     *hostFramebuffer
	con    *hostConsole
}

// New returns a host HAL implementation.
//
// The strip is previewed in a framebuffer. The button is a virtual pin
// ("BTN", pressed with the space bar in the window) unless a gpiocdev chip is
// configured, in which case the line on that chip is used.
func New(opts Options) (HAL, error) {
	if opts.StripLength <= 0 {
		opts.StripLength = defaultStripLength
	}

	logger := &hostLogger{w: os.Stdout}
	led := &hostLED{logger: logger}
	btn := NewVirtualPin("BTN", GPIOCapInput|GPIOCapPullUp|GPIOCapPullDown|GPIOCapInterrupt)

	pins := []GPIOPin{newLEDPin("LED", led), btn}

	var button GPIOPin = btn
	if opts.GPIOChip != "" {
		line, err := newCdevPin(opts.GPIOChip, opts.ButtonLine)
		if err != nil {
			return nil, fmt.Errorf("hal: button line %s:%d: %w", opts.GPIOChip, opts.ButtonLine, err)
		}
		pins = append(pins, line)
		button = line
	} else if opts.ButtonPin > 0 && opts.ButtonPin < len(pins) {
		button = pins[opts.ButtonPin]
	}

	w, h := previewSize(opts.StripLength)
	fb := newHostFramebuffer(w, h)

	var con *hostConsole
	if opts.Console {
		con = &hostConsole{r: os.Stdin, out: logger}
	}

	return &hostHAL{
		logger: logger,
		led:    led,
		gpio:   newVirtualGPIO(pins),
		button: button,
		btn:    btn,
		strip:  newPreviewStrip(opts.StripLength, fb, logger, opts.TraceFrames),
		fb:     fb,
		con:    con,
	}, nil
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) LED() LED         { return h.led }
func (h *hostHAL) Strip() Strip     { return h.strip }
func (h *hostHAL) GPIO() GPIO       { return h.gpio }
func (h *hostHAL) Button() GPIOPin  { return h.button }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }

func (h *hostHAL) Console() io.ReadWriter {
	if h.con == nil {
		return nil
	}
	return h.con
}

// driveButton applies a level to the virtual button pin.
func (h *hostHAL) driveButton(level bool) {
	if err := h.btn.Drive(level); err != nil {
		h.logger.WriteLineString("hal: button: " + err.Error())
	}
}

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostLogger struct {
	mu sync.Mutex
	w  *os.File
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

type hostLED struct {
	mu     sync.Mutex
	on     bool
	logger *hostLogger
}

func (l *hostLED) High() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = true
	l.logger.WriteLineString("led: HIGH")
}

func (l *hostLED) Low() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = false
	l.logger.WriteLineString("led: LOW")
}

// VirtualButton returns the virtual button pin of a host HAL, or nil.
func VirtualButton(h HAL) *VirtualPin {
	hh, ok := h.(*hostHAL)
	if !ok {
		return nil
	}
	return hh.btn
}
