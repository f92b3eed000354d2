//go:build tinygo && baremetal

package hal

import (
	"image/color"
	"io"
	"machine"

	"tinygo.org/x/drivers/ws2812"
)

type tinyGoHAL struct {
	logger *serialLogger
	led    *pinLED
	gpio   GPIO
	button GPIOPin
	strip  *ws2812Strip
}

// New returns a microcontroller HAL: a WS2812 strip on opts.StripPin, the
// button on opts.ButtonPin and the default serial port for logs and commands.
func New(opts Options) (HAL, error) {
	if opts.StripLength <= 0 {
		opts.StripLength = defaultStripLength
	}

	ledPin := machine.LED
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led := &pinLED{pin: ledPin}

	dataPin := machine.Pin(opts.StripPin)
	dataPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	button := &mcuPin{pin: machine.Pin(opts.ButtonPin), name: "BTN"}

	return &tinyGoHAL{
		logger: &serialLogger{},
		led:    led,
		gpio:   newVirtualGPIO([]GPIOPin{newLEDPin("LED", led), button}),
		button: button,
		strip: &ws2812Strip{
			dev: ws2812.New(dataPin),
			n:   opts.StripLength,
		},
	}, nil
}

func (h *tinyGoHAL) Logger() Logger   { return h.logger }
func (h *tinyGoHAL) LED() LED         { return h.led }
func (h *tinyGoHAL) Strip() Strip     { return h.strip }
func (h *tinyGoHAL) GPIO() GPIO       { return h.gpio }
func (h *tinyGoHAL) Button() GPIOPin  { return h.button }
func (h *tinyGoHAL) Display() Display { return nil }

// Console shares the default serial port with the log.
func (h *tinyGoHAL) Console() io.ReadWriter { return serialConsole{} }

type ws2812Strip struct {
	dev ws2812.Device
	n   int
}

func (s *ws2812Strip) Len() int { return s.n }

func (s *ws2812Strip) WriteColors(buf []color.RGBA) error {
	if len(buf) != s.n {
		return errFrameLength
	}
	return s.dev.WriteColors(buf)
}
