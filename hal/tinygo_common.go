//go:build tinygo && baremetal

package hal

import (
	"errors"
	"machine"
)

var errFrameLength = errors.New("strip: frame length mismatch")

type serialLogger struct{}

func (l *serialLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		machine.Serial.WriteByte(s[i])
	}
	machine.Serial.WriteByte('\r')
	machine.Serial.WriteByte('\n')
}

func (l *serialLogger) WriteLineBytes(b []byte) {
	for i := 0; i < len(b); i++ {
		machine.Serial.WriteByte(b[i])
	}
	machine.Serial.WriteByte('\r')
	machine.Serial.WriteByte('\n')
}

// serialConsole reads what the serial driver has buffered. A read never
// blocks; it returns 0 bytes when nothing is pending.
type serialConsole struct{}

func (serialConsole) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}

func (serialConsole) Write(p []byte) (int, error) { return machine.Serial.Write(p) }

type pinLED struct {
	pin machine.Pin
}

func (l *pinLED) High() { l.pin.High() }
func (l *pinLED) Low()  { l.pin.Low() }

// mcuPin is a machine pin with hardware edge interrupts.
type mcuPin struct {
	pin  machine.Pin
	name string
	mode GPIOMode
}

func (p *mcuPin) Name() string { return p.name }

func (p *mcuPin) Caps() GPIOCaps {
	return GPIOCapInput | GPIOCapOutput | GPIOCapPullUp | GPIOCapPullDown | GPIOCapInterrupt
}

func (p *mcuPin) Configure(mode GPIOMode, pull GPIOPull) error {
	var m machine.PinMode
	switch {
	case mode == GPIOModeOutput:
		m = machine.PinOutput
	case pull == GPIOPullUp:
		m = machine.PinInputPullup
	case pull == GPIOPullDown:
		m = machine.PinInputPulldown
	default:
		m = machine.PinInput
	}
	p.pin.Configure(machine.PinConfig{Mode: m})
	p.mode = mode
	return nil
}

func (p *mcuPin) Read() (bool, error) { return p.pin.Get(), nil }

func (p *mcuPin) Write(level bool) error {
	if p.mode != GPIOModeOutput {
		return errors.New("gpio: pin not in output mode")
	}
	p.pin.Set(level)
	return nil
}

func (p *mcuPin) SetInterrupt(edge GPIOEdge, handler func()) error {
	if handler == nil || edge == GPIOEdgeNone {
		return p.pin.SetInterrupt(0, nil)
	}
	var change machine.PinChange
	switch edge {
	case GPIOEdgeRising:
		change = machine.PinRising
	case GPIOEdgeFalling:
		change = machine.PinFalling
	default:
		change = machine.PinToggle
	}
	return p.pin.SetInterrupt(change, func(machine.Pin) { handler() })
}
