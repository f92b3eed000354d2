package hal

import (
	"fmt"
	"sync"
)

// GPIOMode selects whether a pin is an input or output.
type GPIOMode uint8

const (
	GPIOModeInput GPIOMode = iota
	GPIOModeOutput
)

// GPIOPull selects the pull resistor configuration.
type GPIOPull uint8

const (
	GPIOPullNone GPIOPull = iota
	GPIOPullUp
	GPIOPullDown
)

func (p GPIOPull) String() string {
	switch p {
	case GPIOPullNone:
		return "none"
	case GPIOPullUp:
		return "up"
	case GPIOPullDown:
		return "down"
	default:
		return "invalid"
	}
}

// GPIOEdge selects which level transitions fire a pin interrupt.
type GPIOEdge uint8

const (
	GPIOEdgeNone GPIOEdge = iota
	GPIOEdgeRising
	GPIOEdgeFalling
	GPIOEdgeBoth
)

func (e GPIOEdge) fires(from, to bool) bool {
	switch {
	case from == to:
		return false
	case e == GPIOEdgeBoth:
		return true
	case e == GPIOEdgeRising:
		return to
	case e == GPIOEdgeFalling:
		return !to
	default:
		return false
	}
}

// GPIOCaps declares what operations a pin supports.
type GPIOCaps uint8

const (
	GPIOCapInput GPIOCaps = 1 << iota
	GPIOCapOutput
	GPIOCapPullUp
	GPIOCapPullDown
	GPIOCapInterrupt
)

// GPIO provides access to general-purpose IO pins.
//
// Implementations may return nil if GPIO is unsupported.
type GPIO interface {
	PinCount() int
	Pin(id int) GPIOPin
}

// GPIOPin is a single digital IO pin.
type GPIOPin interface {
	Name() string
	Caps() GPIOCaps
	Configure(mode GPIOMode, pull GPIOPull) error
	Read() (level bool, err error)
	Write(level bool) error
}

// GPIOInterruptPin is a pin that can call a handler on level transitions.
//
// The handler may run in interrupt context: it must not block or allocate.
// Passing GPIOEdgeNone or a nil handler disables the interrupt.
type GPIOInterruptPin interface {
	GPIOPin
	SetInterrupt(edge GPIOEdge, handler func()) error
}

type nullGPIO struct{}

func (nullGPIO) PinCount() int      { return 0 }
func (nullGPIO) Pin(id int) GPIOPin { return nil }

type virtualGPIO struct {
	pins []GPIOPin
}

func newVirtualGPIO(pins []GPIOPin) GPIO {
	if len(pins) == 0 {
		return nullGPIO{}
	}
	return &virtualGPIO{pins: pins}
}

func (g *virtualGPIO) PinCount() int {
	if g == nil {
		return 0
	}
	return len(g.pins)
}

func (g *virtualGPIO) Pin(id int) GPIOPin {
	if g == nil || id < 0 || id >= len(g.pins) {
		return nil
	}
	return g.pins[id]
}

// VirtualPin is an in-memory pin. Its input level is driven from outside
// (a key press in the preview window, or a test) with Drive.
type VirtualPin struct {
	mu      sync.Mutex
	name    string
	caps    GPIOCaps
	mode    GPIOMode
	pull    GPIOPull
	level   bool
	edge    GPIOEdge
	handler func()
}

// NewVirtualPin returns an unconfigured input pin.
func NewVirtualPin(name string, caps GPIOCaps) *VirtualPin {
	return &VirtualPin{
		name: name,
		caps: caps,
		mode: GPIOModeInput,
		pull: GPIOPullNone,
	}
}

func (p *VirtualPin) Name() string   { return p.name }
func (p *VirtualPin) Caps() GPIOCaps { return p.caps }

func (p *VirtualPin) Configure(mode GPIOMode, pull GPIOPull) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch mode {
	case GPIOModeInput:
		if p.caps&GPIOCapInput == 0 {
			return fmt.Errorf("gpio: pin %s: input unsupported", p.name)
		}
	case GPIOModeOutput:
		if p.caps&GPIOCapOutput == 0 {
			return fmt.Errorf("gpio: pin %s: output unsupported", p.name)
		}
	default:
		return fmt.Errorf("gpio: pin %s: invalid mode", p.name)
	}

	switch pull {
	case GPIOPullNone:
	case GPIOPullUp:
		if p.caps&GPIOCapPullUp == 0 {
			return fmt.Errorf("gpio: pin %s: pull-up unsupported", p.name)
		}
	case GPIOPullDown:
		if p.caps&GPIOCapPullDown == 0 {
			return fmt.Errorf("gpio: pin %s: pull-down unsupported", p.name)
		}
	default:
		return fmt.Errorf("gpio: pin %s: invalid pull", p.name)
	}

	p.mode = mode
	p.pull = pull
	if mode == GPIOModeInput {
		// An idle input floats to its pull level.
		p.level = pull == GPIOPullUp
	}
	return nil
}

func (p *VirtualPin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != GPIOModeInput && p.mode != GPIOModeOutput {
		return false, fmt.Errorf("gpio: pin %s: not configured", p.name)
	}
	return p.level, nil
}

func (p *VirtualPin) Write(level bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != GPIOModeOutput {
		return fmt.Errorf("gpio: pin %s: not in output mode", p.name)
	}
	p.level = level
	return nil
}

func (p *VirtualPin) SetInterrupt(edge GPIOEdge, handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if edge != GPIOEdgeNone && p.caps&GPIOCapInterrupt == 0 {
		return fmt.Errorf("gpio: pin %s: interrupts unsupported", p.name)
	}
	if handler == nil {
		edge = GPIOEdgeNone
	}
	p.edge = edge
	p.handler = handler
	return nil
}

// Drive sets the externally applied level of an input pin and fires the
// interrupt handler on a matching edge. The handler runs on the caller's
// goroutine, like an ISR preempting it.
func (p *VirtualPin) Drive(level bool) error {
	p.mu.Lock()
	if p.mode != GPIOModeInput {
		p.mu.Unlock()
		return fmt.Errorf("gpio: pin %s: not in input mode", p.name)
	}
	from := p.level
	p.level = level
	fire := p.edge.fires(from, level)
	h := p.handler
	p.mu.Unlock()

	if fire && h != nil {
		h()
	}
	return nil
}

// Press simulates an active-low push button: pulled low, then released.
func (p *VirtualPin) Press() error {
	if err := p.Drive(false); err != nil {
		return err
	}
	return p.Drive(true)
}

type ledPin struct {
	mu    sync.Mutex
	led   LED
	name  string
	level bool
}

func newLEDPin(name string, led LED) GPIOPin {
	if led == nil {
		return nil
	}
	return &ledPin{led: led, name: name}
}

func (p *ledPin) Name() string   { return p.name }
func (p *ledPin) Caps() GPIOCaps { return GPIOCapOutput }

func (p *ledPin) Configure(mode GPIOMode, pull GPIOPull) error {
	if mode != GPIOModeOutput {
		return fmt.Errorf("gpio: pin %s: only output supported", p.name)
	}
	if pull != GPIOPullNone {
		return fmt.Errorf("gpio: pin %s: pull unsupported", p.name)
	}
	return nil
}

func (p *ledPin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, nil
}

func (p *ledPin) Write(level bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
	if level {
		p.led.High()
	} else {
		p.led.Low()
	}
	return nil
}
