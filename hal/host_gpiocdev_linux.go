//go:build linux && !tinygo

package hal

import (
	"fmt"
	"sync"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// cdevPin is a GPIO line on a Linux gpiochip character device.
type cdevPin struct {
	mu     sync.Mutex
	chip   string
	offset int
	name   string

	line    *gpiod.Line
	mode    GPIOMode
	pull    GPIOPull
	edge    GPIOEdge
	handler func()
}

func newCdevPin(chip string, offset int) (*cdevPin, error) {
	p := &cdevPin{
		chip:   chip,
		offset: offset,
		name:   fmt.Sprintf("%s:%d", chip, offset),
	}
	if err := p.request(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *cdevPin) Name() string { return p.name }

func (p *cdevPin) Caps() GPIOCaps {
	return GPIOCapInput | GPIOCapOutput | GPIOCapPullUp | GPIOCapPullDown | GPIOCapInterrupt
}

// request (re)acquires the line with the current mode, bias and edge settings.
// Callers hold p.mu, except during construction.
func (p *cdevPin) request() error {
	if p.line != nil {
		_ = p.line.Close()
		p.line = nil
	}

	var opts []gpiod.LineReqOption
	switch p.mode {
	case GPIOModeOutput:
		opts = append(opts, gpiod.AsOutput(0))
	default:
		opts = append(opts, gpiod.AsInput)
	}
	switch p.pull {
	case GPIOPullUp:
		opts = append(opts, gpiod.WithPullUp)
	case GPIOPullDown:
		opts = append(opts, gpiod.WithPullDown)
	default:
		opts = append(opts, gpiod.WithBiasDisabled)
	}

	if p.mode == GPIOModeInput && p.edge != GPIOEdgeNone && p.handler != nil {
		switch p.edge {
		case GPIOEdgeRising:
			opts = append(opts, gpiod.WithRisingEdge)
		case GPIOEdgeFalling:
			opts = append(opts, gpiod.WithFallingEdge)
		case GPIOEdgeBoth:
			opts = append(opts, gpiod.WithBothEdges)
		}
		h := p.handler
		opts = append(opts, gpiod.WithEventHandler(func(gpiod.LineEvent) { h() }))
	}

	l, err := gpiod.RequestLine(p.chip, p.offset, opts...)
	if err != nil {
		return fmt.Errorf("gpio: request %s: %w", p.name, err)
	}
	p.line = l
	return nil
}

func (p *cdevPin) Configure(mode GPIOMode, pull GPIOPull) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if mode != GPIOModeInput && mode != GPIOModeOutput {
		return fmt.Errorf("gpio: pin %s: invalid mode", p.name)
	}
	if pull > GPIOPullDown {
		return fmt.Errorf("gpio: pin %s: invalid pull", p.name)
	}
	p.mode = mode
	p.pull = pull
	return p.request()
}

func (p *cdevPin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return false, fmt.Errorf("gpio: pin %s: not requested", p.name)
	}
	v, err := p.line.Value()
	if err != nil {
		return false, fmt.Errorf("gpio: pin %s: read: %w", p.name, err)
	}
	return v != 0, nil
}

func (p *cdevPin) Write(level bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != GPIOModeOutput || p.line == nil {
		return fmt.Errorf("gpio: pin %s: not in output mode", p.name)
	}
	v := 0
	if level {
		v = 1
	}
	return p.line.SetValue(v)
}

func (p *cdevPin) SetInterrupt(edge GPIOEdge, handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if handler == nil {
		edge = GPIOEdgeNone
	}
	p.edge = edge
	p.handler = handler
	return p.request()
}

func (p *cdevPin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return nil
	}
	err := p.line.Close()
	p.line = nil
	return err
}
