// Package button turns button interrupts into Off commands.
package button

import (
	"errors"
	"fmt"
	"sync/atomic"

	"ledmcu/hal"
	"ledmcu/kernel"
	"ledmcu/proto"
)

var ErrNoInterrupt = errors.New("button: pin has no interrupt support")

type Service struct {
	pin  hal.GPIOInterruptPin
	out  *kernel.Sender[proto.Command]
	edge hal.GPIOEdge

	presses atomic.Uint32
	dropped atomic.Uint32
}

// New configures pin as a pulled-up input and arms a rising-edge interrupt
// that sends proto.OffCommand on out. The service owns out from here on.
func New(pin hal.GPIOPin, out *kernel.Sender[proto.Command]) (*Service, error) {
	ip, ok := pin.(hal.GPIOInterruptPin)
	if !ok || ip.Caps()&hal.GPIOCapInterrupt == 0 {
		return nil, ErrNoInterrupt
	}
	if err := ip.Configure(hal.GPIOModeInput, hal.GPIOPullUp); err != nil {
		return nil, fmt.Errorf("button: configure %s: %w", ip.Name(), err)
	}

	s := &Service{pin: ip, out: out, edge: hal.GPIOEdgeRising}
	if err := ip.SetInterrupt(s.edge, s.handle); err != nil {
		return nil, fmt.Errorf("button: arm %s: %w", ip.Name(), err)
	}
	return s, nil
}

// handle runs in interrupt context. It must not block or allocate.
func (s *Service) handle() {
	s.presses.Add(1)
	if !s.out.SendFromISR(proto.OffCommand) {
		s.dropped.Add(1)
	}
}

// Presses returns the number of edges seen.
func (s *Service) Presses() uint32 { return s.presses.Load() }

// Dropped returns the number of presses that found the channel full or closed.
func (s *Service) Dropped() uint32 { return s.dropped.Load() }

// Close disarms the interrupt and releases the producer handle.
func (s *Service) Close() error {
	err := s.pin.SetInterrupt(hal.GPIOEdgeNone, nil)
	s.out.Release()
	return err
}
