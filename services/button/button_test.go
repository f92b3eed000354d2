package button

import (
	"context"
	"errors"
	"testing"
	"time"

	"ledmcu/hal"
	"ledmcu/kernel"
	"ledmcu/proto"
)

func newPin() *hal.VirtualPin {
	return hal.NewVirtualPin("BTN", hal.GPIOCapInput|hal.GPIOCapPullUp|hal.GPIOCapInterrupt)
}

func TestPressSendsOff(t *testing.T) {
	pin := newPin()
	ch := kernel.NewChannel[proto.Command]()
	s, err := New(pin, ch.Attach())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if lvl, _ := pin.Read(); !lvl {
		t.Fatal("idle button level low, want pulled up")
	}
	if err := pin.Press(); err != nil {
		t.Fatalf("Press: %v", err)
	}

	cmd, err := ch.RecvTimeout(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("RecvTimeout: %v", err)
	}
	if cmd != proto.OffCommand {
		t.Fatalf("received %v, want %v", cmd, proto.OffCommand)
	}
	if got := s.Presses(); got != 1 {
		t.Fatalf("Presses() = %d, want 1", got)
	}
}

func TestFallingEdgeIgnored(t *testing.T) {
	pin := newPin()
	ch := kernel.NewChannel[proto.Command]()
	s, err := New(pin, ch.Attach())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	_ = pin.Drive(false)
	if got := ch.Len(); got != 0 {
		t.Fatalf("Len() = %d after falling edge, want 0", got)
	}
}

func TestFullRingCountsDrops(t *testing.T) {
	pin := newPin()
	ch := kernel.NewChannel[proto.Command]()
	s, err := New(pin, ch.Attach())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	const presses = 20
	for i := 0; i < presses; i++ {
		_ = pin.Press()
	}
	if got := s.Presses(); got != presses {
		t.Fatalf("Presses() = %d, want %d", got, presses)
	}
	if s.Dropped() == 0 {
		t.Fatal("Dropped() = 0, want drops on a full ring")
	}
	if got := uint32(ch.Len()) + s.Dropped(); got != presses {
		t.Fatalf("queued+dropped = %d, want %d", got, presses)
	}
}

func TestCloseDisarms(t *testing.T) {
	pin := newPin()
	ch := kernel.NewChannel[proto.Command]()
	s, err := New(pin, ch.Attach())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_ = pin.Press()
	if s.Presses() != 0 {
		t.Fatal("interrupt fired after Close")
	}
	if _, err := ch.Recv(context.Background()); !errors.Is(err, kernel.ErrNoProducers) {
		t.Fatalf("Recv() err = %v, want ErrNoProducers", err)
	}
}

func TestClosedChannelDropsPress(t *testing.T) {
	pin := newPin()
	ch := kernel.NewChannel[proto.Command]()
	s, err := New(pin, ch.Attach())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	ch.Close()
	_ = pin.Press()
	if got := s.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}
}

func TestRequiresInterruptPin(t *testing.T) {
	pin := hal.NewVirtualPin("GPIO1", hal.GPIOCapInput)
	ch := kernel.NewChannel[proto.Command]()
	if _, err := New(pin, ch.Attach()); !errors.Is(err, ErrNoInterrupt) {
		t.Fatalf("New() err = %v, want ErrNoInterrupt", err)
	}
}
