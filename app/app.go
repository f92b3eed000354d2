package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ledmcu/hal"
	"ledmcu/internal/buildinfo"
	"ledmcu/kernel"
	"ledmcu/proto"
	"ledmcu/services/button"
	"ledmcu/services/listener"
	"ledmcu/services/render"
	"ledmcu/transport/serial"
)

// System is the running firmware: the render engine plus its producers.
type System struct {
	h   hal.HAL
	log *slog.Logger

	ch       *kernel.Channel[proto.Command]
	engine   *render.Service
	button   *button.Service
	listener *listener.Service
	console  *listener.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
	faults chan error

	mu    sync.Mutex
	fault error
}

// New starts the firmware and returns its step func. The step func reports
// the first fatal fault, after it has been logged and painted.
func New(ctx context.Context, h hal.HAL, cfg Config, tr listener.Transport) func() error {
	sys, err := Start(ctx, h, cfg, tr)
	if err != nil {
		reportFault(h, err)
		return func() error { return err }
	}
	return sys.Step
}

// Start builds the command channel, the engine and the producers and runs
// them until ctx is done. tr may be nil when there is no message bus. With
// the console enabled, commands typed on the board's console are a second
// producer next to the bus.
func Start(ctx context.Context, h hal.HAL, cfg Config, tr listener.Transport) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	strip := h.Strip()
	if strip == nil {
		return nil, errors.New("app: no strip")
	}

	log := NewLogger(h.Logger(), cfg.Log.Level)
	ctx, cancel := context.WithCancel(ctx)
	s := &System{
		h:      h,
		log:    log,
		ch:     kernel.NewChannel[proto.Command](),
		cancel: cancel,
		faults: make(chan error, 3),
	}
	s.engine = render.New(strip, s.ch, log, cfg.renderConfig())

	// Producers attach before the engine starts receiving.
	if cfg.Button.Enabled {
		pin := h.Button()
		if pin == nil {
			cancel()
			return nil, errors.New("app: button enabled but the board has none")
		}
		btn, err := button.New(pin, s.ch.Attach())
		if err != nil {
			cancel()
			return nil, err
		}
		s.button = btn
	}
	if tr != nil {
		s.listener = listener.New(tr, s.ch.Attach(), log, cfg.listenerConfig())
	}
	var con *serial.Console
	if cfg.Console.Enabled {
		if port := h.Console(); port != nil {
			con = serial.New(port, serial.Options{
				PollInterval: cfg.Console.PollInterval,
				MaxLine:      cfg.Console.MaxLine,
			})
			s.console = listener.New(con, s.ch.Attach(), log.With("source", "console"), cfg.listenerConfig())
		} else {
			log.Warn("console enabled but the board has none")
		}
	}

	log.Info("ledmcu starting",
		"build", buildinfo.String(),
		"strip", strip.Len(),
		"button", s.button != nil,
		"listener", s.listener != nil,
		"console", s.console != nil,
	)
	if led := h.LED(); led != nil {
		led.High()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.engine.Run(ctx)
		if s.button != nil {
			_ = s.button.Close()
		}
		s.ch.Close()
		if err != nil {
			s.faults <- err
		}
		log.Info("render engine stopped", "writes", s.engine.Writes())
	}()

	if s.listener != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.listener.Run(ctx); err != nil {
				s.faults <- err
				return
			}
			log.Info("listener stopped",
				"received", s.listener.Received(),
				"dropped", s.listener.Dropped(),
			)
		}()
	}
	if s.console != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer con.Close()
			if err := s.console.Run(ctx); err != nil {
				s.faults <- err
				return
			}
			log.Info("console stopped",
				"received", s.console.Received(),
				"dropped", s.console.Dropped(),
				"overflow", con.Overflow(),
			)
		}()
	}
	return s, nil
}

// Step reports the first fatal fault, if any. It never blocks.
func (s *System) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fault != nil {
		return s.fault
	}
	select {
	case err := <-s.faults:
		s.fault = err
		if led := s.h.LED(); led != nil {
			led.Low()
		}
		reportFault(s.h, err)
		s.cancel()
		return err
	default:
		return nil
	}
}

// Stats is a snapshot of the firmware counters.
type Stats struct {
	Writes         uint64
	Queued         int
	Received       uint32
	DecodeDropped  uint32
	Presses        uint32
	PressesDropped uint32
}

func (s *System) Stats() Stats {
	st := Stats{
		Writes: s.engine.Writes(),
		Queued: s.ch.Len(),
	}
	for _, l := range []*listener.Service{s.listener, s.console} {
		if l != nil {
			st.Received += l.Received()
			st.DecodeDropped += l.Dropped()
		}
	}
	if s.button != nil {
		st.Presses = s.button.Presses()
		st.PressesDropped = s.button.Dropped()
	}
	return st
}

// Stop cancels every component and waits for them to return.
func (s *System) Stop() error {
	s.cancel()
	s.wg.Wait()
	_ = s.Step()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}
