// Package render owns the LED strip. A single goroutine consumes commands
// from the command channel and turns them into strip frames.
package render

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"sync/atomic"
	"time"

	"ledmcu/hal"
	"ledmcu/kernel"
	"ledmcu/proto"
)

// SinkError reports a failed strip write. It is fatal for the engine.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string { return "render: strip write: " + e.Err.Error() }
func (e *SinkError) Unwrap() error { return e.Err }

// Config holds the pacing of the engine.
type Config struct {
	// OnHold is how long an On frame is held before the next command.
	OnHold time.Duration
	// RotateBase divided by the command speed is the period of one rotation step.
	RotateBase time.Duration
	// RetryDelay is the wait before receiving again once every producer is gone.
	RetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		OnHold:     time.Second,
		RotateBase: 10 * time.Second,
		RetryDelay: time.Second,
	}
}

// minStep keeps a tiny rotate_base from collapsing the step period to zero.
const minStep = time.Millisecond

type Service struct {
	strip hal.Strip
	ch    *kernel.Channel[proto.Command]
	log   *slog.Logger
	cfg   Config

	// Owned by the Run goroutine.
	cmd     proto.Command
	buf     []color.RGBA
	scratch []color.RGBA

	writes atomic.Uint64
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(strip hal.Strip, ch *kernel.Channel[proto.Command], log *slog.Logger, cfg Config) *Service {
	if log == nil {
		log = slog.Default()
	}
	n := strip.Len()
	s := &Service{
		strip:   strip,
		ch:      ch,
		log:     log.With("component", "render"),
		cfg:     cfg,
		cmd:     proto.InitialCommand,
		buf:     make([]color.RGBA, n),
		scratch: make([]color.RGBA, n),
		sleep:   sleepCtx,
	}
	Clear(s.buf)
	return s
}

// Writes returns the number of successful strip writes.
func (s *Service) Writes() uint64 { return s.writes.Load() }

// Run consumes commands until ctx is done or the channel is closed, then
// blanks the strip. It returns a *SinkError if the strip rejects a frame.
//
// While a Rotate command is retained the engine steps it once per period.
// A Rotate with the same percentage arriving mid-period only replaces the
// colour and speed of the next step; any other command applies at once.
func (s *Service) Run(ctx context.Context) error {
	var (
		anim     proto.Command
		period   time.Duration
		due      time.Time
		orphaned bool
	)
	for {
		cmd, err := s.receive(ctx, period, due)
		fresh := err == nil
		switch {
		case err == nil:
			orphaned = false
		case errors.Is(err, kernel.ErrTimeout):
			cmd = anim
		case errors.Is(err, kernel.ErrNoProducers):
			if !orphaned {
				s.log.Warn("no command producers left", "retry", s.cfg.RetryDelay)
				orphaned = true
			}
			if period == 0 {
				if s.sleep(ctx, s.cfg.RetryDelay) != nil {
					return s.shutdown()
				}
				continue
			}
			if s.sleep(ctx, time.Until(due)) != nil {
				return s.shutdown()
			}
			cmd = anim
		default:
			return s.shutdown()
		}

		if err := cmd.Validate(); err != nil {
			s.log.Warn("ignoring invalid command", "cmd", cmd.String(), "err", err)
			continue
		}
		if fresh && period > 0 && cmd.Mode == proto.ModeRotate && cmd.Percentage == anim.Percentage {
			anim = cmd
			continue
		}

		s.log.Debug("apply", "cmd", cmd.String())
		period, err = s.apply(ctx, cmd)
		if err != nil {
			var se *SinkError
			if errors.As(err, &se) {
				return err
			}
			return s.shutdown()
		}
		if period > 0 {
			anim = cmd
			due = time.Now().Add(period)
		}
	}
}

// receive waits for the next command. While animating it gives up with
// kernel.ErrTimeout once the next step is due.
func (s *Service) receive(ctx context.Context, period time.Duration, due time.Time) (proto.Command, error) {
	if period == 0 {
		return s.ch.Recv(ctx)
	}
	wait := time.Until(due)
	if wait <= 0 {
		return proto.Command{}, kernel.ErrTimeout
	}
	return s.ch.RecvTimeout(ctx, wait)
}

// apply renders cmd. For Rotate it returns the period until the next step.
func (s *Service) apply(ctx context.Context, cmd proto.Command) (time.Duration, error) {
	switch cmd.Mode {
	case proto.ModeOff:
		Clear(s.scratch)
		return 0, s.commit(cmd)

	case proto.ModeOn:
		if !cmd.Equal(s.cmd) {
			BasePattern(s.scratch, cmd.Color, cmd.Percentage)
			if err := s.commit(cmd); err != nil {
				return 0, err
			}
		}
		return 0, s.sleep(ctx, s.cfg.OnHold)

	case proto.ModeRotate:
		if s.cmd.Mode != proto.ModeRotate || s.cmd.Percentage != cmd.Percentage {
			BasePattern(s.scratch, cmd.Color, cmd.Percentage)
		} else {
			copy(s.scratch, s.buf)
			RotateRight(s.scratch)
			Recolor(s.scratch, cmd.Color)
		}
		if err := s.commit(cmd); err != nil {
			return 0, err
		}
		return max(s.cfg.RotateBase/time.Duration(cmd.Speed), minStep), nil
	}
	return 0, fmt.Errorf("render: unknown mode %d", cmd.Mode)
}

// commit writes the scratch frame and, on success, makes it the retained state.
func (s *Service) commit(cmd proto.Command) error {
	if err := s.strip.WriteColors(s.scratch); err != nil {
		return &SinkError{Err: err}
	}
	s.writes.Add(1)
	s.buf, s.scratch = s.scratch, s.buf
	s.cmd = cmd
	return nil
}

func (s *Service) shutdown() error {
	Clear(s.scratch)
	if err := s.commit(proto.OffCommand); err != nil {
		s.log.Warn("blank strip on shutdown", "err", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
