// Package listener subscribes to the command topic and forwards every
// decoded command to the render engine.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ledmcu/kernel"
	"ledmcu/proto"
)

// Event is one transport event. String returns the transport's debug
// rendering, which is what the payload extractor parses.
type Event interface {
	fmt.Stringer
}

// Transport is the message bus as seen by the listener.
//
// Next blocks until the next event. It returns io.EOF once the transport
// is closed.
type Transport interface {
	Subscribe(topic string) error
	Next(ctx context.Context) (Event, error)
}

// TransportError reports that the subscription could not be established.
type TransportError struct {
	Topic    string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("listener: subscribe %q failed after %d attempts: %v", e.Topic, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Markers of the transport debug rendering.
const (
	connectedMarker    = "Connected"
	disconnectedMarker = "Disconnected"
)

type Config struct {
	Topic string
	// SubscribeDelay is the wait before the first subscribe attempt.
	SubscribeDelay time.Duration
	// RetryInterval is the first wait after a failed attempt. It doubles up
	// to MaxRetryInterval.
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration
	// MaxRetries bounds failed attempts; 0 retries forever.
	MaxRetries int
	// StrictDecode makes a malformed command payload fatal instead of dropping it.
	StrictDecode bool
}

func DefaultConfig() Config {
	return Config{
		Topic:            "led",
		SubscribeDelay:   5 * time.Second,
		RetryInterval:    5 * time.Second,
		MaxRetryInterval: time.Minute,
	}
}

type Service struct {
	tr  Transport
	out *kernel.Sender[proto.Command]
	log *slog.Logger
	cfg Config

	resub chan struct{}

	received atomic.Uint32
	dropped  atomic.Uint32
}

// New returns a listener. The service owns out and releases it when Run returns.
func New(tr Transport, out *kernel.Sender[proto.Command], log *slog.Logger, cfg Config) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		tr:    tr,
		out:   out,
		log:   log.With("component", "listener", "topic", cfg.Topic),
		cfg:   cfg,
		resub: make(chan struct{}, 1),
	}
}

// Received returns the number of commands decoded and handed to the channel.
func (s *Service) Received() uint32 { return s.received.Load() }

// Dropped returns the number of command events that could not be decoded.
func (s *Service) Dropped() uint32 { return s.dropped.Load() }

// Run subscribes and receives until ctx is done, the transport closes or the
// command channel is closed. Those endings return nil. A *TransportError or,
// with StrictDecode, a decode error is returned as fatal.
func (s *Service) Run(ctx context.Context) error {
	defer s.out.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.subscribeLoop(gctx) })
	g.Go(func() error {
		defer cancel()
		return s.receiveLoop(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) subscribeLoop(ctx context.Context) error {
	if err := sleepCtx(ctx, s.cfg.SubscribeDelay); err != nil {
		return nil
	}
	for {
		if err := s.subscribe(ctx); err != nil {
			return err
		}
		select {
		case <-s.resub:
			s.log.Info("reconnected, subscribing again")
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Service) subscribe(ctx context.Context) error {
	wait := s.cfg.RetryInterval
	for attempt := 1; ; attempt++ {
		err := s.tr.Subscribe(s.cfg.Topic)
		if err == nil {
			s.log.Info("subscribed")
			return nil
		}
		if s.cfg.MaxRetries > 0 && attempt >= s.cfg.MaxRetries {
			return &TransportError{Topic: s.cfg.Topic, Attempts: attempt, Err: err}
		}
		s.log.Error("subscribe failed", "attempt", attempt, "retry", wait, "err", err)
		if sleepCtx(ctx, wait) != nil {
			return nil
		}
		if wait *= 2; s.cfg.MaxRetryInterval > 0 && wait > s.cfg.MaxRetryInterval {
			wait = s.cfg.MaxRetryInterval
		}
	}
}

func (s *Service) receiveLoop(ctx context.Context) error {
	s.log.Info("listening for messages")
	disconnected := false
	for {
		ev, err := s.tr.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Info("connection closed")
				return nil
			}
			return err
		}

		text := ev.String()
		s.log.Debug("event", "payload", text)

		switch {
		case strings.HasPrefix(text, proto.EventMarker):
			if err := s.forward(text); err != nil {
				if errors.Is(err, kernel.ErrClosed) {
					s.log.Info("command channel closed")
					return nil
				}
				return err
			}
		case strings.HasPrefix(text, disconnectedMarker):
			disconnected = true
		case strings.HasPrefix(text, connectedMarker) && disconnected:
			disconnected = false
			select {
			case s.resub <- struct{}{}:
			default:
			}
		}
	}
}

func (s *Service) forward(text string) error {
	cmd, err := proto.ExtractCommand(text)
	if err != nil {
		if s.cfg.StrictDecode {
			return fmt.Errorf("listener: %w", err)
		}
		s.dropped.Add(1)
		s.log.Warn("dropping malformed command", "err", err)
		return nil
	}
	s.received.Add(1)
	if err := s.out.Send(cmd); err != nil {
		return err
	}
	s.log.Debug("forwarded", "cmd", cmd.String())
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
