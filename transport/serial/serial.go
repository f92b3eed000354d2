// Package serial carries commands over a line-oriented console, typically the
// board's USB CDC or UART.
//
// Each line is one event. A line that already reads like a received event
// ("Received { ... data: Ok(...) ... }") is passed through unchanged. A line
// holding a bare JSON command is wrapped as a received event on the
// subscribed topic. Any other line is handed to the listener as-is, which
// ignores it.
package serial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"ledmcu/proto"
	"ledmcu/services/listener"
)

// Options tunes the console reader.
type Options struct {
	// PollInterval is the pause after a read that returned no bytes.
	PollInterval time.Duration
	// MaxLine bounds a line; longer lines are discarded whole.
	MaxLine int
	// Backlog is the number of complete lines buffered ahead of Next.
	Backlog int
}

func DefaultOptions() Options {
	return Options{
		PollInterval: 10 * time.Millisecond,
		MaxLine:      512,
		Backlog:      8,
	}
}

// Line is one console line as seen by the listener.
type Line string

func (l Line) String() string { return string(l) }

// Console is a listener.Transport over a byte stream.
type Console struct {
	port io.ReadWriter
	opts Options

	mu    sync.Mutex
	topic string
	seq   uint16

	lines    chan []byte
	done     chan struct{}
	stopOnce sync.Once
	readErr  atomic.Value

	overflow atomic.Uint32
}

var _ listener.Transport = (*Console)(nil)

// New starts reading port in the background.
func New(port io.ReadWriter, opts Options) *Console {
	def := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.MaxLine <= 0 {
		opts.MaxLine = def.MaxLine
	}
	if opts.Backlog <= 0 {
		opts.Backlog = def.Backlog
	}
	c := &Console{
		port:  port,
		opts:  opts,
		lines: make(chan []byte, opts.Backlog),
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Subscribe records the topic that bare JSON lines are filed under and
// announces it on the console as "SUB <topic>".
func (c *Console) Subscribe(topic string) error {
	if topic == "" {
		return errors.New("serial: empty topic")
	}
	select {
	case <-c.done:
		return io.ErrClosedPipe
	default:
	}
	c.mu.Lock()
	c.topic = topic
	c.mu.Unlock()
	if _, err := io.WriteString(c.port, "SUB "+topic+"\r\n"); err != nil {
		return fmt.Errorf("serial: subscribe: %w", err)
	}
	return nil
}

// Next returns the next console line. It returns io.EOF once the console is
// closed or the port reached end of input.
func (c *Console) Next(ctx context.Context) (listener.Event, error) {
	select {
	case line, ok := <-c.lines:
		if !ok {
			if err, _ := c.readErr.Load().(error); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("serial: read: %w", err)
			}
			return nil, io.EOF
		}
		return c.event(line), nil
	case <-c.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Overflow returns the number of lines discarded for exceeding MaxLine.
func (c *Console) Overflow() uint32 { return c.overflow.Load() }

// Close stops delivering lines. A read already blocked in the port is left
// to return on its own.
func (c *Console) Close() error {
	c.stopOnce.Do(func() { close(c.done) })
	return nil
}

func (c *Console) event(line []byte) Line {
	if len(line) == 0 || line[0] != '{' {
		return Line(line)
	}
	c.mu.Lock()
	topic := c.topic
	c.seq++
	id := c.seq
	c.mu.Unlock()
	return Line(proto.WrapEvent(id, topic, line))
}

func (c *Console) readLoop() {
	defer close(c.lines)

	buf := make([]byte, 64)
	line := make([]byte, 0, c.opts.MaxLine)
	skipping := false
	for {
		n, err := c.port.Read(buf)
		for _, b := range buf[:n] {
			switch {
			case b == '\n':
				if !skipping {
					if l := bytes.TrimSpace(line); len(l) > 0 {
						if !c.deliver(bytes.Clone(l)) {
							return
						}
					}
				}
				line = line[:0]
				skipping = false
			case skipping:
			case len(line) >= c.opts.MaxLine:
				c.overflow.Add(1)
				line = line[:0]
				skipping = true
			default:
				line = append(line, b)
			}
		}
		if err != nil {
			c.readErr.Store(err)
			return
		}
		if n == 0 && !c.pause() {
			return
		}
	}
}

func (c *Console) deliver(l []byte) bool {
	select {
	case c.lines <- l:
		return true
	case <-c.done:
		return false
	}
}

func (c *Console) pause() bool {
	t := time.NewTimer(c.opts.PollInterval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.done:
		return false
	}
}
