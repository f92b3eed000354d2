package kernel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrClosed is returned to producers once the consumer has closed the channel.
	ErrClosed = errors.New("kernel: channel closed")
	// ErrNoProducers is returned to the consumer when the queue is empty and
	// every attached producer has been released.
	ErrNoProducers = errors.New("kernel: no producers attached")
	// ErrTimeout is returned by RecvTimeout when nothing arrived in time.
	ErrTimeout = errors.New("kernel: receive timeout")
)

// isrPoll bounds how long a blocked consumer takes to notice a value that an
// interrupt handler left in the mailbox. Interrupt handlers never touch the
// notify channel.
const isrPoll = 5 * time.Millisecond

type entry[T any] struct {
	ticket uint32
	v      T
}

// before reports whether ticket a was issued before b, tolerating wraparound.
func before(a, b uint32) bool { return int32(a-b) < 0 }

// Channel is an unbounded, ordered, multi-producer single-consumer queue.
//
// Ordinary producers append to a locked list; interrupt handlers use the
// lock-free Mailbox through SendFromISR. Every value takes a ticket from one
// counter and the consumer merges both queues by ticket, so order is global
// across producers.
type Channel[T any] struct {
	mu    sync.Mutex
	queue []entry[T]
	head  int

	isr    Mailbox[entry[T]]
	ticket atomic.Uint32

	notify    chan struct{}
	closed    atomic.Bool
	producers atomic.Int32
}

// NewChannel creates an empty channel with no producers attached.
func NewChannel[T any]() *Channel[T] {
	return &Channel[T]{notify: make(chan struct{}, 1)}
}

// Sender is a registered producer handle.
type Sender[T any] struct {
	c        *Channel[T]
	released atomic.Bool
}

// Attach registers a producer. The consumer sees ErrNoProducers only after
// every attached Sender has been released.
func (c *Channel[T]) Attach() *Sender[T] {
	c.producers.Add(1)
	return &Sender[T]{c: c}
}

// Send enqueues v. It never blocks.
func (s *Sender[T]) Send(v T) error {
	if s.released.Load() {
		return ErrClosed
	}
	return s.c.Send(v)
}

// SendFromISR enqueues v without locking or allocating.
// It returns false when the interrupt ring is full or the channel is closed.
func (s *Sender[T]) SendFromISR(v T) bool {
	if s.released.Load() {
		return false
	}
	return s.c.SendFromISR(v)
}

// Release unregisters the producer. Safe to call more than once.
func (s *Sender[T]) Release() {
	if s.released.CompareAndSwap(false, true) {
		s.c.producers.Add(-1)
		s.c.wake()
	}
}

// Send enqueues v. It never blocks and only fails once the channel is closed.
func (c *Channel[T]) Send(v T) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	c.queue = append(c.queue, entry[T]{ticket: c.ticket.Add(1), v: v})
	c.mu.Unlock()

	c.wake()
	return nil
}

// SendFromISR enqueues v from interrupt context. It only touches atomics; a
// blocked consumer picks the value up on its next mailbox poll.
func (c *Channel[T]) SendFromISR(v T) bool {
	if c.closed.Load() {
		return false
	}
	return c.isr.TrySend(entry[T]{ticket: c.ticket.Add(1), v: v})
}

func (c *Channel[T]) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Close tears down the consumer side. Pending values are discarded.
func (c *Channel[T]) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	c.queue = nil
	c.head = 0
	c.mu.Unlock()
	c.wake()
}

// Len returns the number of queued values.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	n := len(c.queue) - c.head
	c.mu.Unlock()
	return n + c.isr.Len()
}

// TryRecv dequeues the oldest value without blocking.
func (c *Channel[T]) TryRecv() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	r, rok := c.isr.Peek()
	if c.head < len(c.queue) && (!rok || before(c.queue[c.head].ticket, r.ticket)) {
		e := c.queue[c.head]
		c.queue[c.head] = entry[T]{}
		c.head++
		if c.head == len(c.queue) {
			c.queue = c.queue[:0]
			c.head = 0
		}
		return e.v, true
	}
	if rok {
		_, _ = c.isr.TryRecv()
		return r.v, true
	}
	return zero, false
}

// Recv blocks until a value is available.
func (c *Channel[T]) Recv(ctx context.Context) (T, error) {
	return c.recv(ctx, nil)
}

// RecvTimeout is Recv bounded by d.
func (c *Channel[T]) RecvTimeout(ctx context.Context, d time.Duration) (T, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	return c.recv(ctx, t.C)
}

func (c *Channel[T]) recv(ctx context.Context, timeout <-chan time.Time) (T, error) {
	var zero T
	var poll *time.Ticker
	defer func() {
		if poll != nil {
			poll.Stop()
		}
	}()
	for {
		if c.closed.Load() {
			return zero, ErrClosed
		}
		if v, ok := c.TryRecv(); ok {
			return v, nil
		}
		if c.producers.Load() <= 0 {
			return zero, ErrNoProducers
		}

		if poll == nil {
			poll = time.NewTicker(isrPoll)
		}
		select {
		case <-c.notify:
		case <-poll.C:
		case <-timeout:
			return zero, ErrTimeout
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}
