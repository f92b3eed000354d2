package kernel

import (
	"runtime"
	"sync/atomic"
)

const mailboxSlots = 8

type slot[T any] struct {
	// seq is the slot sequence minus the slot index, so the zero value is
	// writable for the first lap.
	seq atomic.Uint32
	val T
}

// Mailbox is a fixed-size multi-producer, single-consumer queue.
// It is designed for bare-metal use: no allocations, safe to fill from an
// interrupt handler, busy-wait with Gosched() on the blocking paths.
type Mailbox[T any] struct {
	_     [0]func() // prevent accidental copying.
	head  atomic.Uint32
	tail  atomic.Uint32
	slots [mailboxSlots]slot[T]
}

// TrySend attempts to enqueue a value, returning false if the mailbox is full.
func (mb *Mailbox[T]) TrySend(v T) bool {
	for {
		head := mb.head.Load()
		idx := head % mailboxSlots
		sl := &mb.slots[idx]

		diff := int32(sl.seq.Load() - (head - idx))
		switch {
		case diff == 0:
			// Reserve the slot, then publish it.
			if mb.head.CompareAndSwap(head, head+1) {
				sl.val = v
				sl.seq.Store(head + 1 - idx)
				return true
			}
		case diff < 0:
			return false
		}
	}
}

// Send enqueues a value, blocking until it succeeds.
func (mb *Mailbox[T]) Send(v T) {
	for !mb.TrySend(v) {
		runtime.Gosched()
	}
}

// Peek returns the oldest value without dequeuing it. Consumer only.
func (mb *Mailbox[T]) Peek() (T, bool) {
	tail := mb.tail.Load()
	idx := tail % mailboxSlots
	sl := &mb.slots[idx]
	if sl.seq.Load() != tail+1-idx {
		var zero T
		return zero, false
	}
	return sl.val, true
}

// TryRecv attempts to dequeue one value, returning false if empty. Consumer only.
func (mb *Mailbox[T]) TryRecv() (T, bool) {
	var zero T

	tail := mb.tail.Load()
	idx := tail % mailboxSlots
	sl := &mb.slots[idx]
	if sl.seq.Load() != tail+1-idx {
		return zero, false
	}

	v := sl.val
	sl.val = zero
	mb.tail.Store(tail + 1)
	sl.seq.Store(tail + mailboxSlots - idx)
	return v, true
}

// Recv blocks until one value is available.
func (mb *Mailbox[T]) Recv() T {
	for {
		v, ok := mb.TryRecv()
		if ok {
			return v
		}
		runtime.Gosched()
	}
}

// Len returns the number of queued values.
func (mb *Mailbox[T]) Len() int {
	n := int32(mb.head.Load() - mb.tail.Load())
	if n < 0 {
		return 0
	}
	return int(n)
}
