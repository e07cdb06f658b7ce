// Package mailbox implements the bounded, single-consumer command queue used
// to hand policy updates and control-plane commands to a GK or LLS worker
// goroutine, the Go analogue of the original gatekeeper_mailbox.h ring: a
// fixed-capacity queue of pooled entries, multiple producers, one consumer,
// with a full queue surfaced as a plain error rather than blocking the
// caller.
package mailbox

import (
	"errors"
	"sync"
)

// ErrFull is returned by Send when the mailbox has no free capacity. The
// caller (any producer) is expected to drop the command and count the
// failure, mirroring mb_send_entry's -ENOBUFS return in the source.
var ErrFull = errors.New("mailbox: full")

// Mailbox is a bounded MPSC queue of *T, backed by a buffered channel for
// the ring and a sync.Pool for entry reuse. T is the entry type; entries
// are passed around as *T and the pool stores those pointers.
type Mailbox[T any] struct {
	ch   chan *T
	pool sync.Pool
}

// New creates a Mailbox with the given capacity (the Go equivalent of
// MAILBOX_MAX_ENTRIES). newEntry constructs a fresh *T for the pool when it
// is empty.
func New[T any](capacity int, newEntry func() *T) *Mailbox[T] {
	return &Mailbox[T]{
		ch:   make(chan *T, capacity),
		pool: sync.Pool{New: func() any { return newEntry() }},
	}
}

// Alloc obtains a pooled entry for a producer to populate before sending it.
// Analogue of mb_alloc_entry.
func (m *Mailbox[T]) Alloc() *T {
	return m.pool.Get().(*T)
}

// Free returns an entry to the pool. Callers must call Free exactly once
// per entry obtained from Alloc (if Send is never called) or once per entry
// consumed from DequeueBurst.
func (m *Mailbox[T]) Free(entry *T) {
	m.pool.Put(entry)
}

// Send enqueues a previously-Alloc'd entry. It never blocks: if the ring is
// full it returns ErrFull immediately, leaving the entry for the caller to
// Free.
func (m *Mailbox[T]) Send(entry *T) error {
	select {
	case m.ch <- entry:
		return nil
	default:
		return ErrFull
	}
}

// DequeueBurst drains up to len(out) pending entries into out without
// blocking, returning the number copied. The consumer is responsible for
// calling Free on each entry once processed, per the ring's single-consumer
// contract.
func (m *Mailbox[T]) DequeueBurst(out []*T) int {
	n := 0
	for n < len(out) {
		select {
		case e := <-m.ch:
			out[n] = e
			n++
		default:
			return n
		}
	}
	return n
}

// Len reports the number of entries currently queued.
func (m *Mailbox[T]) Len() int {
	return len(m.ch)
}

// Cap reports the mailbox's fixed capacity.
func (m *Mailbox[T]) Cap() int {
	return cap(m.ch)
}
