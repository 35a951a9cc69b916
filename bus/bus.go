// Package bus implements the multi-producer, single-consumer record queue
// backing a Gateway. Producers append under a mutex; the single consumer
// swaps the whole slice out under the same mutex and processes it outside
// the lock, reusing the previous batch's backing array as the next spare
// buffer. A condition variable wakes a blocked Drain on Push or Close.
package bus

import (
	"errors"
	"sync"
	"time"

	"github.com/joeycumines/peernetic/message"
)

// Overflow is the backpressure policy applied by Push when the Bus already
// holds MaxRecords records. The zero value is OverflowBlock.
type Overflow int

const (
	// OverflowBlock makes Push wait until Drain makes room (the default).
	OverflowBlock Overflow = iota
	// OverflowDropOldest discards the oldest queued record to make room.
	OverflowDropOldest
	// OverflowFail makes Push return ErrFull immediately.
	OverflowFail
)

// ErrClosed is returned by Push on a closed Bus.
var ErrClosed = errors.New("bus: closed")

// ErrFull is returned by Push under OverflowFail when the Bus is at
// capacity.
var ErrFull = errors.New("bus: full")

// RecordKind distinguishes the variants of Bus record.
type RecordKind int

const (
	// KindDeliver carries a batch of Messages to dispatch.
	KindDeliver RecordKind = iota
	// KindAddShuttle registers an outgoing Shuttle under Prefix.
	KindAddShuttle
	// KindRemoveShuttle deregisters the outgoing Shuttle under Prefix.
	KindRemoveShuttle
	// KindClose requests the consumer stop processing records.
	KindClose
)

// Record is one entry in the Bus queue.
type Record struct {
	Kind     RecordKind
	Messages []message.Message // KindDeliver
	Prefix   string            // KindAddShuttle, KindRemoveShuttle
	Shuttle  any               // KindAddShuttle; typed as any to avoid an import cycle with package shuttle
}

// Bus is a thread-safe FIFO of Records. Any number of goroutines may call
// Push concurrently; exactly one goroutine is expected to call Drain in a
// loop (multi-producer, single-consumer).
type Bus struct {
	mu       sync.Mutex
	cond     *sync.Cond
	records  []Record
	spare    []Record
	closed   bool
	overflow Overflow
	capacity int // 0 means unbounded
}

// Option configures a Bus at construction.
type Option func(*Bus)

// WithCapacity bounds the Bus to at most n queued records, applying policy
// when Push would exceed it. n<=0 means unbounded (the default).
func WithCapacity(n int, policy Overflow) Option {
	return func(b *Bus) {
		b.capacity = n
		b.overflow = policy
	}
}

// New constructs an empty, open Bus.
func New(opts ...Option) *Bus {
	b := &Bus{}
	for _, o := range opts {
		o(b)
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Push appends record to the queue, applying the configured overflow
// policy if the Bus is at capacity. It returns ErrClosed if the Bus has
// been closed.
func (b *Bus) Push(record Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	if b.capacity > 0 && len(b.records) >= b.capacity {
		switch b.overflow {
		case OverflowDropOldest:
			b.records = b.records[1:]
		case OverflowFail:
			return ErrFull
		default: // OverflowBlock
			for !b.closed && b.capacity > 0 && len(b.records) >= b.capacity {
				b.cond.Wait()
			}
			if b.closed {
				return ErrClosed
			}
		}
	}

	b.records = append(b.records, record)
	b.cond.Signal()
	return nil
}

// Drain returns up to maxRecords queued Records, waiting up to timeout for
// at least one to appear. It returns immediately (possibly with zero
// records) once the Bus is closed. A timeout of 0 means wait indefinitely;
// a negative timeout means don't wait at all (poll).
func (b *Bus) Drain(maxRecords int, timeout time.Duration) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.records) == 0 && !b.closed {
		if timeout < 0 {
			return nil
		}
		if timeout == 0 {
			for len(b.records) == 0 && !b.closed {
				b.cond.Wait()
			}
		} else {
			deadline := time.Now().Add(timeout)
			for len(b.records) == 0 && !b.closed {
				remaining := time.Until(deadline)
				if remaining <= 0 {
					break
				}
				b.waitTimeout(remaining)
			}
		}
	}

	if len(b.records) == 0 {
		return nil
	}

	n := len(b.records)
	if maxRecords > 0 && n > maxRecords {
		n = maxRecords
	}
	batch := append([]Record(nil), b.records[:n]...)
	b.records = append(b.spare[:0], b.records[n:]...)
	b.spare = batch[:0] // reuse the consumed slice's backing array next time
	b.cond.Signal()     // wake any Push blocked on OverflowBlock
	return batch
}

// waitTimeout waits on the condition variable for at most d. sync.Cond has
// no timed wait, so a helper goroutine fires a Broadcast after d elapses;
// callers must re-check their condition after this returns, since the wake
// may be spurious (another Push/Close) or the timeout.
func (b *Bus) waitTimeout(d time.Duration) {
	timer := time.AfterFunc(d, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer timer.Stop()
	b.cond.Wait()
}

// Close idempotently closes the Bus, waking any Push or Drain blocked on
// it. Further Pushes fail with ErrClosed; Drain continues to return any
// already-queued records until they're exhausted.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (b *Bus) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Len reports the number of currently queued records.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
