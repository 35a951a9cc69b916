// Package coroutine realizes suspendable, stack-preserving computations on
// top of goroutines and channels, since the Go runtime offers no
// language-level stackful coroutine. A Handle's body runs on a dedicated
// goroutine that is parked (blocked on a channel receive) between resumes;
// local variables therefore persist across suspends exactly as they would
// with a stackful coroutine, satisfying the only observable guarantees the
// framework requires: state persists, one resume per message, no
// shared-memory concurrency within the body.
package coroutine

import (
	"fmt"
)

// Body is the function run by a coroutine. It receives the Handle it is
// running on, so it may call Suspend to yield control back to the caller of
// Resume. A Body that returns (or panics) terminates the coroutine.
type Body func(h *Handle)

// Handle is the caller-facing control surface for a coroutine: Resume steps
// it forward, Suspend (called from within the Body) yields back.
type Handle struct {
	resume   chan struct{}
	suspend  chan suspendSignal
	started  bool
	done     bool
	panicVal any
}

type suspendSignal struct {
	terminated bool
	panicVal   any
}

// Start launches body on a new goroutine, parked immediately: the goroutine
// does not begin executing body until the first call to Resume.
func Start(body Body) *Handle {
	h := &Handle{
		resume:  make(chan struct{}),
		suspend: make(chan suspendSignal),
	}
	go h.run(body)
	return h
}

func (h *Handle) run(body Body) {
	<-h.resume // wait for the first Resume before doing any work

	defer func() {
		r := recover()
		h.suspend <- suspendSignal{terminated: true, panicVal: r}
	}()

	body(h)
}

// Suspend yields control back to the caller of Resume. It must only be
// called from within the Body running on this Handle. It returns once a
// subsequent Resume call has been made.
func (h *Handle) Suspend() {
	h.suspend <- suspendSignal{}
	<-h.resume
}

// Resume steps the coroutine forward: it unblocks the Body (either its
// first execution, or the point after its last Suspend call) and waits
// until the Body suspends again or terminates (returns or panics).
//
// Resume returns (terminated=true, err) if the Body returned or panicked
// during this step; err wraps any recovered panic value. Calling Resume
// after termination returns (true, nil) immediately without touching the
// goroutine.
func (h *Handle) Resume() (terminated bool, err error) {
	if h.done {
		return true, nil
	}
	h.started = true
	h.resume <- struct{}{}
	sig := <-h.suspend
	if sig.terminated {
		h.done = true
		if sig.panicVal != nil {
			h.panicVal = sig.panicVal
			return true, fmt.Errorf("coroutine: panic: %v", sig.panicVal)
		}
		return true, nil
	}
	return false, nil
}

// Done reports whether the coroutine has terminated (returned or panicked).
func (h *Handle) Done() bool { return h.done }

// PanicValue returns the recovered panic value that terminated the
// coroutine, or nil if it returned normally or is still running.
func (h *Handle) PanicValue() any { return h.panicVal }
