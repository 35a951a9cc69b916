package actor

import (
	"sync"
	"time"

	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/bus"
	"github.com/joeycumines/peernetic/logging"
	"github.com/joeycumines/peernetic/message"
	"github.com/joeycumines/peernetic/shuttle"
	"golang.org/x/sync/errgroup"
)

// pollInterval bounds how long the worker goroutine blocks on Bus.Drain
// before re-checking for pending administrative commands (AddActor,
// RemoveActor) submitted from other goroutines.
const pollInterval = 10 * time.Millisecond

// command is a function the Host's worker goroutine must run, since the
// wrapped Dispatcher is not safe for concurrent use: each Host is
// single-threaded cooperative, owned exclusively by its worker goroutine.
type command struct {
	fn   func()
	done chan struct{}
}

// Host is the production actor runner: it owns one inbound Bus, a
// concurrent-safe map of outgoing Shuttles, and a single worker goroutine
// that drains the Bus and dispatches each delivered Message to the actor it
// names.
type Host struct {
	dispatcher *Dispatcher
	incoming   *bus.Bus
	outgoing   *shuttle.Registry
	log        *logging.Logger

	commands chan command
	closed   chan struct{}
	once     sync.Once
	group    *errgroup.Group
}

// NewHost constructs a Host for the given runner prefix and starts its
// worker goroutine. If log is nil, logging.Discard() is used.
func NewHost(prefix address.Address, log *logging.Logger) *Host {
	if log == nil {
		log = logging.Discard()
	}
	h := &Host{
		dispatcher: NewDispatcher(prefix),
		incoming:   bus.New(),
		outgoing:   shuttle.NewRegistry(),
		log:        log,
		commands:   make(chan command),
		closed:     make(chan struct{}),
	}
	h.group = new(errgroup.Group)
	h.group.Go(func() error {
		h.run()
		return nil
	})
	return h
}

// Prefix returns the runner prefix this Host hosts actors under.
func (h *Host) Prefix() address.Address { return h.dispatcher.Prefix() }

// IncomingShuttle returns the Shuttle other components submit Messages to,
// destined under this Host's prefix.
func (h *Host) IncomingShuttle() shuttle.Shuttle {
	return shuttle.NewFunc(h.dispatcher.Prefix().Element(0), func(batch []message.Message) error {
		return h.incoming.Push(bus.Record{Kind: bus.KindDeliver, Messages: batch})
	})
}

// AddOutgoingShuttle registers s, so actors hosted here can address
// Messages to s's prefix. Concurrent-safe: may be called from any
// goroutine at any time.
func (h *Host) AddOutgoingShuttle(s shuttle.Shuttle) { h.outgoing.Add(s) }

// RemoveOutgoingShuttle deregisters the Shuttle for prefix.
func (h *Host) RemoveOutgoingShuttle(prefix string) { h.outgoing.Remove(prefix) }

// AddActor creates a new actor under localID and, if priming is non-nil,
// delivers it synchronously as the actor's first incoming Message, as if
// it had arrived through the ordinary Bus. Both the creation and the
// priming step run on the Host's worker goroutine, so they're serialized
// with respect to ordinary dispatch.
func (h *Host) AddActor(localID string, fn Func, priming *message.Message) (self address.Address, err error) {
	h.runOnWorker(func() {
		self, err = h.dispatcher.AddActor(localID, fn)
		if err != nil {
			return
		}
		if priming != nil {
			h.step(*priming)
		}
	})
	return self, err
}

// RemoveActor terminates the actor at localID after its current step (if
// any) completes.
func (h *Host) RemoveActor(localID string) (err error) {
	h.runOnWorker(func() {
		err = h.dispatcher.RemoveActor(localID)
	})
	return err
}

// Len returns the number of actors currently hosted. It may be called from
// any goroutine; the worker goroutine is briefly interrupted to answer.
func (h *Host) Len() (n int) {
	h.runOnWorker(func() { n = h.dispatcher.Len() })
	return n
}

// runOnWorker submits fn to the worker goroutine and blocks until it has
// run, unless the Host has already closed.
func (h *Host) runOnWorker(fn func()) {
	done := make(chan struct{})
	select {
	case h.commands <- command{fn: fn, done: done}:
		<-done
	case <-h.closed:
	}
}

// step performs one dispatch step for m and routes its outgoing Messages
// to registered Shuttles, logging drops and actor failures.
func (h *Host) step(m message.Message) {
	outgoing, terminated, err := h.dispatcher.Step(m)
	if err == ErrUnknownActor {
		h.log.Warning().
			Str("destination", m.Destination().String()).
			Log("actor: dropping message, no such local actor")
	} else if terminated && err != nil {
		h.log.Err().Err(err).
			Str("destination", m.Destination().String()).
			Log("actor: terminated on unhandled failure")
	}

	dropped, sendErr := h.outgoing.Dispatch(outgoing)
	for _, dm := range dropped {
		h.log.Warning().
			Str("destination", dm.Destination().String()).
			Log("actor: dropping outgoing message, no shuttle registered")
	}
	if sendErr != nil {
		h.log.Err().Err(sendErr).Log("actor: shuttle submit failed")
	}
}

// run is the Host's single worker goroutine.
func (h *Host) run() {
	for {
		select {
		case cmd := <-h.commands:
			cmd.fn()
			close(cmd.done)
			continue
		default:
		}

		records := h.incoming.Drain(256, pollInterval)
		if records == nil {
			if h.incoming.Closed() {
				return
			}
			continue
		}
		for _, r := range records {
			if r.Kind != bus.KindDeliver {
				continue
			}
			for _, m := range r.Messages {
				h.step(m)
			}
		}
	}
}

// Close stops the worker goroutine and waits for it to exit. In-flight
// steps are allowed to finish; pending outgoing messages may be dropped.
func (h *Host) Close() error {
	h.once.Do(func() {
		close(h.closed)
		h.incoming.Close()
	})
	return h.group.Wait()
}
