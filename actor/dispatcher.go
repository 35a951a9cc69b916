// Package actor implements the actor execution host: it hosts suspendable
// coroutines ("actors"), preserves their local state between messages, and
// routes their outgoing Messages to destination Shuttles.
package actor

import (
	"errors"

	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/internal/coroutine"
	"github.com/joeycumines/peernetic/message"
)

// ErrUnknownActor is returned by Dispatcher.Step when a Message's local id
// (the address element immediately after the Dispatcher's prefix) does not
// name any actor currently hosted.
var ErrUnknownActor = errors.New("actor: unknown local id")

// ErrActorExists is returned by AddActor when localID is already in use.
var ErrActorExists = errors.New("actor: local id already exists")

// ErrNoSuchActor is returned by RemoveActor when localID names no hosted
// actor.
var ErrNoSuchActor = errors.New("actor: no such actor")

// Instance is a single actor's resumable state: its own Address, Context,
// and the coroutine.Handle it runs on. It's the primitive Dispatcher
// multiplexes by local id, and the same primitive the deterministic
// simulator steps directly against its virtual clock, one full Address at
// a time rather than through a runner-prefix scheme.
type Instance struct {
	self   address.Address
	ctx    *Context
	handle *coroutine.Handle
}

// NewInstance starts fn as a new actor self-addressed as self. The actor
// does not run any code until the first call to Step.
func NewInstance(self address.Address, fn Func) *Instance {
	ctx := &Context{Self: self}
	handle := coroutine.Start(func(h *coroutine.Handle) {
		ctx.handle = h
		fn(ctx)
	})
	return &Instance{self: self, ctx: ctx, handle: handle}
}

// Self returns the Instance's own Address.
func (in *Instance) Self() address.Address { return in.self }

// Done reports whether this Instance has terminated.
func (in *Instance) Done() bool { return in.handle.Done() }

// Step resumes the actor with m as the current incoming Message, and
// returns whatever outgoing Messages that resume step produced.
//
// If the actor terminates (returns or panics) during this step, terminated
// is true and err wraps any recovered panic; the Instance must not be
// stepped again afterward (Resume on an already-terminated Handle is a
// safe no-op, but the caller should instead drop its own reference).
func (in *Instance) Step(m message.Message) (outgoing []message.Message, terminated bool, err error) {
	in.ctx.Source = m.Source()
	in.ctx.Destination = m.Destination()
	in.ctx.Incoming = m.Payload()

	done, resumeErr := in.handle.Resume()
	outgoing = in.ctx.takeOutgoing()
	return outgoing, done, resumeErr
}

// Dispatcher holds the per-actor state for one runner prefix and
// implements the dispatch step, independent of how incoming Messages
// arrive and how outgoing Messages are sent onward. Host wraps a
// Dispatcher with a worker goroutine draining a Bus. Dispatcher itself is
// not safe for concurrent use — exactly one goroutine (the owning Host's
// worker) may call its methods at a time.
type Dispatcher struct {
	prefix address.Address
	actors map[string]*Instance
}

// NewDispatcher constructs a Dispatcher for the given runner prefix.
func NewDispatcher(prefix address.Address) *Dispatcher {
	return &Dispatcher{prefix: prefix, actors: make(map[string]*Instance)}
}

// Prefix returns the runner prefix this Dispatcher hosts actors under.
func (d *Dispatcher) Prefix() address.Address { return d.prefix }

// AddActor registers a new actor under localID, self-addressed as
// prefix+localID. It does not prime the actor; call Step with a priming
// Message to deliver its first message.
func (d *Dispatcher) AddActor(localID string, fn Func) (address.Address, error) {
	if _, exists := d.actors[localID]; exists {
		return address.Address{}, ErrActorExists
	}
	self, err := d.prefix.Append(localID)
	if err != nil {
		return address.Address{}, err
	}
	d.actors[localID] = NewInstance(self, fn)
	return self, nil
}

// RemoveActor terminates and forgets the actor at localID. Removal takes
// effect after any step currently in progress; since Step and RemoveActor
// are never called concurrently (single-threaded owner), this simply
// deletes the state immediately.
func (d *Dispatcher) RemoveActor(localID string) error {
	if _, ok := d.actors[localID]; !ok {
		return ErrNoSuchActor
	}
	delete(d.actors, localID)
	return nil
}

// Has reports whether localID currently names a hosted, non-terminated
// actor.
func (d *Dispatcher) Has(localID string) bool {
	_, ok := d.actors[localID]
	return ok
}

// Len returns the number of currently hosted actors.
func (d *Dispatcher) Len() int { return len(d.actors) }

// localID extracts the routing key for m: the prefix's-length-th element
// of its destination. It fails if m.Destination isn't prefixed by d's
// runner prefix, or has no further element.
func (d *Dispatcher) localID(m message.Message) (string, bool) {
	dst := m.Destination()
	if !d.prefix.IsPrefixOf(dst) || dst.Len() <= d.prefix.Len() {
		return "", false
	}
	return dst.Element(d.prefix.Len()), true
}

// Step resumes the actor named by m's destination with m as the current
// incoming Message, and returns whatever outgoing Messages that resume
// step produced.
//
// If no actor matches, Step returns ErrUnknownActor and the caller should
// drop m (optionally logging it) rather than treat this as fatal.
//
// If the resumed actor terminates (returns or panics) during this step, it
// is removed automatically; a panic is reported as terminated=true with a
// non-nil err. Other actors hosted by the same Dispatcher are unaffected.
func (d *Dispatcher) Step(m message.Message) (outgoing []message.Message, terminated bool, err error) {
	id, ok := d.localID(m)
	if !ok {
		return nil, false, ErrUnknownActor
	}
	in, ok := d.actors[id]
	if !ok {
		return nil, false, ErrUnknownActor
	}

	outgoing, terminated, err = in.Step(m)
	if terminated {
		delete(d.actors, id)
	}
	return outgoing, terminated, err
}
