// Package subcoroutine multiplexes many suspendable child dialogues inside
// one actor, keyed by address suffix. It runs on the same goroutine+channel
// primitive as a top-level actor (internal/coroutine), so from the
// framework's point of view a router stepping a child is indistinguishable
// from an actor.Dispatcher stepping an actor: both resume a parked
// goroutine with one Message and collect whatever it sent before
// suspending again.
package subcoroutine

import (
	"errors"

	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/internal/coroutine"
	"github.com/joeycumines/peernetic/message"
)

// ErrNoSuchSubcoroutine is returned by Remove when childKey names no
// registered child.
var ErrNoSuchSubcoroutine = errors.New("subcoroutine: no such child")

// ErrChildExists is returned by Add when childKey is already registered.
var ErrChildExists = errors.New("subcoroutine: child already exists")

// ErrChildNotRunning is returned by Add under AddPrimeRequireRunning when
// the priming step terminates the child immediately.
var ErrChildNotRunning = errors.New("subcoroutine: child terminated during priming")

// Behaviour selects what Add does after registering a child.
type Behaviour int

const (
	// AddOnly registers the child without stepping it.
	AddOnly Behaviour = iota
	// AddAndPrime registers the child and immediately steps it with the
	// current incoming message, ignoring whether it's still running
	// afterward.
	AddAndPrime
	// AddPrimeRequireRunning is like AddAndPrime, but reports
	// ErrChildNotRunning if the priming step terminates the child.
	AddPrimeRequireRunning
)

// Func is the body of a child dialogue, structurally identical to an
// actor's Func but addressed under the router's namespace.
type Func func(ctx *Context)

// Context carries per-child state valid only during a resume step: mirrors
// actor.Context's shape, scoped to one subcoroutine.
type Context struct {
	Self        address.Address
	Source      address.Address
	Destination address.Address
	Incoming    any

	outgoing   []message.Message
	checkpoint any
	handle     *coroutine.Handle
}

// Send appends an outgoing Message from Self to dst.
func (c *Context) Send(dst address.Address, payload any) {
	c.outgoing = append(c.outgoing, message.New(c.Self, dst, payload))
}

// Reply sends payload back to the source of the message currently being
// processed.
func (c *Context) Reply(payload any) {
	c.Send(c.Source, payload)
}

// Suspend yields control back to the Router. Must only be called from
// within the child's own Func.
func (c *Context) Suspend() {
	c.handle.Suspend()
}

// Checkpoint records snapshot as the child's latest restorable state.
func (c *Context) Checkpoint(snapshot any) {
	c.checkpoint = snapshot
}

// LastCheckpoint returns the most recent value passed to Checkpoint, or nil.
func (c *Context) LastCheckpoint() any {
	return c.checkpoint
}

func (c *Context) takeOutgoing() []message.Message {
	out := c.outgoing
	c.outgoing = nil
	return out
}

type childState struct {
	self   address.Address
	ctx    *Context
	handle *coroutine.Handle
}

// Result is the terminal state of a child that has returned or panicked:
// its last checkpoint and any error from an unrecovered panic.
type Result struct {
	Checkpoint any
	Err        error
}

// Router owns a relative address suffix within one actor (e.g. "router")
// and a map from child-key to child state. Only the single actor goroutine
// that owns a Router may call its methods; like actor.Dispatcher, it
// assumes a single-threaded cooperative owner.
type Router struct {
	actorSelf address.Address
	suffix    address.Address
	children  map[string]*childState
	results   map[string]Result
}

// NewRouter constructs a Router owned by the actor at actorSelf, addressed
// under actorSelf plus the given suffix elements (e.g. NewRouter(self,
// "router") routes children under self:router:<childKey>).
func NewRouter(actorSelf address.Address, suffixElements ...string) (*Router, error) {
	suffix, err := address.New(suffixElements...)
	if err != nil {
		return nil, err
	}
	return &Router{
		actorSelf: actorSelf,
		suffix:    suffix,
		children:  make(map[string]*childState),
		results:   make(map[string]Result),
	}, nil
}

// Prefix returns the full address prefix children are routed under:
// actorSelf followed by the router's suffix.
func (r *Router) Prefix() address.Address {
	return r.actorSelf.MustAppend(r.suffix.Elements()...)
}

// Has reports whether childKey currently names a running child.
func (r *Router) Has(childKey string) bool {
	_, ok := r.children[childKey]
	return ok
}

// Len returns the number of currently running children.
func (r *Router) Len() int { return len(r.children) }

// Result returns the terminal state of a child that has returned or
// panicked, if Forward or Add has observed its termination.
func (r *Router) Result(childKey string) (Result, bool) {
	res, ok := r.results[childKey]
	return res, ok
}

// Add registers a new child under childKey, running fn. If behaviour is
// AddOnly, the child is left parked until the next message addressed to
// it arrives via Forward. Otherwise priming is delivered as the child's
// first incoming message immediately, and outgoing carries whatever
// Messages that priming step produced.
func (r *Router) Add(childKey string, fn Func, behaviour Behaviour, priming message.Message) (self address.Address, outgoing []message.Message, err error) {
	if _, exists := r.children[childKey]; exists {
		return address.Address{}, nil, ErrChildExists
	}
	self, err = r.Prefix().Append(childKey)
	if err != nil {
		return address.Address{}, nil, err
	}

	ctx := &Context{Self: self}
	handle := coroutine.Start(func(h *coroutine.Handle) {
		ctx.handle = h
		fn(ctx)
	})
	cs := &childState{self: self, ctx: ctx, handle: handle}
	r.children[childKey] = cs

	if behaviour == AddOnly {
		return self, nil, nil
	}

	outgoing, terminated, stepErr := r.step(cs, priming)
	if terminated {
		r.results[childKey] = Result{Checkpoint: ctx.LastCheckpoint(), Err: stepErr}
		delete(r.children, childKey)
		if behaviour == AddPrimeRequireRunning {
			return self, outgoing, ErrChildNotRunning
		}
	}
	return self, outgoing, nil
}

// Remove deregisters childKey. Removing a child that doesn't exist (or was
// already removed, including by natural termination) fails with
// ErrNoSuchSubcoroutine.
func (r *Router) Remove(childKey string) error {
	if _, ok := r.children[childKey]; !ok {
		return ErrNoSuchSubcoroutine
	}
	delete(r.children, childKey)
	return nil
}

// Forward inspects m's destination, strips the Router's own Prefix, and
// treats the first remaining element as a child-key. If no child matches
// (including when m isn't addressed under Prefix at all), Forward is a
// no-op: matched is false. Otherwise the matching child is stepped with m,
// and removed if that step terminates it.
func (r *Router) Forward(m message.Message) (outgoing []message.Message, matched bool, terminated bool, err error) {
	childKey, ok := r.childKey(m.Destination())
	if !ok {
		return nil, false, false, nil
	}
	cs, ok := r.children[childKey]
	if !ok {
		return nil, false, false, nil
	}

	outgoing, terminated, err = r.step(cs, m)
	if terminated {
		r.results[childKey] = Result{Checkpoint: cs.ctx.LastCheckpoint(), Err: err}
		delete(r.children, childKey)
	}
	return outgoing, true, terminated, err
}

// childKey extracts the routing key for dst: the element immediately
// after Prefix. It reports false if dst isn't prefixed by Prefix, or has
// no further element.
func (r *Router) childKey(dst address.Address) (string, bool) {
	prefix := r.Prefix()
	if !prefix.IsPrefixOf(dst) || dst.Len() <= prefix.Len() {
		return "", false
	}
	return dst.Element(prefix.Len()), true
}

func (r *Router) step(cs *childState, m message.Message) (outgoing []message.Message, terminated bool, err error) {
	cs.ctx.Source = m.Source()
	cs.ctx.Destination = m.Destination()
	cs.ctx.Incoming = m.Payload()

	done, resumeErr := cs.handle.Resume()
	outgoing = cs.ctx.takeOutgoing()
	if done {
		return outgoing, true, resumeErr
	}
	return outgoing, false, nil
}
