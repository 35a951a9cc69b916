// Package shuttle defines the one-way message delivery capability and the
// handful of concrete implementations the core runtime needs: a Func
// Shuttle adapting a plain function (Gateways and actor hosts use it to
// push batches onto their Bus), a discarding Null Shuttle, and a Recording
// Shuttle used by tests to capture what was sent.
//
// Network-facing Shuttles (UDP/TCP) are external collaborators: this
// package describes only the interface they must satisfy.
package shuttle

import (
	"sync"

	"github.com/joeycumines/peernetic/message"
)

// Shuttle is a capability to deliver a batch of Messages addressed under
// one prefix. Implementations must not block the caller indefinitely
// (backpressure, if any, is bounded and stated by the implementation), and
// must reject or silently discard Messages whose destination's first
// element doesn't match Prefix.
type Shuttle interface {
	// Prefix is the address element this Shuttle accepts as destination[0].
	Prefix() string
	// Submit delivers batch. Submit must not block indefinitely.
	Submit(batch []message.Message) error
}

// Null discards every Message submitted to it. Useful as a placeholder
// outgoing Shuttle, or to silently sink messages to prefixes nobody
// listens on.
type Null struct{ prefix string }

// NewNull constructs a Null Shuttle for prefix.
func NewNull(prefix string) *Null { return &Null{prefix: prefix} }

// Prefix implements Shuttle.
func (n *Null) Prefix() string { return n.prefix }

// Submit implements Shuttle, discarding batch.
func (n *Null) Submit(batch []message.Message) error { return nil }

// Func adapts a plain function to Shuttle, for in-process delivery (e.g. an
// actor Host's or a Gateway's incoming Shuttle, whose function pushes each
// batch onto the owner's Bus).
type Func struct {
	prefix string
	submit func(batch []message.Message) error
}

// NewFunc constructs a Func Shuttle.
func NewFunc(prefix string, submit func(batch []message.Message) error) *Func {
	return &Func{prefix: prefix, submit: submit}
}

// Prefix implements Shuttle.
func (f *Func) Prefix() string { return f.prefix }

// Submit implements Shuttle, discarding any Message whose destination's
// first element isn't Prefix before handing the rest to the function.
func (f *Func) Submit(batch []message.Message) error {
	kept := make([]message.Message, 0, len(batch))
	for _, m := range batch {
		if dst := m.Destination(); !dst.Empty() && dst.Element(0) == f.prefix {
			kept = append(kept, m)
		}
	}
	return f.submit(kept)
}

// Recording captures every batch submitted to it, in order. Used by tests
// to assert what was sent.
type Recording struct {
	prefix string
	Sent   [][]message.Message
}

// NewRecording constructs a Recording Shuttle for prefix.
func NewRecording(prefix string) *Recording { return &Recording{prefix: prefix} }

// Prefix implements Shuttle.
func (r *Recording) Prefix() string { return r.prefix }

// Submit implements Shuttle, appending to Sent the Messages of batch whose
// destination's first element is Prefix; the others are discarded.
func (r *Recording) Submit(batch []message.Message) error {
	var cp []message.Message
	for _, m := range batch {
		if dst := m.Destination(); !dst.Empty() && dst.Element(0) == r.prefix {
			cp = append(cp, m)
		}
	}
	r.Sent = append(r.Sent, cp)
	return nil
}

// Flat returns every recorded Message in submission order, flattening the
// per-batch grouping.
func (r *Recording) Flat() []message.Message {
	var all []message.Message
	for _, batch := range r.Sent {
		all = append(all, batch...)
	}
	return all
}

// Route groups a slice of Messages by the first element of their
// destination Address, which is the natural input to a map of registered
// outgoing Shuttles. Messages whose destination is empty are skipped.
func Route(messages []message.Message) map[string][]message.Message {
	grouped := make(map[string][]message.Message)
	for _, m := range messages {
		dst := m.Destination()
		if dst.Empty() {
			continue
		}
		prefix := dst.Element(0)
		grouped[prefix] = append(grouped[prefix], m)
	}
	return grouped
}

// Registry is a concurrent-safe map from address prefix to outgoing
// Shuttle, as owned by an ActorHost or Gateway.
type Registry struct {
	byPrefix sync.Map
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry { return &Registry{} }

// Add registers s under its own Prefix, replacing any existing
// registration for that prefix.
func (r *Registry) Add(s Shuttle) { r.byPrefix.Store(s.Prefix(), s) }

// Remove deregisters the Shuttle for prefix, if any.
func (r *Registry) Remove(prefix string) { r.byPrefix.Delete(prefix) }

// Get returns the Shuttle registered for prefix, if any.
func (r *Registry) Get(prefix string) (Shuttle, bool) {
	v, ok := r.byPrefix.Load(prefix)
	if !ok {
		return nil, false
	}
	return v.(Shuttle), true
}

// Dispatch groups outgoing messages by destination prefix and submits each
// group to its registered Shuttle. Messages whose prefix has no registered
// Shuttle are dropped and returned in dropped, so callers can log them.
func (r *Registry) Dispatch(outgoing []message.Message) (dropped []message.Message, err error) {
	for prefix, batch := range Route(outgoing) {
		s, ok := r.Get(prefix)
		if !ok {
			dropped = append(dropped, batch...)
			continue
		}
		if subErr := s.Submit(batch); subErr != nil && err == nil {
			err = subErr
		}
	}
	return dropped, err
}
