package actor

import (
	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/internal/coroutine"
	"github.com/joeycumines/peernetic/message"
)

// Func is the body of an actor: given a Context, it runs until it calls
// Context.Suspend or returns. Local variables declared in Func persist
// across calls to Suspend because Func's goroutine is parked, not
// restarted, between resumes.
type Func func(ctx *Context)

// Context carries the per-actor state valid only during a resume step: the
// actor's own Address, the source and destination of the message currently
// being processed, the incoming payload, and the buffer of outgoing
// Messages accumulated so far this step.
type Context struct {
	Self        address.Address
	Source      address.Address
	Destination address.Address
	Incoming    any

	outgoing   []message.Message
	checkpoint any
	handle     *coroutine.Handle
}

// Send appends an outgoing Message from Self to dst, to be routed once the
// current resume step completes. Outgoing messages observe FIFO order per
// (Self, dst) because they're routed in the order Send was called.
func (c *Context) Send(dst address.Address, payload any) {
	c.outgoing = append(c.outgoing, message.New(c.Self, dst, payload))
}

// Reply sends payload back to the source of the message currently being
// processed.
func (c *Context) Reply(payload any) {
	c.Send(c.Source, payload)
}

// Suspend yields control back to the host, to be resumed on the next
// incoming Message. Must only be called from within the actor's own Func.
func (c *Context) Suspend() {
	c.handle.Suspend()
}

// Checkpoint records snapshot as the actor's latest restorable state. The
// framework does not interpret snapshot; it is opaque, for the actor's own
// later use via LastCheckpoint.
func (c *Context) Checkpoint(snapshot any) {
	c.checkpoint = snapshot
}

// LastCheckpoint returns the most recent value passed to Checkpoint, or nil
// if Checkpoint has never been called.
func (c *Context) LastCheckpoint() any {
	return c.checkpoint
}

// takeOutgoing removes and returns the buffered outgoing Messages,
// resetting the buffer for the next step.
func (c *Context) takeOutgoing() []message.Message {
	out := c.outgoing
	c.outgoing = nil
	return out
}
