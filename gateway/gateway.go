// Package gateway implements a long-lived side component: it owns an
// incoming Shuttle (Bus-backed), may have outgoing Shuttles registered
// against it, and runs a single worker goroutine draining its Bus until
// Close.
package gateway

import (
	"sync"

	"github.com/joeycumines/peernetic/bus"
	"github.com/joeycumines/peernetic/logging"
	"github.com/joeycumines/peernetic/message"
	"github.com/joeycumines/peernetic/shuttle"
)

// Handler processes one batch of delivered Messages, on the Gateway's
// worker goroutine. Implementations are the Timer gateway, a recorder, a
// replayer, or any other long-lived side component built on this base.
type Handler func(batch []message.Message)

// Gateway is a long-lived side component: create it, take its incoming
// Shuttle via Incoming, register any outgoing Shuttles it needs to talk to,
// then Close it when done. Close is idempotent and, after it returns,
// Incoming().Submit delivers nothing and returns bus.ErrClosed.
type Gateway struct {
	prefix   string
	incoming *bus.Bus
	outgoing *shuttle.Registry
	handler  Handler
	log      *logging.Logger

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New constructs a Gateway accepting Messages destined under prefix, and
// starts its drain loop invoking handler for each delivered batch. If log
// is nil, logging.Discard() is used.
func New(prefix string, handler Handler, log *logging.Logger) *Gateway {
	if log == nil {
		log = logging.Discard()
	}
	g := &Gateway{
		prefix:   prefix,
		incoming: bus.New(),
		outgoing: shuttle.NewRegistry(),
		handler:  handler,
		log:      log,
	}
	g.wg.Add(1)
	go g.run()
	return g
}

// Incoming returns the Bus-backed Shuttle other components submit Messages
// to, destined under this Gateway's prefix.
func (g *Gateway) Incoming() shuttle.Shuttle {
	return shuttle.NewFunc(g.prefix, func(batch []message.Message) error {
		return g.incoming.Push(bus.Record{Kind: bus.KindDeliver, Messages: batch})
	})
}

// AddOutgoingShuttle registers s so Send can route Messages to its prefix.
func (g *Gateway) AddOutgoingShuttle(s shuttle.Shuttle) {
	_ = g.incoming.Push(bus.Record{Kind: bus.KindAddShuttle, Prefix: s.Prefix(), Shuttle: s})
}

// RemoveOutgoingShuttle deregisters the Shuttle for prefix.
func (g *Gateway) RemoveOutgoingShuttle(prefix string) {
	_ = g.incoming.Push(bus.Record{Kind: bus.KindRemoveShuttle, Prefix: prefix})
}

// Send routes outgoing to their registered Shuttles by destination prefix,
// dropping (and logging) any whose prefix has no registered Shuttle.
func (g *Gateway) Send(outgoing []message.Message) {
	dropped, err := g.outgoing.Dispatch(outgoing)
	for _, m := range dropped {
		g.log.Warning().Str("destination", m.Destination().String()).Log("gateway: no shuttle registered, dropping message")
	}
	if err != nil {
		g.log.Err().Err(err).Log("gateway: outgoing shuttle submit failed")
	}
}

// run is the Gateway's single worker goroutine: it drains the incoming Bus
// and applies each record, in order.
func (g *Gateway) run() {
	defer g.wg.Done()
	for {
		records := g.incoming.Drain(256, 0)
		if records == nil && g.incoming.Closed() {
			return
		}
		for _, r := range records {
			switch r.Kind {
			case bus.KindDeliver:
				if g.handler != nil {
					g.handler(r.Messages)
				}
			case bus.KindAddShuttle:
				if s, ok := r.Shuttle.(shuttle.Shuttle); ok {
					g.outgoing.Add(s)
				}
			case bus.KindRemoveShuttle:
				g.outgoing.Remove(r.Prefix)
			case bus.KindClose:
				return
			}
		}
	}
}

// Close idempotently stops the drain loop and waits for it to exit. After
// Close returns, Incoming().Submit delivers nothing: the underlying Bus
// rejects further pushes with bus.ErrClosed.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		g.incoming.Close()
	})
	g.wg.Wait()
}
