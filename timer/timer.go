// Package timer implements the timer gateway: a Shuttle that, given a
// Message destined for "<prefix>:<millis>[:suffix...]", schedules a reply
// carrying the original payload back to the original source after millis
// milliseconds. It's a thin, real-clock specialization of gateway.Gateway;
// the deterministic simulator implements the same contract itself, driven
// by its virtual clock instead of wall-clock timers.
package timer

import (
	"strconv"
	"sync"
	"time"

	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/gateway"
	"github.com/joeycumines/peernetic/logging"
	"github.com/joeycumines/peernetic/message"
	"github.com/joeycumines/peernetic/shuttle"
)

// Gateway is the production timer gateway, backed by a single monotonic
// timer per scheduled reply (time.AfterFunc), independent of the
// underlying gateway.Gateway's own worker goroutine.
type Gateway struct {
	g   *gateway.Gateway
	log *logging.Logger

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

// New constructs a Gateway accepting Messages destined under prefix. If
// log is nil, logging.Discard() is used.
func New(prefix string, log *logging.Logger) *Gateway {
	if log == nil {
		log = logging.Discard()
	}
	t := &Gateway{log: log, timers: make(map[*time.Timer]struct{})}
	t.g = gateway.New(prefix, t.handle, log)
	return t
}

// Incoming returns the Shuttle other components submit Messages to,
// destined under this Gateway's prefix.
func (t *Gateway) Incoming() shuttle.Shuttle { return t.g.Incoming() }

// AddOutgoingShuttle registers s so scheduled replies can reach their
// original sources.
func (t *Gateway) AddOutgoingShuttle(s shuttle.Shuttle) { t.g.AddOutgoingShuttle(s) }

// RemoveOutgoingShuttle deregisters the Shuttle for prefix.
func (t *Gateway) RemoveOutgoingShuttle(prefix string) { t.g.RemoveOutgoingShuttle(prefix) }

// handle runs on the underlying Gateway's worker goroutine: it validates
// and schedules each Message in batch, then returns immediately — the
// actual reply happens later, off an independent timer.
func (t *Gateway) handle(batch []message.Message) {
	for _, m := range batch {
		delay, ok := parseDelay(m.Destination())
		if !ok {
			t.log.Warning().
				Str("destination", m.Destination().String()).
				Log("timer: malformed millis, dropping message")
			continue
		}
		t.schedule(delay, m.Reply(m.Payload()))
	}
}

// schedule arranges for reply to be sent after delay, unless the Gateway
// has already closed.
func (t *Gateway) schedule(delay time.Duration, reply message.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.timers, timer)
		t.mu.Unlock()
		t.g.Send([]message.Message{reply})
	})
	t.timers[timer] = struct{}{}
}

// Close idempotently stops every pending scheduled reply and the
// underlying Gateway's worker goroutine.
func (t *Gateway) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		for timer := range t.timers {
			timer.Stop()
		}
		t.timers = nil
	}
	t.mu.Unlock()
	t.g.Close()
}

// parseDelay extracts the millis element (dst's second element) as a
// non-negative delay. It reports false for anything that isn't a
// non-negative base-10 integer, or a destination with no second element.
func parseDelay(dst address.Address) (time.Duration, bool) {
	if dst.Len() < 2 {
		return 0, false
	}
	millis, err := strconv.ParseInt(dst.Element(1), 10, 64)
	if err != nil || millis < 0 {
		return 0, false
	}
	return time.Duration(millis) * time.Millisecond, true
}
