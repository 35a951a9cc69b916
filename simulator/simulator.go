// Package simulator replaces a production actor.Host and timer.Gateway
// with a single-threaded event loop stepped against a virtual clock. It
// drives the same actor.Instance primitive the production Host uses, so
// actor code written against *actor.Context runs unmodified under either.
//
// Determinism: given identical inputs (actor code, any RNG seeds threaded
// through messages or a Line, and the sequence of AddCoroutineActor /
// AddTimer / Process calls), two runs produce byte-identical Trace
// sequences. The simulator never reads a wall clock, never ranges a map
// whose iteration order could leak into scheduling, and breaks every
// ordering tie with an explicit, monotonically increasing event sequence
// number.
package simulator

import (
	"container/heap"
	"errors"
	"strconv"
	"time"

	"github.com/joeycumines/peernetic/actor"
	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/message"
)

// ErrActorExists is returned by AddCoroutineActor when addr is already
// registered.
var ErrActorExists = errors.New("simulator: actor already registered at this address")

// ErrNegativeDuration is returned when a DurationCalculator or a Line
// reports a negative delay: every calculated duration must be
// non-negative, enforced here rather than silently clamped to zero.
var ErrNegativeDuration = errors.New("simulator: negative duration")

// DurationCalculator computes the simulated transit duration for one hop
// from src to dst carrying payload. realDuration is reserved for the
// wall-clock time of the actor's resume step; the Simulator never reads a
// wall clock and always passes 0. Every DurationCalculator must return a
// non-negative duration.
type DurationCalculator func(src, dst address.Address, payload any, realDuration time.Duration) (time.Duration, error)

// ZeroDuration is the default DurationCalculator: every hop is instant.
func ZeroDuration(address.Address, address.Address, any, time.Duration) (time.Duration, error) {
	return 0, nil
}

// Transit is one (possibly delayed) copy of a Message crossing a Line. A
// Line that wants to drop a Message simply omits it from its returned
// slice; one that wants to duplicate it returns more than one Transit.
type Transit struct {
	Message message.Message
	Delay   time.Duration
}

// Line models an unreliable transit channel applied to every
// actor-to-actor hop (not to timer round-trips, which bypass it).
type Line interface {
	Process(now time.Time, msg message.Message) []Transit
}

// PassThroughLine delivers every Message exactly once, with no added
// delay: the Simulator's default Line.
type PassThroughLine struct{}

// Process implements Line.
func (PassThroughLine) Process(_ time.Time, msg message.Message) []Transit {
	return []Transit{{Message: msg}}
}

type event struct {
	deliverAt time.Time
	seq       uint64
	msg       message.Message
}

type eventQueue []event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if !q[i].deliverAt.Equal(q[j].deliverAt) {
		return q[i].deliverAt.Before(q[j].deliverAt)
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)   { *q = append(*q, x.(event)) }
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

// Trace is one delivered (time, src, dst, payload) tuple, recorded in
// delivery order for golden-trace determinism assertions.
type Trace struct {
	Time        time.Time
	Source      address.Address
	Destination address.Address
	Payload     any
}

// Option configures a Simulator at construction.
type Option func(*Simulator)

// WithDurationCalculator overrides the default ZeroDuration calculator.
func WithDurationCalculator(d DurationCalculator) Option {
	return func(s *Simulator) { s.duration = d }
}

// WithLine overrides the default PassThroughLine.
func WithLine(l Line) Option {
	return func(s *Simulator) { s.line = l }
}

// Simulator is the deterministic event loop.
type Simulator struct {
	now     time.Time
	nextSeq uint64
	events  eventQueue

	actors        map[string]*actor.Instance
	timerPrefixes map[string]struct{}

	duration DurationCalculator
	line     Line

	trace []Trace
}

// New constructs a Simulator whose virtual clock starts at start.
func New(start time.Time, opts ...Option) *Simulator {
	s := &Simulator{
		now:           start,
		actors:        make(map[string]*actor.Instance),
		timerPrefixes: make(map[string]struct{}),
		duration:      ZeroDuration,
		line:          PassThroughLine{},
	}
	for _, o := range opts {
		o(s)
	}
	heap.Init(&s.events)
	return s
}

// Now returns the simulator's current virtual time.
func (s *Simulator) Now() time.Time { return s.now }

// Trace returns every (time, src, dst, payload) tuple delivered to an
// actor so far, in delivery order.
func (s *Simulator) Trace() []Trace {
	cp := make([]Trace, len(s.trace))
	copy(cp, s.trace)
	return cp
}

// AddTimer registers prefix as a virtual timer gateway: any Message whose
// destination's first element is prefix is treated as a timer schedule
// request rather than delivered to an actor. startInstant is accepted for
// symmetry with AddCoroutineActor and production timer gateway lifecycles,
// but a virtual timer carries no state of its own; every request is
// handled at the moment it's popped from the event queue.
func (s *Simulator) AddTimer(prefix string, startInstant time.Time) {
	s.timerPrefixes[prefix] = struct{}{}
}

// AddCoroutineActor registers an actor at addr, running fn, and — if
// priming is non-nil — enqueues delivery of priming at
// startInstant+startDelay.
func (s *Simulator) AddCoroutineActor(addr address.Address, fn actor.Func, startDelay time.Duration, startInstant time.Time, priming *message.Message) error {
	key := addr.String()
	if _, exists := s.actors[key]; exists {
		return ErrActorExists
	}
	s.actors[key] = actor.NewInstance(addr, fn)
	if priming != nil {
		s.enqueue(startInstant.Add(startDelay), *priming)
	}
	return nil
}

// HasMore reports whether any event remains to be processed.
func (s *Simulator) HasMore() bool { return len(s.events) > 0 }

// Process pops and delivers the single next event: advances the virtual
// clock to its deliver-at time, and either resolves it as a timer
// schedule request (if its destination names a registered timer prefix)
// or resumes the target actor and enqueues whatever outgoing Messages
// that step produced. It returns false if there was no event to process.
func (s *Simulator) Process() (bool, error) {
	if len(s.events) == 0 {
		return false, nil
	}
	ev := heap.Pop(&s.events).(event)
	s.now = ev.deliverAt

	dst := ev.msg.Destination()
	if dst.Len() > 0 {
		if _, ok := s.timerPrefixes[dst.Element(0)]; ok {
			return true, s.resolveTimer(ev.msg)
		}
	}

	in, ok := s.actors[dst.String()]
	if !ok {
		return true, nil // delivery error: no such actor; dropped as in production, but without logging
	}

	s.trace = append(s.trace, Trace{Time: s.now, Source: ev.msg.Source(), Destination: dst, Payload: ev.msg.Payload()})

	outgoing, terminated, err := in.Step(ev.msg)
	if terminated {
		delete(s.actors, dst.String())
	}
	if err != nil {
		return true, err
	}
	for _, out := range outgoing {
		if routeErr := s.route(out); routeErr != nil {
			return true, routeErr
		}
	}
	return true, nil
}

// resolveTimer schedules the reply for a Message addressed to a
// registered timer prefix: <prefix>:<millis>[:suffix...]. Malformed
// millis drop the request entirely (mirroring timer.Gateway); zero millis
// still becomes a distinct, later event.
func (s *Simulator) resolveTimer(m message.Message) error {
	dst := m.Destination()
	if dst.Len() < 2 {
		return nil
	}
	millis, err := strconv.ParseInt(dst.Element(1), 10, 64)
	if err != nil || millis < 0 {
		return nil
	}
	reply := m.Reply(m.Payload())
	s.enqueue(s.now.Add(time.Duration(millis)*time.Millisecond), reply)
	return nil
}

// route applies the Line and DurationCalculator to one outgoing Message
// from an actor step, enqueueing an event for each resulting Transit.
// Messages addressed to a registered timer prefix bypass the Line and
// DurationCalculator entirely, since they represent scheduling rather
// than network transit.
func (s *Simulator) route(m message.Message) error {
	dst := m.Destination()
	if dst.Len() > 0 {
		if _, ok := s.timerPrefixes[dst.Element(0)]; ok {
			s.enqueue(s.now, m)
			return nil
		}
	}

	for _, transit := range s.line.Process(s.now, m) {
		if transit.Delay < 0 {
			return ErrNegativeDuration
		}
		extra, err := s.duration(transit.Message.Source(), transit.Message.Destination(), transit.Message.Payload(), 0)
		if err != nil {
			return err
		}
		if extra < 0 {
			return ErrNegativeDuration
		}
		s.enqueue(s.now.Add(transit.Delay).Add(extra), transit.Message)
	}
	return nil
}

func (s *Simulator) enqueue(deliverAt time.Time, m message.Message) {
	heap.Push(&s.events, event{deliverAt: deliverAt, seq: s.nextSeq, msg: m})
	s.nextSeq++
}

// RunUntilIdle repeatedly calls Process until HasMore reports false, or
// limit events have been processed (limit<=0 means unlimited). It returns
// the number of events processed.
func (s *Simulator) RunUntilIdle(limit int) (int, error) {
	n := 0
	for s.HasMore() {
		if limit > 0 && n >= limit {
			break
		}
		if _, err := s.Process(); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
