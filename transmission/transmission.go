// Package transmission implements the at-least-once request/response layer
// that sits between business logic and an actor's outgoing Shuttle. A
// Manager lives inside exactly one actor (it is not safe for concurrent
// use) and schedules its own resends and discards the same way any other
// actor implements a timeout: by sending itself timer messages through the
// timer gateway's addressing convention, never by touching a wall clock
// directly. That keeps it equally at home driven by a real Host or
// stepped synchronously inside the deterministic simulator.
package transmission

import (
	"errors"
	"strconv"
	"time"

	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/nonce"
)

// ErrNoNonce is returned when a payload's nonce can't be extracted via the
// configured Policy.Nonce accessor.
var ErrNoNonce = errors.New("transmission: payload has no nonce")

// ErrDuplicateRequest is returned by OutgoingRequest when its nonce is
// already registered as a pending outgoing request.
var ErrDuplicateRequest = errors.New("transmission: duplicate outgoing request nonce")

// ErrResponseAlreadySent is returned by OutgoingResponse when its nonce has
// already been answered.
var ErrResponseAlreadySent = errors.New("transmission: response already sent for this nonce")

// Kind classifies a payload as a protocol request, a protocol response, or
// neither (ordinary business traffic the Manager doesn't govern).
type Kind int

const (
	KindUnclassified Kind = iota
	KindRequest
	KindResponse
)

// Policy supplies the per-payload-type behavior the Manager needs: how to
// read a payload's nonce, whether it's a request or a response, the resend
// schedule for outgoing requests, and how long to retain dedup/reply-cache
// state for a given payload.
type Policy struct {
	// Nonce extracts the correlating nonce from payload. Required.
	Nonce func(payload any) (any, bool)
	// Kind classifies payload as a request, a response, or neither.
	// Required.
	Kind func(payload any) Kind
	// Schedule returns the resend delays for an outgoing request payload,
	// each measured from the moment the request was first sent. May be
	// empty (no resends, only the initial send and eventual discard).
	Schedule func(payload any) []time.Duration
	// Retention returns how long to retain dedup/cache state for payload
	// before it's discarded.
	Retention func(payload any) time.Duration
}

// SendFunc is the one-way send capability a Manager needs from its owning
// actor: equivalent in shape to (*actor.Context).Send or
// (*subcoroutine.Context).Send.
type SendFunc func(dst address.Address, payload any)

// ResendTimer is the payload a Manager sends to the timer gateway (and
// receives back, unchanged, as its own incoming message) to trigger a
// scheduled resend of an outgoing request.
type ResendTimer struct {
	Nonce any
}

// Table names one of the Manager's four nonce tables, for DiscardTimer
// routing.
type Table int

const (
	TableOutgoingRequest Table = iota
	TableOutgoingResponse
	TableIncomingRequest
	TableIncomingResponse
)

// DiscardTimer is the payload a Manager sends to the timer gateway (and
// receives back as its own incoming message) to retire an entry from one
// of its four tables once its retention window has elapsed.
type DiscardTimer struct {
	Table Table
	Nonce any
}

type requestState struct {
	dst       address.Address
	payload   any
	sendCount int
}

// Manager holds the four nonce-keyed tables of spec: outgoing-requests,
// outgoing-responses, incoming-requests, incoming-responses, plus the
// policy describing how to classify and schedule payloads it governs.
type Manager struct {
	timerPrefix string
	policy      Policy

	outgoingRequests  *nonce.Manager[any]
	outgoingResponses *nonce.Manager[any]
	incomingRequests  *nonce.Manager[any]
	incomingResponses *nonce.Manager[any]
}

// NewManager constructs a Manager whose resend/discard timer messages are
// addressed under timerPrefix (e.g. "timer").
func NewManager(timerPrefix string, policy Policy) *Manager {
	return &Manager{
		timerPrefix:       timerPrefix,
		policy:            policy,
		outgoingRequests:  nonce.NewManager[any](),
		outgoingResponses: nonce.NewManager[any](),
		incomingRequests:  nonce.NewManager[any](),
		incomingResponses: nonce.NewManager[any](),
	}
}

// timerAddr builds the address a Message must be sent to in order to be
// echoed back, unchanged, after delay elapses.
func (m *Manager) timerAddr(delay time.Duration) address.Address {
	return address.MustNew(m.timerPrefix, strconv.FormatInt(delay.Milliseconds(), 10))
}

// OutgoingRequest registers and sends a new outgoing request. It drops
// (returning ErrDuplicateRequest) if payload's nonce is already pending.
// Every entry in Policy.Schedule(payload) is scheduled up front as an
// absolute offset from now; each resend checks whether the request is
// still pending before re-sending, so a matching response (via
// IncomingResponse) silently cancels any resends still in flight.
func (m *Manager) OutgoingRequest(now time.Time, send SendFunc, dst address.Address, payload any) error {
	n, ok := m.policy.Nonce(payload)
	if !ok {
		return ErrNoNonce
	}
	if m.outgoingRequests.IsPresent(n) {
		return ErrDuplicateRequest
	}

	retention := m.policy.Retention(payload)
	state := &requestState{dst: dst, payload: payload, sendCount: 1}
	if err := m.outgoingRequests.Add(now, retention, n, state); err != nil {
		return err
	}

	send(dst, payload)
	for _, delay := range m.policy.Schedule(payload) {
		send(m.timerAddr(delay), ResendTimer{Nonce: n})
	}
	send(m.timerAddr(retention), DiscardTimer{Table: TableOutgoingRequest, Nonce: n})
	return nil
}

// HandleResendTimer re-sends the outgoing request named by t.Nonce, unless
// it has already completed (matching response arrived) or been discarded
// — in either case the nonce is no longer present and this is a no-op.
// Once every scheduled resend has fired, the entry holds quietly until its
// discard timer arrives; no further resends are scheduled automatically.
func (m *Manager) HandleResendTimer(send SendFunc, t ResendTimer) {
	v, ok := m.outgoingRequests.Value(t.Nonce)
	if !ok {
		return
	}
	state := v.(*requestState)
	state.sendCount++
	send(state.dst, state.payload)
}

// HandleDiscardTimer retires the entry named by t.Nonce from the table it
// names. A nonce already removed (by an earlier match or an earlier
// discard) is silently ignored.
func (m *Manager) HandleDiscardTimer(t DiscardTimer) {
	switch t.Table {
	case TableOutgoingRequest:
		_ = m.outgoingRequests.Remove(t.Nonce)
	case TableOutgoingResponse:
		_ = m.outgoingResponses.Remove(t.Nonce)
	case TableIncomingRequest:
		_ = m.incomingRequests.Remove(t.Nonce)
	case TableIncomingResponse:
		_ = m.incomingResponses.Remove(t.Nonce)
	}
}

// OutgoingResponse sends a response to an incoming request. It fails with
// ErrResponseAlreadySent if this nonce has already been answered; the
// cached response state lets a later duplicate request be re-answered
// without re-running business logic (see IncomingRequest).
func (m *Manager) OutgoingResponse(now time.Time, send SendFunc, dst address.Address, payload any) error {
	n, ok := m.policy.Nonce(payload)
	if !ok {
		return ErrNoNonce
	}
	if m.outgoingResponses.IsPresent(n) {
		return ErrResponseAlreadySent
	}

	retention := m.policy.Retention(payload)
	if err := m.outgoingResponses.Add(now, retention, n, payload); err != nil {
		return err
	}
	send(dst, payload)
	send(m.timerAddr(retention), DiscardTimer{Table: TableOutgoingResponse, Nonce: n})
	return nil
}

// IncomingRequest registers an arriving request for dedup and reports
// whether it should be delivered upstream to business logic. It's a
// silent no-op (deliver=false) when the nonce matches one of this actor's
// own outgoing requests (a request-to-self loop). A request duplicating
// one already seen within its retention window is also not delivered
// upstream; instead, if OutgoingResponse has already cached a response for
// this nonce, that cached payload is re-sent to src directly, so a
// duplicate caused by a lost response gets answered without re-running
// business logic.
func (m *Manager) IncomingRequest(now time.Time, send SendFunc, src address.Address, payload any) (deliver bool, err error) {
	n, ok := m.policy.Nonce(payload)
	if !ok {
		return false, ErrNoNonce
	}
	if m.outgoingRequests.IsPresent(n) {
		return false, nil
	}
	if m.incomingRequests.IsPresent(n) {
		if cached, ok := m.outgoingResponses.Value(n); ok {
			send(src, cached)
		}
		return false, nil
	}

	retention := m.policy.Retention(payload)
	if err := m.incomingRequests.Add(now, retention, n, nil); err != nil {
		return false, err
	}
	send(m.timerAddr(retention), DiscardTimer{Table: TableIncomingRequest, Nonce: n})
	return true, nil
}

// IncomingResponse registers an arriving response for dedup and reports
// whether it should be delivered upstream. It's a silent no-op
// (deliver=false) for a duplicate response already seen, or a response
// with no matching outgoing request. A delivered response also removes
// the matching outgoing-request entry, which is what stops any of its
// still-scheduled resends (see HandleResendTimer).
func (m *Manager) IncomingResponse(now time.Time, send SendFunc, payload any) (deliver bool, err error) {
	n, ok := m.policy.Nonce(payload)
	if !ok {
		return false, ErrNoNonce
	}
	if m.incomingResponses.IsPresent(n) {
		return false, nil
	}
	if !m.outgoingRequests.IsPresent(n) {
		return false, nil
	}

	retention := m.policy.Retention(payload)
	if err := m.incomingResponses.Add(now, retention, n, nil); err != nil {
		return false, err
	}
	send(m.timerAddr(retention), DiscardTimer{Table: TableIncomingResponse, Nonce: n})
	_ = m.outgoingRequests.Remove(n)
	return true, nil
}

// Dispatch is the single entry point an actor's Func calls with every
// incoming payload. src is the message's source address (required to
// re-address a cached response on a duplicate request; see
// IncomingRequest). Dispatch recognizes the Manager's own ResendTimer and
// DiscardTimer round-trips, classifies everything else via Policy.Kind,
// and routes requests/responses through IncomingRequest/IncomingResponse.
// deliver reports whether payload should still be handled as ordinary
// business logic by the caller; Policy.Kind returning KindUnclassified
// always yields deliver=true, err=nil.
func (m *Manager) Dispatch(now time.Time, send SendFunc, src address.Address, payload any) (deliver bool, err error) {
	switch t := payload.(type) {
	case ResendTimer:
		m.HandleResendTimer(send, t)
		return false, nil
	case DiscardTimer:
		m.HandleDiscardTimer(t)
		return false, nil
	}

	switch m.policy.Kind(payload) {
	case KindRequest:
		return m.IncomingRequest(now, send, src, payload)
	case KindResponse:
		return m.IncomingResponse(now, send, payload)
	default:
		return true, nil
	}
}

// Process sweeps every table for expired entries directly, independent of
// any scheduled DiscardTimer round-trip. Tests and callers that drive the
// Manager without a timer gateway can use this instead.
func (m *Manager) Process(now time.Time) {
	m.outgoingRequests.Process(now)
	m.outgoingResponses.Process(now)
	m.incomingRequests.Process(now)
	m.incomingResponses.Process(now)
}
