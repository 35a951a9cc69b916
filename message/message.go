// Package message defines the immutable envelope routed between actors and
// gateways. Payloads carry no framework semantics.
package message

import "github.com/joeycumines/peernetic/address"

// Message is an immutable triple of (source, destination, payload).
type Message struct {
	source      address.Address
	destination address.Address
	payload     any
}

// New constructs a Message.
func New(source, destination address.Address, payload any) Message {
	return Message{source: source, destination: destination, payload: payload}
}

// Source returns the sending Address.
func (m Message) Source() address.Address { return m.source }

// Destination returns the receiving Address.
func (m Message) Destination() address.Address { return m.destination }

// Payload returns the opaque payload.
func (m Message) Payload() any { return m.payload }

// WithPayload returns a copy of m with the payload replaced, leaving source
// and destination untouched. Used by components (e.g. the timer gateway)
// that echo a message back under a different destination/payload.
func (m Message) WithPayload(payload any) Message {
	m.payload = payload
	return m
}

// WithDestination returns a copy of m routed to a new destination.
func (m Message) WithDestination(destination address.Address) Message {
	m.destination = destination
	return m
}

// WithSource returns a copy of m attributed to a new source.
func (m Message) WithSource(source address.Address) Message {
	m.source = source
	return m
}

// Reply constructs the natural reply to m: source and destination swapped,
// with the given payload.
func (m Message) Reply(payload any) Message {
	return New(m.destination, m.source, payload)
}
