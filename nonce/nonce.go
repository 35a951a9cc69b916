// Package nonce implements the time-indexed set of outstanding nonces used
// by the transmission subsystem to deduplicate requests and responses and
// cache replies for a bounded retention window. A Manager is not safe for
// concurrent use — it's meant to live inside exactly one actor, stepped
// synchronously by that actor's own goroutine.
package nonce

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNonceExists is returned by Add when the nonce is already present.
var ErrNonceExists = errors.New("nonce: already present")

// ErrNoSuchNonce is returned by AssignValue and Remove when the nonce
// isn't present.
var ErrNoSuchNonce = errors.New("nonce: not present")

type entry struct {
	payload    any
	hasPayload bool
	expiry     time.Time
}

// Manager maps a nonce (any comparable tag — a string, a UUID, an integer
// sequence number) to an optional payload and an expiry time. Callers
// thread a single, consistent clock through Add and Process; Manager never
// reads the wall clock itself, so it behaves identically whether driven by
// a real clock or a simulator's virtual one.
type Manager[N comparable] struct {
	entries map[N]entry
}

// NewManager constructs an empty Manager.
func NewManager[N comparable]() *Manager[N] {
	return &Manager[N]{entries: make(map[N]entry)}
}

// Add registers n with an expiry of now+ttl and, if payload is non-nil,
// the given payload. It fails with ErrNonceExists if n is already present.
func (m *Manager[N]) Add(now time.Time, ttl time.Duration, n N, payload any) error {
	if _, exists := m.entries[n]; exists {
		return ErrNonceExists
	}
	m.entries[n] = entry{payload: payload, hasPayload: payload != nil, expiry: now.Add(ttl)}
	return nil
}

// AssignValue attaches payload to an already-registered nonce, without
// changing its expiry. It fails with ErrNoSuchNonce if n isn't present.
func (m *Manager[N]) AssignValue(n N, payload any) error {
	e, ok := m.entries[n]
	if !ok {
		return ErrNoSuchNonce
	}
	e.payload = payload
	e.hasPayload = true
	m.entries[n] = e
	return nil
}

// Value returns the payload assigned to n, if any.
func (m *Manager[N]) Value(n N) (payload any, ok bool) {
	e, ok := m.entries[n]
	if !ok || !e.hasPayload {
		return nil, false
	}
	return e.payload, true
}

// IsPresent reports whether n is currently registered, regardless of
// whether it carries a payload.
func (m *Manager[N]) IsPresent(n N) bool {
	_, ok := m.entries[n]
	return ok
}

// Remove deregisters n. It fails with ErrNoSuchNonce if n isn't present.
func (m *Manager[N]) Remove(n N) error {
	if _, ok := m.entries[n]; !ok {
		return ErrNoSuchNonce
	}
	delete(m.entries, n)
	return nil
}

// Len returns the number of currently registered nonces.
func (m *Manager[N]) Len() int { return len(m.entries) }

// Process removes every entry whose expiry has passed (expiry <= now) and
// reports the duration until the next soonest expiry among what remains.
// ok is false if nothing remains.
func (m *Manager[N]) Process(now time.Time) (next time.Duration, ok bool) {
	var soonest time.Time
	for n, e := range m.entries {
		if !e.expiry.After(now) {
			delete(m.entries, n)
			continue
		}
		if !ok || e.expiry.Before(soonest) {
			soonest = e.expiry
			ok = true
		}
	}
	if !ok {
		return 0, false
	}
	return soonest.Sub(now), true
}

// NewUUID generates a random nonce suitable as the default NonceAccessor
// target for payload types that don't carry their own natural identifier.
func NewUUID() string {
	return uuid.New().String()
}
