// Package serializer defines the opaque bytes<->payload boundary crossed
// by network-facing Shuttle implementations. The framework never
// interprets a payload itself; only a Serializer, injected at
// construction, knows how to turn one into bytes and back.
package serializer

// Serializer converts an actor's in-memory payload to and from its wire
// representation. Implementations decide which concrete payload types
// they support; Marshal should fail fast (not panic) for anything else.
type Serializer interface {
	Marshal(payload any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}
