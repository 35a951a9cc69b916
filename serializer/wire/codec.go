// Package wire implements serializer.Serializer directly on top of
// google.golang.org/protobuf/encoding/protowire's low-level append/consume
// primitives — no .proto file, no generated stubs. It also provides the
// Message envelope codec and the recorder/replayer block format used by
// file-backed Shuttles.
package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrUnsupportedPayload is returned by Codec.Marshal for any payload type
// outside the closed set Codec supports.
var ErrUnsupportedPayload = errors.New("wire: unsupported payload type")

// ErrMalformed is returned by Codec.Unmarshal (and the other decoders in
// this package) when the input bytes don't parse as a valid encoding.
var ErrMalformed = errors.New("wire: malformed encoding")

// kind tags which of Codec's supported payload shapes follows, so
// Unmarshal knows how to interpret the bytes after it.
type kind uint64

const (
	kindNil kind = iota
	kindBytes
	kindString
	kindBool
	kindInt64
	kindFloat64
)

// Codec is a Serializer supporting nil, []byte, string, bool, int64, and
// float64 payloads — the set this module's actors and tests exercise.
// Each value is preceded by a one-field varint kind tag so Unmarshal can
// dispatch without guessing.
type Codec struct{}

// Marshal implements serializer.Serializer.
func (Codec) Marshal(payload any) ([]byte, error) {
	var b []byte
	switch v := payload.(type) {
	case nil:
		b = protowire.AppendVarint(b, uint64(kindNil))
	case []byte:
		b = protowire.AppendVarint(b, uint64(kindBytes))
		b = protowire.AppendBytes(b, v)
	case string:
		b = protowire.AppendVarint(b, uint64(kindString))
		b = protowire.AppendString(b, v)
	case bool:
		b = protowire.AppendVarint(b, uint64(kindBool))
		var i uint64
		if v {
			i = 1
		}
		b = protowire.AppendVarint(b, i)
	case int64:
		b = protowire.AppendVarint(b, uint64(kindInt64))
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(v))
	case int:
		return Codec{}.Marshal(int64(v))
	case float64:
		b = protowire.AppendVarint(b, uint64(kindFloat64))
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedPayload, payload)
	}
	return b, nil
}

// Unmarshal implements serializer.Serializer.
func (Codec) Unmarshal(data []byte) (any, error) {
	k, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, ErrMalformed
	}
	data = data[n:]
	switch kind(k) {
	case kindNil:
		return nil, nil
	case kindBytes:
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, ErrMalformed
		}
		cp := make([]byte, len(v))
		copy(cp, v)
		return cp, nil
	case kindString:
		v, n := protowire.ConsumeString(data)
		if n < 0 {
			return nil, ErrMalformed
		}
		return v, nil
	case kindBool:
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, ErrMalformed
		}
		return v != 0, nil
	case kindInt64:
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, ErrMalformed
		}
		return protowire.DecodeZigZag(v), nil
	case kindFloat64:
		v, n := protowire.ConsumeFixed64(data)
		if n < 0 {
			return nil, ErrMalformed
		}
		return math.Float64frombits(v), nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformed, k)
	}
}
