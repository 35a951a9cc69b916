package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/message"
	"github.com/joeycumines/peernetic/serializer"
)

const (
	fieldSource      protowire.Number = 1
	fieldDestination protowire.Number = 2
	fieldPayload     protowire.Number = 3
)

// EncodeMessage renders m as a sequence of three length-delimited wire
// fields (source address, destination address, opaque payload), using
// ser to turn m's payload into bytes.
func EncodeMessage(m message.Message, ser serializer.Serializer) ([]byte, error) {
	payload, err := ser.Marshal(m.Payload())
	if err != nil {
		return nil, fmt.Errorf("wire: encode payload: %w", err)
	}
	var b []byte
	b = protowire.AppendTag(b, fieldSource, protowire.BytesType)
	b = protowire.AppendString(b, m.Source().String())
	b = protowire.AppendTag(b, fieldDestination, protowire.BytesType)
	b = protowire.AppendString(b, m.Destination().String())
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)
	return b, nil
}

// DecodeMessage is the inverse of EncodeMessage.
func DecodeMessage(data []byte, ser serializer.Serializer) (message.Message, error) {
	var src, dst address.Address
	var payload any
	haveSrc, haveDst, havePayload := false, false, false

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return message.Message{}, fmt.Errorf("%w: tag", ErrMalformed)
		}
		data = data[n:]
		if typ != protowire.BytesType {
			return message.Message{}, fmt.Errorf("%w: unexpected wire type for field %d", ErrMalformed, num)
		}
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return message.Message{}, fmt.Errorf("%w: field %d", ErrMalformed, num)
		}
		data = data[n:]

		switch num {
		case fieldSource:
			a, err := address.Parse(string(v))
			if err != nil {
				return message.Message{}, fmt.Errorf("wire: source address: %w", err)
			}
			src, haveSrc = a, true
		case fieldDestination:
			a, err := address.Parse(string(v))
			if err != nil {
				return message.Message{}, fmt.Errorf("wire: destination address: %w", err)
			}
			dst, haveDst = a, true
		case fieldPayload:
			p, err := ser.Unmarshal(v)
			if err != nil {
				return message.Message{}, fmt.Errorf("wire: decode payload: %w", err)
			}
			payload, havePayload = p, true
		}
	}

	if !haveSrc || !haveDst || !havePayload {
		return message.Message{}, fmt.Errorf("%w: missing field", ErrMalformed)
	}
	return message.New(src, dst, payload), nil
}
