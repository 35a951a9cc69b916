package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/message"
	"github.com/joeycumines/peernetic/serializer"
)

// ErrBlockTooLarge is returned by WriteBlock when an encoded RecordedBlock
// would overflow the int32 length prefix.
var ErrBlockTooLarge = errors.New("wire: recorded block exceeds int32 length")

const (
	blockFieldTime     protowire.Number = 1
	blockFieldMessages protowire.Number = 2

	subFieldSource protowire.Number = 1
	subFieldSuffix protowire.Number = 2
	subFieldBody   protowire.Number = 3
)

// SubMessage is one delivered Message as recorded inside a block: its
// source Address, its destination Address with the recorder's own
// destination prefix already stripped off, and its serialized payload.
type SubMessage struct {
	Source            address.Address
	DestinationSuffix address.Address
	Payload           []byte
}

// RecordedBlock is one batch of Messages captured at the same wall-clock
// instant.
type RecordedBlock struct {
	Time     time.Time
	Messages []SubMessage
}

// parseAddressOrEmpty treats an empty string as the zero-element Address
// (address.Parse itself rejects "" as malformed, since that's almost
// always a construction mistake — but a recorded destination suffix
// legitimately can be empty, when the recorded destination equaled the
// recorder's own prefix exactly).
func parseAddressOrEmpty(s string) (address.Address, error) {
	if s == "" {
		return address.Address{}, nil
	}
	return address.Parse(s)
}

func encodeSubMessage(sm SubMessage) []byte {
	var b []byte
	b = protowire.AppendTag(b, subFieldSource, protowire.BytesType)
	b = protowire.AppendString(b, sm.Source.String())
	b = protowire.AppendTag(b, subFieldSuffix, protowire.BytesType)
	b = protowire.AppendString(b, sm.DestinationSuffix.String())
	b = protowire.AppendTag(b, subFieldBody, protowire.BytesType)
	b = protowire.AppendBytes(b, sm.Payload)
	return b
}

func decodeSubMessage(data []byte) (SubMessage, error) {
	var sm SubMessage
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 || typ != protowire.BytesType {
			return SubMessage{}, ErrMalformed
		}
		data = data[n:]
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return SubMessage{}, ErrMalformed
		}
		data = data[n:]
		switch num {
		case subFieldSource:
			a, err := address.Parse(string(v))
			if err != nil {
				return SubMessage{}, fmt.Errorf("wire: sub-message source: %w", err)
			}
			sm.Source = a
		case subFieldSuffix:
			a, err := parseAddressOrEmpty(string(v))
			if err != nil {
				return SubMessage{}, fmt.Errorf("wire: sub-message destination suffix: %w", err)
			}
			sm.DestinationSuffix = a
		case subFieldBody:
			cp := make([]byte, len(v))
			copy(cp, v)
			sm.Payload = cp
		}
	}
	return sm, nil
}

// EncodeBlock renders block as protowire fields: a varint timestamp
// (Unix nanoseconds) followed by one length-delimited embedded message
// per recorded sub-message.
func EncodeBlock(block RecordedBlock) []byte {
	var b []byte
	b = protowire.AppendTag(b, blockFieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(block.Time.UnixNano()))
	for _, sm := range block.Messages {
		b = protowire.AppendTag(b, blockFieldMessages, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeSubMessage(sm))
	}
	return b
}

// DecodeBlock is the inverse of EncodeBlock.
func DecodeBlock(data []byte) (RecordedBlock, error) {
	var block RecordedBlock
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return RecordedBlock{}, ErrMalformed
		}
		data = data[n:]
		switch num {
		case blockFieldTime:
			if typ != protowire.VarintType {
				return RecordedBlock{}, ErrMalformed
			}
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return RecordedBlock{}, ErrMalformed
			}
			data = data[n:]
			block.Time = time.Unix(0, int64(v)).UTC()
		case blockFieldMessages:
			if typ != protowire.BytesType {
				return RecordedBlock{}, ErrMalformed
			}
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return RecordedBlock{}, ErrMalformed
			}
			data = data[n:]
			sm, err := decodeSubMessage(v)
			if err != nil {
				return RecordedBlock{}, err
			}
			block.Messages = append(block.Messages, sm)
		default:
			return RecordedBlock{}, ErrMalformed
		}
	}
	return block, nil
}

// WriteBlock writes block to w as {int32 length, bytes EncodeBlock(block)}.
func WriteBlock(w io.Writer, block RecordedBlock) error {
	encoded := EncodeBlock(block)
	if len(encoded) > (1<<31)-1 {
		return ErrBlockTooLarge
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(encoded)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := w.Write(encoded)
	return err
}

// ReadBlock reads one {int32 length, bytes RecordedBlock} record from r.
// It returns io.EOF (unwrapped) when r is exhausted exactly at a record
// boundary.
func ReadBlock(r io.Reader) (RecordedBlock, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return RecordedBlock{}, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return RecordedBlock{}, err
	}
	return DecodeBlock(buf)
}

// Recorder captures batches of delivered Messages to an io.Writer, one
// RecordedBlock per Record call, stamped with the time the caller passes
// to Record. prefix names the destination prefix stripped from every Message
// before it's stored as a SubMessage's DestinationSuffix.
type Recorder struct {
	w      io.Writer
	ser    serializer.Serializer
	prefix address.Address
}

// NewRecorder constructs a Recorder writing to w, serializing payloads
// with ser, and stripping prefix from every recorded destination.
func NewRecorder(w io.Writer, ser serializer.Serializer, prefix address.Address) *Recorder {
	return &Recorder{w: w, ser: ser, prefix: prefix}
}

// Record serializes batch as one RecordedBlock and writes it.
func (r *Recorder) Record(now time.Time, batch []message.Message) error {
	block := RecordedBlock{Time: now}
	for _, m := range batch {
		suffix, err := m.Destination().RemovePrefix(r.prefix)
		if err != nil {
			return fmt.Errorf("wire: recorder: %w", err)
		}
		payload, err := r.ser.Marshal(m.Payload())
		if err != nil {
			return fmt.Errorf("wire: recorder: %w", err)
		}
		block.Messages = append(block.Messages, SubMessage{
			Source:            m.Source(),
			DestinationSuffix: suffix,
			Payload:           payload,
		})
	}
	return WriteBlock(r.w, block)
}

// Replayer reads a sequence of RecordedBlocks from an io.Reader and
// injects their Messages, via send, under a caller-chosen destination
// prefix, sleeping the real inter-block time deltas as it goes.
type Replayer struct {
	r      io.Reader
	ser    serializer.Serializer
	prefix address.Address
	send   func(message.Message)
	sleep  func(time.Duration)
	last   time.Time
	first  bool
}

// NewReplayer constructs a Replayer reading from r, decoding payloads
// with ser, re-addressing every replayed Message under prefix, and
// delivering each via send.
func NewReplayer(r io.Reader, ser serializer.Serializer, prefix address.Address, send func(message.Message)) *Replayer {
	return &Replayer{r: r, ser: ser, prefix: prefix, send: send, sleep: time.Sleep, first: true}
}

// SetSleep overrides the function used to wait out inter-block deltas,
// normally time.Sleep. Tests substitute a recording stub to assert
// timing without actually waiting.
func (p *Replayer) SetSleep(sleep func(time.Duration)) { p.sleep = sleep }

// ReplayNext reads and delivers the next recorded block, sleeping the
// real wall-clock delta since the previously replayed block (none, for
// the first). It returns io.EOF when the underlying reader is exhausted.
func (p *Replayer) ReplayNext() error {
	block, err := ReadBlock(p.r)
	if err != nil {
		return err
	}
	if !p.first {
		if delta := block.Time.Sub(p.last); delta > 0 {
			p.sleep(delta)
		}
	}
	p.first = false
	p.last = block.Time

	for _, sm := range block.Messages {
		dst, err := p.prefix.Append(sm.DestinationSuffix.Elements()...)
		if err != nil {
			return fmt.Errorf("wire: replayer: %w", err)
		}
		payload, err := p.ser.Unmarshal(sm.Payload)
		if err != nil {
			return fmt.Errorf("wire: replayer: %w", err)
		}
		p.send(message.New(sm.Source, dst, payload))
	}
	return nil
}
