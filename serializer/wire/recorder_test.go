package wire_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/message"
	"github.com/joeycumines/peernetic/serializer/wire"
	"github.com/stretchr/testify/require"
)

func TestRecorderReplayerRoundTrip(t *testing.T) {
	prefix := address.MustParse("net")
	var buf bytes.Buffer
	rec := wire.NewRecorder(&buf, wire.Codec{}, prefix)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(250 * time.Millisecond)

	require.NoError(t, rec.Record(t0, []message.Message{
		message.New(address.MustParse("a:x"), address.MustParse("net:echo"), "first"),
	}))
	require.NoError(t, rec.Record(t1, []message.Message{
		message.New(address.MustParse("a:x"), address.MustParse("net:echo"), "second"),
	}))

	var slept []time.Duration
	var delivered []message.Message
	replayPrefix := address.MustParse("replayed")
	p := wire.NewReplayer(&buf, wire.Codec{}, replayPrefix, func(m message.Message) {
		delivered = append(delivered, m)
	})
	p.SetSleep(func(d time.Duration) { slept = append(slept, d) })

	require.NoError(t, p.ReplayNext())
	require.NoError(t, p.ReplayNext())
	require.ErrorIs(t, p.ReplayNext(), io.EOF)

	require.Len(t, delivered, 2)
	require.Equal(t, "first", delivered[0].Payload())
	require.Equal(t, "replayed:echo", delivered[0].Destination().String())
	require.Equal(t, "second", delivered[1].Payload())

	require.Len(t, slept, 1)
	require.Equal(t, 250*time.Millisecond, slept[0])
}

func TestWriteReadBlockRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	block := wire.RecordedBlock{
		Time: time.Unix(100, 0).UTC(),
		Messages: []wire.SubMessage{
			{Source: address.MustParse("a:x"), DestinationSuffix: address.MustParse("echo"), Payload: []byte("hi")},
		},
	}
	require.NoError(t, wire.WriteBlock(&buf, block))

	got, err := wire.ReadBlock(&buf)
	require.NoError(t, err)
	require.True(t, got.Time.Equal(block.Time))
	require.Equal(t, block.Messages, got.Messages)
}

func TestReadBlockReportsEOFAtBoundary(t *testing.T) {
	var buf bytes.Buffer
	_, err := wire.ReadBlock(&buf)
	require.ErrorIs(t, err, io.EOF)
}
