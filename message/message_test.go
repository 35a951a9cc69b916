package message_test

import (
	"testing"

	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/message"
	"github.com/stretchr/testify/require"
)

func TestMessageReply(t *testing.T) {
	src := address.MustParse("a:s")
	dst := address.MustParse("b:e")
	m := message.New(src, dst, "hi")

	reply := m.Reply("bye")
	require.True(t, reply.Source().Equal(dst))
	require.True(t, reply.Destination().Equal(src))
	require.Equal(t, "bye", reply.Payload())

	// original untouched
	require.True(t, m.Source().Equal(src))
	require.Equal(t, "hi", m.Payload())
}

func TestMessageWithers(t *testing.T) {
	src := address.MustParse("a:s")
	dst := address.MustParse("b:e")
	m := message.New(src, dst, 1)

	m2 := m.WithPayload(2)
	require.Equal(t, 2, m2.Payload())
	require.Equal(t, 1, m.Payload())

	newDst := address.MustParse("c:f")
	m3 := m.WithDestination(newDst)
	require.True(t, m3.Destination().Equal(newDst))
	require.True(t, m.Destination().Equal(dst))
}
