package actor_test

import (
	"testing"
	"time"

	"github.com/joeycumines/peernetic/actor"
	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/message"
	"github.com/joeycumines/peernetic/shuttle"
	"github.com/stretchr/testify/require"
)

func echoActor(ctx *actor.Context) {
	for {
		ctx.Reply(ctx.Incoming)
		ctx.Suspend()
	}
}

func TestHostEchoRoundTrip(t *testing.T) {
	prefix := address.MustParse("echo")
	h := actor.NewHost(prefix, nil)
	defer h.Close()

	rec := shuttle.NewRecording("client")
	h.AddOutgoingShuttle(rec)

	self, err := h.AddActor("1", echoActor, nil)
	require.NoError(t, err)
	require.Equal(t, "echo:1", self.String())

	client := address.MustParse("client:1")
	require.NoError(t, h.IncomingShuttle().Submit([]message.Message{
		message.New(client, self, "ping"),
	}))

	require.Eventually(t, func() bool {
		return len(rec.Flat()) == 1
	}, time.Second, 5*time.Millisecond)

	got := rec.Flat()[0]
	require.Equal(t, "ping", got.Payload())
	require.Equal(t, self.String(), got.Source().String())
	require.Equal(t, client.String(), got.Destination().String())
}

func TestHostAddActorPrimingMessage(t *testing.T) {
	prefix := address.MustParse("echo")
	h := actor.NewHost(prefix, nil)
	defer h.Close()

	rec := shuttle.NewRecording("client")
	h.AddOutgoingShuttle(rec)

	client := address.MustParse("client:1")
	self, err := h.AddActor("1", echoActor, nil)
	require.NoError(t, err)

	priming := message.New(client, address.MustParse("echo:2"), "hello")
	self2, err := h.AddActor("2", echoActor, &priming)
	require.NoError(t, err)
	require.NotEqual(t, self.String(), self2.String())

	require.Eventually(t, func() bool {
		return len(rec.Flat()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "hello", rec.Flat()[0].Payload())
}

func TestHostRemoveActorThenDropsMessages(t *testing.T) {
	prefix := address.MustParse("echo")
	h := actor.NewHost(prefix, nil)
	defer h.Close()

	self, err := h.AddActor("1", echoActor, nil)
	require.NoError(t, err)
	require.NoError(t, h.RemoveActor("1"))
	require.Equal(t, 0, h.Len())

	client := address.MustParse("client:1")
	require.NoError(t, h.IncomingShuttle().Submit([]message.Message{
		message.New(client, self, "ping"),
	}))

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, h.Len())
}

func TestHostCloseStopsWorker(t *testing.T) {
	prefix := address.MustParse("echo")
	h := actor.NewHost(prefix, nil)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
}
