package gateway_test

import (
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/gateway"
	"github.com/joeycumines/peernetic/message"
	"github.com/joeycumines/peernetic/shuttle"
	"github.com/stretchr/testify/require"
)

func TestGatewayHandlesDeliveredBatch(t *testing.T) {
	var mu sync.Mutex
	var received []message.Message
	done := make(chan struct{})

	g := gateway.New("g", func(batch []message.Message) {
		mu.Lock()
		received = append(received, batch...)
		mu.Unlock()
		close(done)
	}, nil)
	defer g.Close()

	a := address.MustParse("g:1")
	require.NoError(t, g.Incoming().Submit([]message.Message{message.New(a, a, "hi")}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	require.Equal(t, "hi", received[0].Payload())
}

func TestGatewaySendRoutesToRegisteredShuttle(t *testing.T) {
	g := gateway.New("g", nil, nil)
	defer g.Close()

	rec := shuttle.NewRecording("dst")
	g.AddOutgoingShuttle(rec)

	time.Sleep(20 * time.Millisecond) // let the add record drain

	src := address.MustParse("g:1")
	dst := address.MustParse("dst:2")
	g.Send([]message.Message{message.New(src, dst, "payload")})

	require.Eventually(t, func() bool {
		return len(rec.Flat()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestGatewayCloseIsIdempotentAndStopsDelivery(t *testing.T) {
	g := gateway.New("g", func(batch []message.Message) {}, nil)
	g.Close()
	require.NotPanics(t, func() { g.Close() })

	a := address.MustParse("g:1")
	err := g.Incoming().Submit([]message.Message{message.New(a, a, "x")})
	require.Error(t, err)
}
