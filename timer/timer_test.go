package timer_test

import (
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/message"
	"github.com/joeycumines/peernetic/shuttle"
	"github.com/joeycumines/peernetic/timer"
	"github.com/stretchr/testify/require"
)

func TestTimerRoundTrip(t *testing.T) {
	g := timer.New("timer", nil)
	defer g.Close()

	rec := shuttle.NewRecording("a")
	g.AddOutgoingShuttle(rec)

	src := address.MustParse("a:x")
	dst := address.MustParse("timer:20")
	require.NoError(t, g.Incoming().Submit([]message.Message{message.New(src, dst, 42)}))

	require.Eventually(t, func() bool {
		return len(rec.Flat()) == 1
	}, time.Second, 5*time.Millisecond)

	got := rec.Flat()[0]
	require.Equal(t, 42, got.Payload())
	require.Equal(t, dst.String(), got.Source().String())
	require.Equal(t, src.String(), got.Destination().String())
}

func TestTimerOrdering(t *testing.T) {
	g := timer.New("timer", nil)
	defer g.Close()

	var mu sync.Mutex
	var order []int

	rec := shuttle.NewFunc("a", func(batch []message.Message) error {
		mu.Lock()
		defer mu.Unlock()
		for _, m := range batch {
			order = append(order, m.Payload().(int))
		}
		return nil
	})
	g.AddOutgoingShuttle(rec)

	src := address.MustParse("a:x")
	require.NoError(t, g.Incoming().Submit([]message.Message{
		message.New(src, address.MustParse("timer:60"), 2),
		message.New(src, address.MustParse("timer:10"), 1),
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2}, order)
}

func TestTimerDropsMalformedMillis(t *testing.T) {
	g := timer.New("timer", nil)
	defer g.Close()

	rec := shuttle.NewRecording("a")
	g.AddOutgoingShuttle(rec)

	src := address.MustParse("a:x")
	require.NoError(t, g.Incoming().Submit([]message.Message{
		message.New(src, address.MustParse("timer:notanumber"), 1),
	}))

	time.Sleep(30 * time.Millisecond)
	require.Empty(t, rec.Flat())
}

func TestTimerZeroMillisDeliversOnLaterStep(t *testing.T) {
	g := timer.New("timer", nil)
	defer g.Close()

	rec := shuttle.NewRecording("a")
	g.AddOutgoingShuttle(rec)

	src := address.MustParse("a:x")
	require.NoError(t, g.Incoming().Submit([]message.Message{
		message.New(src, address.MustParse("timer:0"), "now"),
	}))

	require.Eventually(t, func() bool {
		return len(rec.Flat()) == 1
	}, time.Second, 5*time.Millisecond)
}
