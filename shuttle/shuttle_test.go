package shuttle_test

import (
	"testing"

	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/message"
	"github.com/joeycumines/peernetic/shuttle"
	"github.com/stretchr/testify/require"
)

func TestNullDiscards(t *testing.T) {
	n := shuttle.NewNull("a")
	a := address.MustParse("a:b")
	require.NoError(t, n.Submit([]message.Message{message.New(a, a, "x")}))
}

func TestFuncDelegates(t *testing.T) {
	var got []message.Message
	f := shuttle.NewFunc("a", func(batch []message.Message) error {
		got = append(got, batch...)
		return nil
	})
	a := address.MustParse("a:b")
	require.NoError(t, f.Submit([]message.Message{message.New(a, a, "x")}))
	require.Len(t, got, 1)
}

func TestRecordingCapturesOrder(t *testing.T) {
	r := shuttle.NewRecording("a")
	a := address.MustParse("a:b")
	require.NoError(t, r.Submit([]message.Message{message.New(a, a, "1")}))
	require.NoError(t, r.Submit([]message.Message{message.New(a, a, "2")}))

	flat := r.Flat()
	require.Len(t, flat, 2)
	require.Equal(t, "1", flat[0].Payload())
	require.Equal(t, "2", flat[1].Payload())
}

func TestRoute(t *testing.T) {
	a := address.MustParse("a:x")
	b := address.MustParse("b:y")
	empty := address.Address{}
	src := address.MustParse("s")

	msgs := []message.Message{
		message.New(src, a, 1),
		message.New(src, b, 2),
		message.New(src, a, 3),
		message.New(src, empty, 4),
	}
	grouped := shuttle.Route(msgs)
	require.Len(t, grouped["a"], 2)
	require.Len(t, grouped["b"], 1)
	require.NotContains(t, grouped, "")
}

func TestRegistryDispatchDropsUnregistered(t *testing.T) {
	reg := shuttle.NewRegistry()
	rec := shuttle.NewRecording("a")
	reg.Add(rec)

	src := address.MustParse("s")
	dstA := address.MustParse("a:x")
	dstB := address.MustParse("b:y")

	dropped, err := reg.Dispatch([]message.Message{
		message.New(src, dstA, 1),
		message.New(src, dstB, 2),
	})
	require.NoError(t, err)
	require.Len(t, dropped, 1)
	require.Equal(t, 2, dropped[0].Payload())
	require.Len(t, rec.Flat(), 1)
}

func TestRegistryAddRemove(t *testing.T) {
	reg := shuttle.NewRegistry()
	rec := shuttle.NewRecording("a")
	reg.Add(rec)
	_, ok := reg.Get("a")
	require.True(t, ok)

	reg.Remove("a")
	_, ok = reg.Get("a")
	require.False(t, ok)
}
