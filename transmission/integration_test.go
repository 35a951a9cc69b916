package transmission_test

import (
	"testing"
	"time"

	"github.com/joeycumines/peernetic/actor"
	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/message"
	"github.com/joeycumines/peernetic/simulator"
	"github.com/joeycumines/peernetic/transmission"
	"github.com/stretchr/testify/require"
)

// dropOnce drops the first Message whose payload matches want, letting
// everything else through unchanged: a minimal simulator.Line for forcing
// exactly one lost packet.
type dropOnce struct {
	want    func(any) bool
	dropped bool
}

func (d *dropOnce) Process(_ time.Time, m message.Message) []simulator.Transit {
	if !d.dropped && d.want(m.Payload()) {
		d.dropped = true
		return nil
	}
	return []simulator.Transit{{Message: m}}
}

// TestResendRecoversFromOneLostRequest drives a transmission.Manager on
// each side of a simulated request/response exchange through the
// deterministic simulator, with a Line that drops the very first request
// packet. The requester's first scheduled resend (at 50ms) is expected to
// reach the responder and produce a matched, delivered response; the second
// scheduled resend then finds the request completed and sends nothing.
func TestResendRecoversFromOneLostRequest(t *testing.T) {
	epoch := time.Unix(0, 0).UTC()

	line := &dropOnce{want: func(p any) bool {
		_, ok := p.(pingPayload)
		return ok
	}}
	sim := simulator.New(epoch, simulator.WithLine(line))
	sim.AddTimer("timer", epoch)

	policy := transmission.Policy{
		Nonce: func(p any) (any, bool) {
			switch v := p.(type) {
			case pingPayload:
				return v.Nonce, true
			case pongPayload:
				return v.Nonce, true
			}
			return nil, false
		},
		Kind: func(p any) transmission.Kind {
			switch p.(type) {
			case pingPayload:
				return transmission.KindRequest
			case pongPayload:
				return transmission.KindResponse
			}
			return transmission.KindUnclassified
		},
		Schedule: func(any) []time.Duration {
			return []time.Duration{50 * time.Millisecond, 150 * time.Millisecond}
		},
		Retention: func(any) time.Duration { return time.Second },
	}

	requesterAddr := address.MustParse("req:only")
	responderAddr := address.MustParse("res:only")

	var delivered []pongPayload
	requesterMgr := transmission.NewManager("timer", policy)
	priming := message.New(requesterAddr, requesterAddr, nil)
	require.NoError(t, sim.AddCoroutineActor(requesterAddr, func(ctx *actor.Context) {
		send := func(dst address.Address, payload any) { ctx.Send(dst, payload) }
		require.NoError(t, requesterMgr.OutgoingRequest(sim.Now(), send, responderAddr, pingPayload{Nonce: "fixed-nonce", Body: "ping"}))
		for {
			ctx.Suspend()
			deliver, err := requesterMgr.Dispatch(sim.Now(), send, ctx.Source, ctx.Incoming)
			require.NoError(t, err)
			if deliver {
				delivered = append(delivered, ctx.Incoming.(pongPayload))
			}
		}
	}, 0, epoch, &priming))

	responderMgr := transmission.NewManager("timer", policy)
	var handledCount int
	require.NoError(t, sim.AddCoroutineActor(responderAddr, func(ctx *actor.Context) {
		for {
			ctx.Suspend()
			send := func(dst address.Address, payload any) { ctx.Send(dst, payload) }
			deliver, err := responderMgr.Dispatch(sim.Now(), send, ctx.Source, ctx.Incoming)
			require.NoError(t, err)
			if !deliver {
				continue
			}
			handledCount++
			req := ctx.Incoming.(pingPayload)
			require.NoError(t, responderMgr.OutgoingResponse(sim.Now(), send, ctx.Source, pongPayload{Nonce: req.Nonce, Body: "pong:" + req.Body}))
		}
	}, 0, epoch, nil))

	_, err := sim.RunUntilIdle(0)
	require.NoError(t, err)

	require.True(t, line.dropped, "the first request must have been dropped to exercise the resend path")
	require.Equal(t, 1, handledCount, "the responder must see exactly one deduplicated request despite the resend")
	require.Len(t, delivered, 1, "the requester must receive exactly one delivered response")
	require.Equal(t, "pong:ping", delivered[0].Body)
}

type pingPayload struct {
	Nonce string
	Body  string
}

type pongPayload struct {
	Nonce string
	Body  string
}
