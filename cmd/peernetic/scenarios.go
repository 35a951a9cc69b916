package main

import (
	"fmt"
	"io"
	"time"

	"github.com/joeycumines/peernetic/actor"
	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/chord"
	"github.com/joeycumines/peernetic/message"
	"github.com/joeycumines/peernetic/nonce"
	"github.com/joeycumines/peernetic/simulator"
	"github.com/joeycumines/peernetic/transmission"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func runEcho(out io.Writer) error {
	sim := simulator.New(epoch)
	echoSelf := address.MustParse("a:echo")
	if err := sim.AddCoroutineActor(echoSelf, func(ctx *actor.Context) {
		for {
			ctx.Reply(ctx.Incoming)
			ctx.Suspend()
		}
	}, 0, epoch, nil); err != nil {
		return err
	}

	senderSelf := address.MustParse("b:sender")
	priming := message.New(senderSelf, senderSelf, "ping")
	if err := sim.AddCoroutineActor(senderSelf, func(ctx *actor.Context) {
		ctx.Send(echoSelf, ctx.Incoming)
		ctx.Suspend()
		fmt.Fprintf(out, "sender received: %v\n", ctx.Incoming)
		ctx.Suspend()
	}, 0, epoch, &priming); err != nil {
		return err
	}

	if _, err := sim.RunUntilIdle(0); err != nil {
		return err
	}
	printTrace(out, sim)
	return nil
}

func runTimer(out io.Writer) error {
	sim := simulator.New(epoch)
	sim.AddTimer("timer", epoch)

	self := address.MustParse("a:timed")
	priming := message.New(self, self, nil)
	if err := sim.AddCoroutineActor(self, func(ctx *actor.Context) {
		ctx.Send(address.MustParse("timer:500"), "wake up")
		ctx.Suspend()
		fmt.Fprintf(out, "timer fired at t=%s: %v\n", sim.Now().Sub(epoch), ctx.Incoming)
		ctx.Suspend()
	}, 0, epoch, &priming); err != nil {
		return err
	}

	_, err := sim.RunUntilIdle(0)
	return err
}

type resendRequest struct {
	Nonce string
	Body  string
}

type resendResponse struct {
	Nonce string
	Body  string
}

func resendPolicy() transmission.Policy {
	return transmission.Policy{
		Nonce: func(p any) (any, bool) {
			switch v := p.(type) {
			case resendRequest:
				return v.Nonce, true
			case resendResponse:
				return v.Nonce, true
			}
			return nil, false
		},
		Kind: func(p any) transmission.Kind {
			switch p.(type) {
			case resendRequest:
				return transmission.KindRequest
			case resendResponse:
				return transmission.KindResponse
			}
			return transmission.KindUnclassified
		},
		Schedule: func(any) []time.Duration {
			return []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}
		},
		Retention: func(any) time.Duration { return 2 * time.Second },
	}
}

// dropFirstRequest drops the very first resendRequest Message it sees
// (modeling one lost packet on the wire), letting the first scheduled
// resend through untouched — a concrete demonstration of the
// transmission Manager's resend-on-loss behavior.
type dropFirstRequest struct{ dropped bool }

func (d *dropFirstRequest) Process(_ time.Time, m message.Message) []simulator.Transit {
	if !d.dropped {
		if _, ok := m.Payload().(resendRequest); ok {
			d.dropped = true
			return nil
		}
	}
	return []simulator.Transit{{Message: m}}
}

func runResend(out io.Writer) error {
	sim := simulator.New(epoch, simulator.WithLine(&dropFirstRequest{}))
	sim.AddTimer("timer", epoch)

	requesterSelf := address.MustParse("req:node")
	responderSelf := address.MustParse("res:node")
	policy := resendPolicy()

	requesterMgr := transmission.NewManager("timer", policy)
	priming := message.New(requesterSelf, requesterSelf, nil)
	if err := sim.AddCoroutineActor(requesterSelf, func(ctx *actor.Context) {
		send := func(dst address.Address, payload any) { ctx.Send(dst, payload) }
		if err := requesterMgr.OutgoingRequest(sim.Now(), send, responderSelf, resendRequest{Nonce: nonce.NewUUID(), Body: "hello"}); err != nil {
			fmt.Fprintf(out, "outgoing request failed: %v\n", err)
		}
		for {
			ctx.Suspend()
			deliver, err := requesterMgr.Dispatch(sim.Now(), send, ctx.Source, ctx.Incoming)
			if err != nil {
				fmt.Fprintf(out, "requester dispatch error: %v\n", err)
				continue
			}
			if deliver {
				fmt.Fprintf(out, "requester delivered %v at t=%s\n", ctx.Incoming, sim.Now().Sub(epoch))
			}
		}
	}, 0, epoch, &priming); err != nil {
		return err
	}

	responderMgr := transmission.NewManager("timer", policy)
	if err := sim.AddCoroutineActor(responderSelf, func(ctx *actor.Context) {
		for {
			ctx.Suspend()
			send := func(dst address.Address, payload any) { ctx.Send(dst, payload) }
			deliver, err := responderMgr.Dispatch(sim.Now(), send, ctx.Source, ctx.Incoming)
			if err != nil {
				fmt.Fprintf(out, "responder dispatch error: %v\n", err)
				continue
			}
			if !deliver {
				continue
			}
			req := ctx.Incoming.(resendRequest)
			fmt.Fprintf(out, "responder handling %q at t=%s\n", req.Body, sim.Now().Sub(epoch))
			if err := responderMgr.OutgoingResponse(sim.Now(), send, ctx.Source, resendResponse{Nonce: req.Nonce, Body: "echo:" + req.Body}); err != nil {
				fmt.Fprintf(out, "outgoing response failed: %v\n", err)
			}
		}
	}, 0, epoch, nil); err != nil {
		return err
	}

	_, err := sim.RunUntilIdle(0)
	return err
}

func runChord(out io.Writer) error {
	table := chord.NewTable(0, 6)
	for _, id := range []uint64{16, 2, 8, 4} {
		if err := table.Put(id); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "finger table ids: %v\n", table.Ids())
	return nil
}

func runRing(out io.Writer, seed int64, ticks int) error {
	sim := simulator.New(epoch, simulator.WithLine(simulator.NewSimpleLine(simulator.SimpleLineConfig{
		Seed:            seed,
		MinDelay:        time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		DropProbability: 0.05,
	})))

	const ringSize = 8
	addrs := make([]address.Address, ringSize)
	for i := range addrs {
		addrs[i] = address.MustParse(fmt.Sprintf("ring:%d", i))
	}
	for i, a := range addrs {
		next := addrs[(i+1)%ringSize]
		var priming *message.Message
		if i == 0 {
			m := message.New(a, a, "token")
			priming = &m
		}
		if err := sim.AddCoroutineActor(a, func(ctx *actor.Context) {
			fmt.Fprintf(out, "node %s forwarding token at t=%s\n", ctx.Self, sim.Now().Sub(epoch))
			ctx.Send(next, ctx.Incoming)
			ctx.Suspend()
		}, 0, epoch, priming); err != nil {
			return err
		}
	}

	n, err := sim.RunUntilIdle(ticks)
	fmt.Fprintf(out, "processed %d events\n", n)
	return err
}

func printTrace(out io.Writer, sim *simulator.Simulator) {
	for _, tr := range sim.Trace() {
		fmt.Fprintf(out, "t=%s %s -> %s: %v\n", tr.Time.Sub(epoch), tr.Source, tr.Destination, tr.Payload)
	}
}
