package transmission_test

import (
	"testing"
	"time"

	"github.com/joeycumines/peernetic/address"
	"github.com/joeycumines/peernetic/transmission"
	"github.com/stretchr/testify/require"
)

type request struct {
	Nonce string
	Body  string
}

type response struct {
	Nonce string
	Body  string
}

func testPolicy() transmission.Policy {
	return transmission.Policy{
		Nonce: func(payload any) (any, bool) {
			switch p := payload.(type) {
			case request:
				return p.Nonce, true
			case response:
				return p.Nonce, true
			default:
				return nil, false
			}
		},
		Kind: func(payload any) transmission.Kind {
			switch payload.(type) {
			case request:
				return transmission.KindRequest
			case response:
				return transmission.KindResponse
			default:
				return transmission.KindUnclassified
			}
		},
		Schedule: func(payload any) []time.Duration {
			return []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
		},
		Retention: func(payload any) time.Duration {
			return time.Second
		},
	}
}

type sent struct {
	dst     address.Address
	payload any
}

func TestOutgoingRequestSendsAndSchedules(t *testing.T) {
	m := transmission.NewManager("timer", testPolicy())
	now := time.Unix(0, 0)
	dst := address.MustParse("peer:1")

	var log []sent
	send := func(d address.Address, p any) { log = append(log, sent{d, p}) }

	require.NoError(t, m.OutgoingRequest(now, send, dst, request{Nonce: "n1", Body: "hi"}))
	// initial send + 3 resend timer schedules + 1 discard timer schedule
	require.Len(t, log, 5)
	require.Equal(t, dst.String(), log[0].dst.String())
	require.Equal(t, "timer:100", log[1].dst.String())
	require.Equal(t, "timer:200", log[2].dst.String())
	require.Equal(t, "timer:400", log[3].dst.String())
	require.Equal(t, "timer:1000", log[4].dst.String())
}

func TestOutgoingRequestRejectsDuplicateNonce(t *testing.T) {
	m := transmission.NewManager("timer", testPolicy())
	now := time.Unix(0, 0)
	dst := address.MustParse("peer:1")
	send := func(address.Address, any) {}

	require.NoError(t, m.OutgoingRequest(now, send, dst, request{Nonce: "n1"}))
	require.ErrorIs(t, m.OutgoingRequest(now, send, dst, request{Nonce: "n1"}), transmission.ErrDuplicateRequest)
}

func TestIncomingResponseIdempotence(t *testing.T) {
	m := transmission.NewManager("timer", testPolicy())
	now := time.Unix(0, 0)
	dst := address.MustParse("peer:1")
	send := func(address.Address, any) {}

	require.NoError(t, m.OutgoingRequest(now, send, dst, request{Nonce: "n1"}))

	delivered := 0
	for i := 0; i < 3; i++ {
		deliver, err := m.IncomingResponse(now, send, response{Nonce: "n1"})
		require.NoError(t, err)
		if deliver {
			delivered++
		}
	}
	require.Equal(t, 1, delivered)
}

func TestIncomingResponseDropsUnmatched(t *testing.T) {
	m := transmission.NewManager("timer", testPolicy())
	now := time.Unix(0, 0)
	send := func(address.Address, any) {}

	deliver, err := m.IncomingResponse(now, send, response{Nonce: "never-requested"})
	require.NoError(t, err)
	require.False(t, deliver)
}

func TestMatchingResponseCancelsResends(t *testing.T) {
	m := transmission.NewManager("timer", testPolicy())
	now := time.Unix(0, 0)
	dst := address.MustParse("peer:1")
	send := func(address.Address, any) {}

	require.NoError(t, m.OutgoingRequest(now, send, dst, request{Nonce: "n1"}))
	deliver, err := m.IncomingResponse(now, send, response{Nonce: "n1"})
	require.NoError(t, err)
	require.True(t, deliver)

	var log []sent
	resendSend := func(d address.Address, p any) { log = append(log, sent{d, p}) }
	m.HandleResendTimer(resendSend, transmission.ResendTimer{Nonce: "n1"})
	require.Empty(t, log, "resend must be a no-op once the matching response arrived")
}

func TestIncomingRequestDropsRequestToSelf(t *testing.T) {
	m := transmission.NewManager("timer", testPolicy())
	now := time.Unix(0, 0)
	dst := address.MustParse("peer:1")
	send := func(address.Address, any) {}

	require.NoError(t, m.OutgoingRequest(now, send, dst, request{Nonce: "n1"}))
	deliver, err := m.IncomingRequest(now, send, dst, request{Nonce: "n1"})
	require.NoError(t, err)
	require.False(t, deliver)
}

func TestIncomingRequestDropsDuplicates(t *testing.T) {
	m := transmission.NewManager("timer", testPolicy())
	now := time.Unix(0, 0)
	src := address.MustParse("peer:1")
	send := func(address.Address, any) {}

	d1, err := m.IncomingRequest(now, send, src, request{Nonce: "n1"})
	require.NoError(t, err)
	require.True(t, d1)

	d2, err := m.IncomingRequest(now, send, src, request{Nonce: "n1"})
	require.NoError(t, err)
	require.False(t, d2)
}

func TestIncomingRequestResendsCachedResponseOnDuplicate(t *testing.T) {
	m := transmission.NewManager("timer", testPolicy())
	now := time.Unix(0, 0)
	src := address.MustParse("peer:1")

	var log []sent
	send := func(d address.Address, p any) { log = append(log, sent{d, p}) }

	d1, err := m.IncomingRequest(now, send, src, request{Nonce: "n1"})
	require.NoError(t, err)
	require.True(t, d1)

	require.NoError(t, m.OutgoingResponse(now, send, src, response{Nonce: "n1", Body: "answer"}))
	log = nil

	d2, err := m.IncomingRequest(now, send, src, request{Nonce: "n1"})
	require.NoError(t, err)
	require.False(t, d2, "duplicate request must not be delivered upstream again")
	require.Equal(t, []sent{{src, response{Nonce: "n1", Body: "answer"}}}, log, "the cached response must be re-sent to the duplicate's source")
}

func TestOutgoingResponseRejectsDoubleSend(t *testing.T) {
	m := transmission.NewManager("timer", testPolicy())
	now := time.Unix(0, 0)
	dst := address.MustParse("peer:1")
	send := func(address.Address, any) {}

	require.NoError(t, m.OutgoingResponse(now, send, dst, response{Nonce: "n1"}))
	require.ErrorIs(t, m.OutgoingResponse(now, send, dst, response{Nonce: "n1"}), transmission.ErrResponseAlreadySent)
}

func TestDispatchRoutesTimerRoundTrips(t *testing.T) {
	m := transmission.NewManager("timer", testPolicy())
	now := time.Unix(0, 0)
	dst := address.MustParse("peer:1")

	var log []sent
	send := func(d address.Address, p any) { log = append(log, sent{d, p}) }

	require.NoError(t, m.OutgoingRequest(now, send, dst, request{Nonce: "n1"}))
	log = nil

	deliver, err := m.Dispatch(now, send, dst, transmission.ResendTimer{Nonce: "n1"})
	require.NoError(t, err)
	require.False(t, deliver)
	require.Len(t, log, 1, "resend timer round-trip re-sends the original request")

	deliver, err = m.Dispatch(now, send, dst, transmission.DiscardTimer{Table: transmission.TableOutgoingRequest, Nonce: "n1"})
	require.NoError(t, err)
	require.False(t, deliver)
}

func TestDispatchDeliversUnclassifiedPayload(t *testing.T) {
	m := transmission.NewManager("timer", testPolicy())
	now := time.Unix(0, 0)
	src := address.MustParse("peer:1")
	send := func(address.Address, any) {}

	deliver, err := m.Dispatch(now, send, src, "plain business payload")
	require.NoError(t, err)
	require.True(t, deliver)
}
