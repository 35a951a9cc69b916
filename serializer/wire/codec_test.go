package wire_test

import (
	"testing"

	"github.com/joeycumines/peernetic/serializer/wire"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTripsSupportedKinds(t *testing.T) {
	c := wire.Codec{}
	cases := []any{
		nil,
		[]byte("hello"),
		"a string",
		true,
		false,
		int64(-12345),
		3.5,
	}
	for _, payload := range cases {
		data, err := c.Marshal(payload)
		require.NoError(t, err)
		got, err := c.Unmarshal(data)
		require.NoError(t, err)
		require.Equal(t, payload, got)
	}
}

func TestCodecMarshalRejectsUnsupportedType(t *testing.T) {
	c := wire.Codec{}
	_, err := c.Marshal(struct{ X int }{X: 1})
	require.ErrorIs(t, err, wire.ErrUnsupportedPayload)
}

func TestCodecUnmarshalRejectsMalformed(t *testing.T) {
	c := wire.Codec{}
	_, err := c.Unmarshal([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	require.Error(t, err)
}
