package rccodec_test

import (
	"testing"

	"github.com/gordian-engine/gcircle/gcrypto"
	"github.com/gordian-engine/gcircle/rc/rccodec"
	"github.com/gordian-engine/gcircle/rc/rcstate"
	"github.com/gordian-engine/gcircle/rc/rcstate/rcstatetest"
	"github.com/stretchr/testify/require"
)

type unknownOp struct{}

func (unknownOp) Kind() rcstate.OpKind           { return 9 }
func (unknownOp) Actor() gcrypto.Secp256k1PubKey { return gcrypto.Secp256k1PubKey{} }

func TestOperation_roundTrip(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(3)
	for _, op := range []rcstate.Operation{
		fx.AddMemberOp(2),
		fx.ContributeOp(fx.Enrolled(), 1),
	} {
		b, err := rccodec.MarshalOperation(op)
		require.NoError(t, err)
		require.Equal(t, byte(op.Kind()), b[0])

		got, err := rccodec.UnmarshalOperation(b)
		require.NoError(t, err)
		require.Equal(t, op, got)
	}
}

func TestMarshalOperation_unknownType(t *testing.T) {
	t.Parallel()

	_, err := rccodec.MarshalOperation(unknownOp{})
	require.ErrorIs(t, err, rcstate.ErrInvalidParameter)
}

func TestUnmarshalOperation_rejects(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(2)
	good, err := rccodec.MarshalOperation(fx.AddMemberOp(1))
	require.NoError(t, err)

	_, err = rccodec.UnmarshalOperation(nil)
	require.ErrorIs(t, err, rccodec.ErrDecode)

	_, err = rccodec.UnmarshalOperation(good[:len(good)-1])
	require.ErrorIs(t, err, rccodec.ErrDecode)

	_, err = rccodec.UnmarshalOperation(append(good, 0))
	require.ErrorIs(t, err, rccodec.ErrDecode)

	bad := append([]byte(nil), good...)
	bad[0] = 7
	_, err = rccodec.UnmarshalOperation(bad)
	require.ErrorIs(t, err, rccodec.ErrDecode)
}
