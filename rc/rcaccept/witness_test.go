package rcaccept_test

import (
	"context"
	"strings"
	"testing"

	"github.com/gordian-engine/gcircle/rc/rcaccept"
	"github.com/gordian-engine/gcircle/rc/rccodec"
	"github.com/gordian-engine/gcircle/rc/rcstate"
	"github.com/gordian-engine/gcircle/rc/rcstate/rcstatetest"
	"github.com/stretchr/testify/require"
)

func TestWitness_roundTrip(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(3)
	s := fx.Enrolled()
	newState := rccodec.MarshalState(fx.Contribute(s, 1))

	signed, err := rcaccept.SignWitness(context.Background(), fx.Signers[1], fx.ContributeOp(s, 1), newState)
	require.NoError(t, err)
	require.True(t, signed.Verify(fx.PubKey(1), newState))
	require.False(t, signed.Verify(fx.PubKey(2), newState))
	require.False(t, signed.Verify(fx.PubKey(1), append(newState, 0)))

	for _, w := range []rcaccept.Witness{
		{},
		{Op: fx.AddMemberOp(2)},
		signed,
	} {
		b, err := w.Marshal()
		require.NoError(t, err)

		got, err := rcaccept.UnmarshalWitness(b)
		require.NoError(t, err)
		require.Equal(t, w.Op, got.Op)
		require.Equal(t, len(w.Signature), len(got.Signature))
	}

	// No signature, no verification.
	require.False(t, rcaccept.Witness{Op: fx.ContributeOp(s, 1)}.Verify(fx.PubKey(1), newState))
}

func TestWitness_malformed(t *testing.T) {
	t.Parallel()

	_, err := rcaccept.Witness{Signature: []byte{1, 2, 3}}.Marshal()
	require.ErrorIs(t, err, rcstate.ErrInvalidParameter)

	for _, b := range [][]byte{
		{1, 0},
		{9, 0, 0, 0, 1},
		{0, 0, 0, 0, 1, 2, 3},
	} {
		_, err := rcaccept.UnmarshalWitness(b)
		require.ErrorIs(t, err, rccodec.ErrDecode)
	}
}

func TestApp_String(t *testing.T) {
	t.Parallel()

	app := rcaccept.AppFor([32]byte{0xab})
	require.Equal(t, "rosca:ab"+strings.Repeat("00", 31), app.String())
}
