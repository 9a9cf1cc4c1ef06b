package rcaccept_test

import (
	"context"
	"testing"

	"github.com/gordian-engine/gcircle/rc/rcaccept"
	"github.com/gordian-engine/gcircle/rc/rcchain"
	"github.com/gordian-engine/gcircle/rc/rccodec"
	"github.com/gordian-engine/gcircle/rc/rcstate"
	"github.com/gordian-engine/gcircle/rc/rcstate/rcstatetest"
	"github.com/gordian-engine/gcircle/rc/rctransition"
	"github.com/stretchr/testify/require"
)

func output(app rcaccept.App, payload []byte) rcaccept.Output {
	return rcaccept.Output{Payloads: map[rcaccept.App][]byte{app: payload}}
}

// transition returns the transaction moving prev forward by op,
// and a witness signed by the fixture signer at index signer.
func transition(
	t *testing.T, fx *rcstatetest.Fixture, prev rcstate.CircleState, op rcstate.Operation, signer int,
) (rcaccept.Tx, []byte) {
	t.Helper()

	next, err := rctransition.Apply(prev, op)
	require.NoError(t, err)

	app := rcaccept.AppFor(prev.CircleID)
	newBytes := rccodec.MarshalState(next)

	w, err := rcaccept.SignWitness(context.Background(), fx.Signers[signer], op, newBytes)
	require.NoError(t, err)
	wb, err := w.Marshal()
	require.NoError(t, err)

	return rcaccept.Tx{
		Ins:  []rcaccept.Output{output(app, rccodec.MarshalState(prev))},
		Outs: []rcaccept.Output{output(app, newBytes)},
	}, wb
}

func genesisTx(t *testing.T, fx *rcstatetest.Fixture, signed bool) (rcaccept.App, rcaccept.Tx, []byte) {
	t.Helper()

	g := fx.Genesis()
	app := rcaccept.AppFor(g.CircleID)
	b := rccodec.MarshalState(g)

	var wb []byte
	if signed {
		w, err := rcaccept.SignWitness(context.Background(), fx.Signers[0], nil, b)
		require.NoError(t, err)
		wb, err = w.Marshal()
		require.NoError(t, err)
	}
	return app, rcaccept.Tx{Outs: []rcaccept.Output{output(app, b)}}, wb
}

func requireRejected(t *testing.T, err error, rule string) *rcaccept.RejectionError {
	t.Helper()

	require.ErrorIs(t, err, rcaccept.ErrRejected)
	var re *rcaccept.RejectionError
	require.ErrorAs(t, err, &re)
	require.Equal(t, rule, re.Rule)
	return re
}

func TestMinimal(t *testing.T) {
	t.Parallel()

	app := rcaccept.AppFor([32]byte{1})
	other := rcaccept.AppFor([32]byte{2})

	var p rcaccept.Minimal
	require.NoError(t, p.Accept(app, rcaccept.Tx{Outs: []rcaccept.Output{output(app, []byte{0})}}, nil))

	// Minimal does not look inside the payload at all.
	require.NoError(t, p.Accept(app, rcaccept.Tx{
		Outs: []rcaccept.Output{{}, output(app, []byte("garbage"))},
	}, nil))

	requireRejected(t, p.Accept(app, rcaccept.Tx{}, nil), "payload")
	requireRejected(t, p.Accept(app, rcaccept.Tx{Outs: []rcaccept.Output{output(app, nil)}}, nil), "payload")
	requireRejected(t, p.Accept(app, rcaccept.Tx{Outs: []rcaccept.Output{output(other, []byte{1})}}, nil), "payload")
}

func TestFull_acceptsWholeCircle(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(3)
	p := rcaccept.Full{RequireSignature: true}

	app, tx, w := genesisTx(t, fx, true)
	require.NoError(t, p.Accept(app, tx, w))

	s := fx.Genesis()
	for i := 1; i < 3; i++ {
		op := fx.AddMemberOp(i)
		tx, w := transition(t, fx, s, op, i)
		require.NoError(t, p.Accept(app, tx, w))

		var err error
		s, err = rctransition.Apply(s, op)
		require.NoError(t, err)
	}

	for !s.IsComplete {
		i := s.Outstanding()[0]
		op := fx.ContributeOp(s, i)
		tx, w := transition(t, fx, s, op, i)
		require.NoError(t, p.Accept(app, tx, w))
		s = fx.Contribute(s, i)
	}
}

func TestFull_genesis(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(3)

	app, tx, _ := genesisTx(t, fx, false)
	require.NoError(t, rcaccept.Full{}.Accept(app, tx, nil))
	requireRejected(t, rcaccept.Full{RequireSignature: true}.Accept(app, tx, nil), "signature")

	// A later state presented without a predecessor is not a genesis.
	later := rccodec.MarshalState(fx.Enrolled())
	tx = rcaccept.Tx{Outs: []rcaccept.Output{output(app, later)}}
	re := requireRejected(t, rcaccept.Full{}.Accept(app, tx, nil), "genesis")
	require.ErrorIs(t, re, rcchain.NotGenesis)
}

func TestFull_rejections(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(3)
	enrolled := fx.Enrolled()
	app := rcaccept.AppFor(enrolled.CircleID)
	p := rcaccept.Full{}

	t.Run("undecodable", func(t *testing.T) {
		t.Parallel()

		tx := rcaccept.Tx{Outs: []rcaccept.Output{output(app, []byte{1, 2, 3})}}
		re := requireRejected(t, p.Accept(app, tx, nil), "decode")
		require.ErrorIs(t, re, rccodec.ErrDecode)
	})

	t.Run("wrong circle", func(t *testing.T) {
		t.Parallel()

		_, tx, _ := genesisTx(t, fx, false)
		requireRejected(t, p.Accept(rcaccept.AppFor([32]byte{9}), rcaccept.Tx{
			Outs: []rcaccept.Output{output(rcaccept.AppFor([32]byte{9}), tx.Outs[0].Payload(app))},
		}, nil), "identity")
	})

	t.Run("invalid state", func(t *testing.T) {
		t.Parallel()

		bad := enrolled.Clone()
		bad.CurrentPool = 1
		tx := rcaccept.Tx{Outs: []rcaccept.Output{output(app, rccodec.MarshalState(bad))}}
		re := requireRejected(t, p.Accept(app, tx, nil), "invariants")
		require.ErrorIs(t, re, rcstate.PoolMismatch)
	})

	t.Run("two outputs", func(t *testing.T) {
		t.Parallel()

		b := rccodec.MarshalState(enrolled)
		tx := rcaccept.Tx{Outs: []rcaccept.Output{output(app, b), output(app, b)}}
		requireRejected(t, p.Accept(app, tx, nil), "single_output")
	})

	t.Run("forged predecessor", func(t *testing.T) {
		t.Parallel()

		tx, w := transition(t, fx, enrolled, fx.ContributeOp(enrolled, 1), 1)
		tx.Ins[0] = output(app, rccodec.MarshalState(fx.Genesis()))
		re := requireRejected(t, p.Accept(app, tx, w), "link")
		require.ErrorIs(t, re, rcchain.BrokenLink)
	})

	t.Run("missing operation", func(t *testing.T) {
		t.Parallel()

		tx, _ := transition(t, fx, enrolled, fx.ContributeOp(enrolled, 1), 1)
		requireRejected(t, p.Accept(app, tx, nil), "witness")
	})

	t.Run("operation does not match", func(t *testing.T) {
		t.Parallel()

		tx, _ := transition(t, fx, enrolled, fx.ContributeOp(enrolled, 1), 1)
		w, err := rcaccept.Witness{Op: fx.ContributeOp(enrolled, 2)}.Marshal()
		require.NoError(t, err)
		requireRejected(t, p.Accept(app, tx, w), "replay")
	})

	t.Run("operation rejected by engine", func(t *testing.T) {
		t.Parallel()

		tx, _ := transition(t, fx, enrolled, fx.ContributeOp(enrolled, 1), 1)
		op := fx.ContributeOp(enrolled, 1)
		op.Amount--
		w, err := rcaccept.Witness{Op: op}.Marshal()
		require.NoError(t, err)
		re := requireRejected(t, p.Accept(app, tx, w), "replay")
		require.ErrorIs(t, re, rcstate.WrongAmount)
	})

	t.Run("signed by someone else", func(t *testing.T) {
		t.Parallel()

		tx, w := transition(t, fx, enrolled, fx.ContributeOp(enrolled, 1), 2)
		requireRejected(t, p.Accept(app, tx, w), "signature")
	})

	t.Run("unsigned when required", func(t *testing.T) {
		t.Parallel()

		op := fx.ContributeOp(enrolled, 1)
		tx, _ := transition(t, fx, enrolled, op, 1)
		w, err := rcaccept.Witness{Op: op}.Marshal()
		require.NoError(t, err)

		require.NoError(t, p.Accept(app, tx, w))
		requireRejected(t, rcaccept.Full{RequireSignature: true}.Accept(app, tx, w), "signature")
	})

	t.Run("two inputs", func(t *testing.T) {
		t.Parallel()

		tx, w := transition(t, fx, enrolled, fx.ContributeOp(enrolled, 1), 1)
		tx.Ins = append(tx.Ins, tx.Ins[0])
		requireRejected(t, p.Accept(app, tx, w), "single_input")
	})
}
