// Package rcledgertest contains the compliance suite for [rcledger.Ledger] implementations.
package rcledgertest

import (
	"context"
	"crypto/sha256"
	"sync"
	"testing"

	"github.com/gordian-engine/gcircle/rc/rcaccept"
	"github.com/gordian-engine/gcircle/rc/rcchain"
	"github.com/gordian-engine/gcircle/rc/rccodec"
	"github.com/gordian-engine/gcircle/rc/rcledger"
	"github.com/gordian-engine/gcircle/rc/rcstate"
	"github.com/gordian-engine/gcircle/rc/rcstate/rcstatetest"
	"github.com/gordian-engine/gcircle/rc/rctransition"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

// Factory returns a new, empty ledger that accepts transactions satisfying p.
// The factory is responsible for releasing the ledger through t.Cleanup.
type Factory func(t *testing.T, p rcaccept.Predicate) rcledger.Ledger

// TestLedgerCompliance runs the compliance suite against ledgers built by f.
func TestLedgerCompliance(t *testing.T, f Factory) {
	t.Helper()

	t.Run("genesis is fetchable", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		l := f(t, rcaccept.Full{})
		fx := rcstatetest.NewFixture(3)

		b := genesisBundle(t, fx)
		ref, err := l.Submit(ctx, b)
		require.NoError(t, err)
		require.Equal(t, b.TxID(), ref.TxID)

		got, err := l.FetchOutput(ctx, ref)
		require.NoError(t, err)
		require.Equal(t, b.NewState, got)

		latestRef, latest, err := l.LatestOutput(ctx, b.App)
		require.NoError(t, err)
		require.Equal(t, ref, latestRef)
		require.Equal(t, b.NewState, latest)
	})

	t.Run("unknown references", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		l := f(t, rcaccept.Full{})
		fx := rcstatetest.NewFixture(3)

		_, _, err := l.LatestOutput(ctx, rcaccept.AppFor(fx.CircleID))
		require.ErrorIs(t, err, rcledger.ErrNotFound)

		missing := rcledger.OutputRef{TxID: sha256.Sum256([]byte("missing"))}
		_, err = l.FetchOutput(ctx, missing)
		require.ErrorIs(t, err, rcledger.ErrNotFound)

		b := successorBundle(t, fx, missing, fx.Genesis(), fx.AddMemberOp(1))
		_, err = l.Submit(ctx, b)
		require.ErrorIs(t, err, rcledger.ErrNotFound)
	})

	t.Run("whole circle through a client", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		l := f(t, rcaccept.Full{RequireSignature: true})
		fx := rcstatetest.NewFixture(3)
		c := rcledger.NewClient(slogt.New(t), rcledger.DefaultClientConfig(l))

		commit, err := c.Create(ctx, fx.CreateParams(), fx.Signers[0])
		require.NoError(t, err)
		app := commit.App

		for i := 1; i < 3; i++ {
			_, err := c.Advance(ctx, app, fx.AddMemberOp(i), fx.Signers[i])
			require.NoError(t, err)
		}

		payouts := 0
		for {
			s, _, err := c.State(ctx, app)
			require.NoError(t, err)
			if s.IsComplete {
				break
			}
			i := s.Outstanding()[0]
			commit, err := c.Advance(ctx, app, fx.ContributeOp(s, i), fx.Signers[i])
			require.NoError(t, err)
			if commit.Payout != nil {
				require.Equal(t, uint32(payouts), commit.Payout.Round)
				require.Equal(t, 2*fx.ContributionPerRound, commit.Payout.Amount)
				payouts++
			}
		}
		require.Equal(t, 3, payouts)
		require.Equal(t, uint64(1+2+6), c.Stats().Committed)

		if h, ok := l.(rcledger.Historian); ok {
			blobs, err := h.History(ctx, app)
			require.NoError(t, err)
			require.Len(t, blobs, 1+2+6)

			tip, err := rcchain.VerifyHistory(blobs)
			require.NoError(t, err)
			require.True(t, tip.IsComplete)
		}
	})

	t.Run("double spend is stale", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		l := f(t, rcaccept.Full{})
		fx := rcstatetest.NewFixture(3)

		ref := commitAll(t, l, fx)
		s := fx.Enrolled()

		// Two callers observed the same state and computed valid successors.
		first := successorBundle(t, fx, ref, s, fx.ContributeOp(s, 1))
		second := successorBundle(t, fx, ref, s, fx.ContributeOp(s, 2))

		_, err := l.Submit(ctx, first)
		require.NoError(t, err)

		_, err = l.Submit(ctx, second)
		require.ErrorIs(t, err, rcchain.StaleReference)
		require.True(t, rcchain.Retryable(err))

		// Resubmitting the winner is also stale.
		_, err = l.Submit(ctx, first)
		require.ErrorIs(t, err, rcchain.StaleReference)

		_, latest, err := l.LatestOutput(ctx, first.App)
		require.NoError(t, err)
		require.Equal(t, first.NewState, latest)
	})

	t.Run("predicate rejection leaves state alone", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		l := f(t, rcaccept.Full{})
		fx := rcstatetest.NewFixture(3)

		ref := commitAll(t, l, fx)
		s := fx.Enrolled()

		b := successorBundle(t, fx, ref, s, fx.ContributeOp(s, 1))
		w, err := rcaccept.Witness{Op: fx.ContributeOp(s, 2)}.Marshal()
		require.NoError(t, err)
		b.Witness = w

		_, err = l.Submit(ctx, b)
		require.ErrorIs(t, err, rcaccept.ErrRejected)
		require.False(t, rcchain.Retryable(err))

		latestRef, _, err := l.LatestOutput(ctx, b.App)
		require.NoError(t, err)
		require.Equal(t, ref, latestRef)

		// The spent output is still spendable.
		_, err = l.Submit(ctx, successorBundle(t, fx, ref, s, fx.ContributeOp(s, 1)))
		require.NoError(t, err)
	})

	t.Run("duplicate genesis is stale", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		l := f(t, rcaccept.Full{})
		fx := rcstatetest.NewFixture(3)

		_, err := l.Submit(ctx, genesisBundle(t, fx))
		require.NoError(t, err)

		fx.CreatedAt++
		_, err = l.Submit(ctx, genesisBundle(t, fx))
		require.ErrorIs(t, err, rcchain.StaleReference)
	})

	t.Run("spending another circle", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		l := f(t, rcaccept.Full{})
		fx := rcstatetest.NewFixture(3)

		ref, err := l.Submit(ctx, genesisBundle(t, fx))
		require.NoError(t, err)

		other := rcstatetest.NewFixture(3)
		other.CircleID = sha256.Sum256([]byte("other circle"))
		_, err = l.Submit(ctx, genesisBundle(t, other))
		require.NoError(t, err)

		b := successorBundle(t, other, ref, other.Genesis(), other.AddMemberOp(1))
		_, err = l.Submit(ctx, b)
		require.ErrorIs(t, err, rcchain.CircleMismatch)
	})

	t.Run("concurrent successors", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		l := f(t, rcaccept.Full{})
		fx := rcstatetest.NewFixture(6)

		ref := commitAll(t, l, fx)
		s := fx.Enrolled()

		errs := make([]error, 5)
		var wg sync.WaitGroup
		for i := range errs {
			b := successorBundle(t, fx, ref, s, fx.ContributeOp(s, i+1))
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = l.Submit(ctx, b)
			}()
		}
		wg.Wait()

		committed := 0
		for _, err := range errs {
			if err == nil {
				committed++
				continue
			}
			require.ErrorIs(t, err, rcchain.StaleReference)
		}
		require.Equal(t, 1, committed)
	})

	t.Run("client retries a stale advance", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		l := f(t, rcaccept.Full{})
		fx := rcstatetest.NewFixture(4)
		commitAll(t, l, fx)

		app := rcaccept.AppFor(fx.CircleID)
		s := fx.Enrolled()

		// Several clients contribute concurrently from the same starting point.
		// Each either commits, possibly after retries, or runs out of retries.
		errs := make([]error, 3)
		var wg sync.WaitGroup
		for i := range errs {
			c := rcledger.NewClient(slogt.New(t), rcledger.ClientConfig{Ledger: l, MaxRetries: 10})
			op := fx.ContributeOp(s, i+1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = c.Advance(ctx, app, op, nil)
			}()
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}

		c := rcledger.NewClient(slogt.New(t), rcledger.DefaultClientConfig(l))
		got, _, err := c.State(ctx, app)
		require.NoError(t, err)
		require.Equal(t, uint32(1), got.CurrentRound)
	})
}

func genesisBundle(t *testing.T, fx *rcstatetest.Fixture) rcledger.Bundle {
	t.Helper()

	g, err := rctransition.CreateCircle(fx.CreateParams())
	require.NoError(t, err)

	w, err := rcaccept.Witness{}.Marshal()
	require.NoError(t, err)

	return rcledger.Bundle{
		App:      rcaccept.AppFor(g.CircleID),
		NewState: rccodec.MarshalState(g),
		Witness:  w,
	}
}

func successorBundle(
	t *testing.T, fx *rcstatetest.Fixture, spend rcledger.OutputRef, prev rcstate.CircleState, op rcstate.Operation,
) rcledger.Bundle {
	t.Helper()

	next, err := rctransition.Apply(prev, op)
	require.NoError(t, err)

	w, err := rcaccept.Witness{Op: op}.Marshal()
	require.NoError(t, err)

	return rcledger.Bundle{
		App:       rcaccept.AppFor(prev.CircleID),
		Spend:     &spend,
		PrevState: rccodec.MarshalState(prev),
		NewState:  rccodec.MarshalState(next),
		Witness:   w,
	}
}

// commitAll commits the fixture's genesis and enrollment,
// returning the output holding the fully enrolled state.
func commitAll(t *testing.T, l rcledger.Ledger, fx *rcstatetest.Fixture) rcledger.OutputRef {
	t.Helper()

	ctx := context.Background()
	ref, err := l.Submit(ctx, genesisBundle(t, fx))
	require.NoError(t, err)

	s := fx.Genesis()
	for i := 1; i < fx.Capacity(); i++ {
		op := fx.AddMemberOp(i)
		b := successorBundle(t, fx, ref, s, op)
		ref, err = l.Submit(ctx, b)
		require.NoError(t, err)

		s, err = rctransition.Apply(s, op)
		require.NoError(t, err)
	}
	return ref
}
