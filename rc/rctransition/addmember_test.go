package rctransition_test

import (
	"testing"

	"github.com/gordian-engine/gcircle/gcrypto/gcryptotest"
	"github.com/gordian-engine/gcircle/rc/rcchain"
	"github.com/gordian-engine/gcircle/rc/rcstate"
	"github.com/gordian-engine/gcircle/rc/rcstate/rcstatetest"
	"github.com/gordian-engine/gcircle/rc/rctransition"
	"github.com/stretchr/testify/require"
)

// Scenario: a three member circle enrolls its two other members.
func TestAddMember_enrollment(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(3)
	g := fx.Genesis()

	s, err := rctransition.AddMember(g, fx.PubKey(1), 1, fx.CreatedAt+10)
	require.NoError(t, err)
	require.Len(t, s.Members, 2)
	require.Equal(t, rcchain.HashState(g), s.PrevStateHash)
	require.Len(t, g.Members, 1, "input state must not change")

	s, err = rctransition.AddMember(s, fx.PubKey(2), 2, fx.CreatedAt+20)
	require.NoError(t, err)
	require.Len(t, s.Members, 3)
	require.Zero(t, s.CurrentRound)
	require.True(t, s.IsFull())
	require.Equal(t, fx.CreatedAt+20, s.Members[2].JoinedAt)
}

func TestAddMember_outOfOrderPayoutRounds(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(3)
	s, err := rctransition.AddMember(fx.Genesis(), fx.PubKey(1), 2, fx.CreatedAt)
	require.NoError(t, err)
	s, err = rctransition.AddMember(s, fx.PubKey(2), 1, fx.CreatedAt)
	require.NoError(t, err)

	// Round 1 pays member 2, who joined last.
	s = fx.FinishRound(s)
	require.Equal(t, uint32(1), s.CurrentRound)
	require.Equal(t, uint32(2), s.CurrentPayoutIndex)
}

func TestAddMember_rejections(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(3)
	outsider := gcryptotest.DeterministicSecp256k1Signers(4)[3].CompressedPubKey()

	twoOfThree, err := rctransition.AddMember(fx.Genesis(), fx.PubKey(1), 1, fx.CreatedAt)
	require.NoError(t, err)

	for _, tc := range []struct {
		name  string
		state rcstate.CircleState
		op    rcstate.AddMember
		want  error
	}{
		{
			name:  "duplicate key",
			state: twoOfThree,
			op:    rcstate.AddMember{PubKey: fx.PubKey(1), PayoutRound: 2},
			want:  rcstate.DuplicateMember,
		},
		{
			name:  "duplicate payout round",
			state: twoOfThree,
			op:    rcstate.AddMember{PubKey: fx.PubKey(2), PayoutRound: 1},
			want:  rcstate.DuplicatePayoutRound,
		},
		{
			name:  "payout round out of range",
			state: twoOfThree,
			op:    rcstate.AddMember{PubKey: fx.PubKey(2), PayoutRound: 3},
			want:  rcstate.PayoutRoundOutOfRange,
		},
		{
			name:  "full",
			state: fx.Enrolled(),
			op:    rcstate.AddMember{PubKey: outsider, PayoutRound: 2},
			want:  rcstate.CircleFull,
		},
		{
			name:  "after first payout",
			state: fx.FinishRound(fx.Enrolled()),
			op:    rcstate.AddMember{PubKey: outsider, PayoutRound: 2},
			want:  rcstate.EnrollmentClosed,
		},
		{
			name:  "invalid key",
			state: twoOfThree,
			op:    rcstate.AddMember{PayoutRound: 2},
			want:  rcstate.ErrInvalidParameter,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			before := tc.state.Clone()
			s, err := rctransition.Apply(tc.state, tc.op)
			require.ErrorIs(t, err, tc.want)
			require.Zero(t, s)
			require.Equal(t, before, tc.state)
		})
	}
}

func TestAddMember_invalidInput(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(3)
	g := fx.Genesis()
	g.CurrentPool = 5

	_, err := rctransition.AddMember(g, fx.PubKey(1), 1, fx.CreatedAt)
	require.ErrorIs(t, err, rcstate.PoolMismatch)
}
