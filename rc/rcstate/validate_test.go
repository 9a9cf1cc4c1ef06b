package rcstate_test

import (
	"errors"
	"math"
	"runtime"
	"testing"

	"github.com/gordian-engine/gcircle/rc/rcstate"
	"github.com/gordian-engine/gcircle/rc/rcstate/rcstatetest"
	"github.com/stretchr/testify/require"
)

func TestValidate_fixtureHistory(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(4)
	for i, s := range fx.History(4) {
		require.NoErrorf(t, rcstate.Validate(s), "state %d", i)
	}
}

func TestValidate_violations(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(3)

	for _, tc := range []struct {
		name   string
		mutate func(s *rcstate.CircleState)
		want   rcstate.Violation
	}{
		{
			name:   "capacity below minimum",
			mutate: func(s *rcstate.CircleState) { s.MemberCapacity = 1 },
			want:   rcstate.BadParameters,
		},
		{
			name:   "zero contribution",
			mutate: func(s *rcstate.CircleState) { s.ContributionPerRound = 0 },
			want:   rcstate.BadParameters,
		},
		{
			name:   "zero duration",
			mutate: func(s *rcstate.CircleState) { s.RoundDuration = 0 },
			want:   rcstate.BadParameters,
		},
		{
			name:   "pool overflow",
			mutate: func(s *rcstate.CircleState) { s.ContributionPerRound = 1 << 63 },
			want:   rcstate.BadParameters,
		},
		{
			name:   "round started before creation",
			mutate: func(s *rcstate.CircleState) { s.RoundStartedAt = s.CreatedAt - 1 },
			want:   rcstate.TimestampOrder,
		},
		{
			name:   "no members",
			mutate: func(s *rcstate.CircleState) { s.Members = nil },
			want:   rcstate.NoMembers,
		},
		{
			name:   "over capacity",
			mutate: func(s *rcstate.CircleState) { s.MemberCapacity = 2 },
			want:   rcstate.CircleFull,
		},
		{
			name: "duplicate key",
			mutate: func(s *rcstate.CircleState) {
				s.Members[2].PubKey = s.Members[1].PubKey
			},
			want: rcstate.DuplicateMember,
		},
		{
			name: "duplicate payout round",
			mutate: func(s *rcstate.CircleState) {
				s.Members[2].PayoutRound = 1
			},
			want: rcstate.DuplicatePayoutRound,
		},
		{
			name: "payout round out of range",
			mutate: func(s *rcstate.CircleState) {
				s.Members[2].PayoutRound = 3
			},
			want: rcstate.PayoutRoundOutOfRange,
		},
		{
			name: "bad key prefix",
			mutate: func(s *rcstate.CircleState) {
				s.Members[1].PubKey[0] = 0x04
			},
			want: rcstate.BadParameters,
		},
		{
			name: "premature payout flag",
			mutate: func(s *rcstate.CircleState) {
				s.Members[0].HasReceivedPayout = true
			},
			want: rcstate.PayoutStatusMismatch,
		},
		{
			name:   "pool mismatch",
			mutate: func(s *rcstate.CircleState) { s.CurrentPool = 1 },
			want:   rcstate.PoolMismatch,
		},
		{
			name: "contribution from the future",
			mutate: func(s *rcstate.CircleState) {
				s.Members[1].Contributions = []rcstate.Contribution{
					{Round: 1, Amount: s.ContributionPerRound, TxRef: fx.TxRef(1, 1)},
				}
			},
			want: rcstate.ContributionOutOfOrder,
		},
		{
			name: "wrong recorded amount",
			mutate: func(s *rcstate.CircleState) {
				s.Members[1].Contributions = []rcstate.Contribution{
					{Round: 0, Amount: s.ContributionPerRound - 1, TxRef: fx.TxRef(1, 0)},
				}
				s.CurrentPool = s.ContributionPerRound - 1
			},
			want: rcstate.WrongAmount,
		},
		{
			name: "reused tx ref",
			mutate: func(s *rcstate.CircleState) {
				ref := fx.TxRef(1, 0)
				s.Members[1].Contributions = []rcstate.Contribution{
					{Round: 0, Amount: s.ContributionPerRound, TxRef: ref},
				}
				s.Members[2].Contributions = []rcstate.Contribution{
					{Round: 0, Amount: s.ContributionPerRound, TxRef: ref},
				}
				s.CurrentPool = 2 * s.ContributionPerRound
			},
			want: rcstate.DuplicateContribution,
		},
		{
			name:   "premature completion",
			mutate: func(s *rcstate.CircleState) { s.IsComplete = true },
			want:   rcstate.CompletionMismatch,
		},
		{
			name:   "payout index out of range",
			mutate: func(s *rcstate.CircleState) { s.CurrentPayoutIndex = 3 },
			want:   rcstate.PayoutIndexMismatch,
		},
		{
			name:   "payout index names wrong member",
			mutate: func(s *rcstate.CircleState) { s.CurrentPayoutIndex = 1 },
			want:   rcstate.PayoutIndexMismatch,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := fx.Enrolled()
			tc.mutate(&s)

			err := rcstate.Validate(s)
			require.Error(t, err)
			require.ErrorIs(t, err, tc.want)
			require.ErrorIs(t, err, rcstate.ErrInvariantViolation)

			var ve *rcstate.ViolationError
			require.True(t, errors.As(err, &ve))
			require.Equal(t, tc.want, ve.Violation)
		})
	}
}

func TestValidate_underEnrolledCompletion(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(3)
	s := fx.Genesis()
	s.CurrentRound = 1
	s.Members[0].HasReceivedPayout = true

	// Every enrolled member is paid, so the circle must say so.
	require.ErrorIs(t, rcstate.Validate(s), rcstate.CompletionMismatch)

	s.IsComplete = true
	require.NoError(t, rcstate.Validate(s))

	// Completion stops the round one past the last payee.
	s.CurrentRound = 2
	require.ErrorIs(t, rcstate.Validate(s), rcstate.RoundOutOfRange)
}

// Not parallel: TotalAlloc is process-wide.
func TestValidate_maximumCapacity(t *testing.T) {
	fx := rcstatetest.NewFixture(2)
	s := fx.Enrolled()
	s.MemberCapacity = math.MaxUint32
	s.ContributionPerRound = 1
	s.Members[1].PayoutRound = math.MaxUint32 - 1

	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	require.NoError(t, rcstate.Validate(s))

	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	// Work is bounded by the enrolled members, not the seats.
	require.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
}

func TestValidate_contributionsOutOfOrder(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(3)
	s := fx.FinishRound(fx.Enrolled())
	s = fx.Contribute(s, 2)

	c := s.Members[2].Contributions
	c[0], c[1] = c[1], c[0]

	require.ErrorIs(t, rcstate.Validate(s), rcstate.ContributionOutOfOrder)
}

func TestViolationError_Error(t *testing.T) {
	t.Parallel()

	err := &rcstate.ViolationError{
		Violation: rcstate.WrongAmount,
		Field:     "amount",
		Member:    2,
		Want:      100_000,
		Got:       99_999,
	}
	require.Equal(t, "wrong amount (amount, member 2): want 100000, got 99999", err.Error())

	err = rcstate.Violate(rcstate.CircleComplete, "", -1, "")
	require.Equal(t, "circle complete", err.Error())

	require.Equal(t, "Violation(200)", rcstate.Violation(200).String())
}

func TestParamError(t *testing.T) {
	t.Parallel()

	err := error(&rcstate.ParamError{Field: "member_capacity", Reason: "too small"})
	require.ErrorIs(t, err, rcstate.ErrInvalidParameter)
	require.NotErrorIs(t, err, rcstate.ErrInvariantViolation)
	require.Equal(t, "invalid parameter member_capacity: too small", err.Error())
}
