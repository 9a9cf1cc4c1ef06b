package rcstate

import (
	"fmt"
	"math/bits"

	"github.com/gordian-engine/gcircle/gcrypto"
)

// Validate checks every invariant of a committed circle state.
// It returns nil or a *ViolationError naming the first broken invariant.
//
// Validate checks the state in isolation.
// Continuity between two states is the concern of rcchain.
func Validate(s CircleState) error {
	if s.MemberCapacity < MinMemberCapacity {
		return &ViolationError{
			Violation: BadParameters, Field: "member_capacity", Member: -1,
			Want: MinMemberCapacity, Got: uint64(s.MemberCapacity),
			Detail: "capacity below minimum",
		}
	}
	if s.ContributionPerRound == 0 {
		return Violate(BadParameters, "contribution_per_round", -1, "must be positive")
	}
	if s.RoundDuration == 0 {
		return Violate(BadParameters, "round_duration", -1, "must be positive")
	}
	if hi, _ := bits.Mul64(s.ContributionPerRound, uint64(s.MemberCapacity)); hi != 0 {
		return Violate(BadParameters, "contribution_per_round", -1, "full pool overflows 64 bits")
	}
	if s.RoundStartedAt < s.CreatedAt {
		return Violate(TimestampOrder, "round_started_at", -1, "round started before the circle was created")
	}

	if len(s.Members) == 0 {
		return Violate(NoMembers, "members", -1, "")
	}
	if uint64(len(s.Members)) > uint64(s.MemberCapacity) {
		return &ViolationError{
			Violation: CircleFull, Field: "members", Member: -1,
			Want: uint64(s.MemberCapacity), Got: uint64(len(s.Members)),
		}
	}
	if s.CurrentRound > s.MemberCapacity {
		return &ViolationError{
			Violation: RoundOutOfRange, Field: "current_round", Member: -1,
			Want: uint64(s.MemberCapacity), Got: uint64(s.CurrentRound),
		}
	}
	keys := make(map[gcrypto.Secp256k1PubKey]int, len(s.Members))
	txRefs := make(map[[HashSize]byte]int)
	payoutRounds := make(map[uint32]int, len(s.Members))
	var pool uint64
	paid := 0
	var lastPayoutRound uint32

	for i, m := range s.Members {
		if !m.PubKey.HasCompressedPrefix() {
			return Violate(BadParameters, "pubkey", i, "not a compressed public key")
		}
		if j, ok := keys[m.PubKey]; ok {
			return Violate(DuplicateMember, "pubkey", i, fmt.Sprintf("same key as member %d", j))
		}
		keys[m.PubKey] = i

		if m.PayoutRound >= s.MemberCapacity {
			return &ViolationError{
				Violation: PayoutRoundOutOfRange, Field: "payout_round", Member: i,
				Want: uint64(s.MemberCapacity) - 1, Got: uint64(m.PayoutRound),
			}
		}
		if j, ok := payoutRounds[m.PayoutRound]; ok {
			return Violate(DuplicatePayoutRound, "payout_round", i,
				fmt.Sprintf("round %d already assigned to member %d", m.PayoutRound, j))
		}
		payoutRounds[m.PayoutRound] = i
		lastPayoutRound = max(lastPayoutRound, m.PayoutRound)

		// Payouts happen strictly in round order,
		// so a member has been paid exactly when its round is behind us.
		if m.HasReceivedPayout != (m.PayoutRound < s.CurrentRound) {
			return Violate(PayoutStatusMismatch, "has_received_payout", i,
				fmt.Sprintf("payout round %d, current round %d", m.PayoutRound, s.CurrentRound))
		}
		if m.HasReceivedPayout {
			paid++
		}

		for j, c := range m.Contributions {
			if j > 0 {
				prev := m.Contributions[j-1].Round
				if c.Round == prev {
					return Violate(DuplicateContribution, "contributions.round", i, fmt.Sprintf("round %d recorded twice", c.Round))
				}
				if c.Round < prev {
					return Violate(ContributionOutOfOrder, "contributions.round", i, fmt.Sprintf("round %d after round %d", c.Round, prev))
				}
			}
			if c.Round > s.CurrentRound || c.Round >= s.MemberCapacity {
				return Violate(ContributionOutOfOrder, "contributions.round", i, fmt.Sprintf("round %d has not started", c.Round))
			}
			if c.Amount != s.ContributionPerRound {
				return &ViolationError{
					Violation: WrongAmount, Field: "contributions.amount", Member: i,
					Want: s.ContributionPerRound, Got: c.Amount,
				}
			}
			if k, ok := txRefs[c.TxRef]; ok {
				return Violate(DuplicateContribution, "contributions.tx_ref", i, fmt.Sprintf("reference already used by member %d", k))
			}
			txRefs[c.TxRef] = i

			if c.Round == s.CurrentRound {
				// Cannot overflow: at most MemberCapacity entries of ContributionPerRound,
				// and that product was checked above.
				pool += c.Amount
			}
		}
	}

	if pool != s.CurrentPool {
		return &ViolationError{
			Violation: PoolMismatch, Field: "current_pool", Member: -1,
			Want: pool, Got: s.CurrentPool,
		}
	}

	if s.IsComplete != (paid == len(s.Members)) {
		return Violate(CompletionMismatch, "is_complete", -1,
			fmt.Sprintf("is_complete=%t with %d of %d members paid", s.IsComplete, paid, len(s.Members)))
	}
	// A circle closed under capacity stops one round after its last payee.
	if s.IsComplete && s.CurrentRound != lastPayoutRound+1 {
		return &ViolationError{
			Violation: RoundOutOfRange, Field: "current_round", Member: -1,
			Want: uint64(lastPayoutRound) + 1, Got: uint64(s.CurrentRound),
		}
	}

	if int(s.CurrentPayoutIndex) >= len(s.Members) {
		return &ViolationError{
			Violation: PayoutIndexMismatch, Field: "current_payout_index", Member: -1,
			Want: uint64(len(s.Members)) - 1, Got: uint64(s.CurrentPayoutIndex),
		}
	}
	if !s.IsComplete {
		if r := s.Members[s.CurrentPayoutIndex].PayoutRound; r != s.CurrentRound {
			return Violate(PayoutIndexMismatch, "current_payout_index", int(s.CurrentPayoutIndex),
				fmt.Sprintf("member is paid in round %d, not current round %d", r, s.CurrentRound))
		}
	}

	return nil
}
