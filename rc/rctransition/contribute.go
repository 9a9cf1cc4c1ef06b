package rctransition

import (
	"fmt"

	"github.com/gordian-engine/gcircle/gcrypto"
	"github.com/gordian-engine/gcircle/rc/rcstate"
)

// RecordContribution records a member's payment for the current round.
//
// Once every enrolled member other than the round's payee has contributed,
// the round pays out within the same transition:
// the payee is marked paid, the pool resets, the round advances
// and starts at timestamp.
// The payee may contribute to its own round but is not required to.
//
// A payout in round zero closes enrollment, even with seats still open.
// Such a circle then runs only the rounds its members were assigned,
// and completes once every enrolled member has been paid.
func RecordContribution(
	s rcstate.CircleState,
	pubKey gcrypto.Secp256k1PubKey,
	amount uint64,
	timestamp uint64,
	txRef [rcstate.HashSize]byte,
) (rcstate.CircleState, error) {
	if err := checkInput(s); err != nil {
		return rcstate.CircleState{}, err
	}

	if s.IsComplete {
		return rcstate.CircleState{}, rcstate.Violate(rcstate.CircleComplete, "is_complete", -1, "")
	}

	idx := s.MemberIndex(pubKey)
	if idx < 0 {
		return rcstate.CircleState{}, rcstate.Violate(rcstate.UnknownMember, "pubkey", -1, pubKey.String())
	}
	if s.Members[idx].ContributedIn(s.CurrentRound) {
		return rcstate.CircleState{}, rcstate.Violate(rcstate.DuplicateContribution, "round", idx,
			fmt.Sprintf("already contributed in round %d", s.CurrentRound))
	}
	if owner := txRefOwner(s, txRef); owner >= 0 {
		return rcstate.CircleState{}, rcstate.Violate(rcstate.DuplicateContribution, "tx_ref", idx,
			fmt.Sprintf("reference already recorded for member %d", owner))
	}
	if amount != s.ContributionPerRound {
		return rcstate.CircleState{}, &rcstate.ViolationError{
			Violation: rcstate.WrongAmount, Field: "amount", Member: idx,
			Want: s.ContributionPerRound, Got: amount,
		}
	}

	next := s.Clone()
	m := &next.Members[idx]
	m.Contributions = append(m.Contributions, rcstate.Contribution{
		Round:     next.CurrentRound,
		Amount:    amount,
		Timestamp: timestamp,
		TxRef:     txRef,
	})
	next.CurrentPool += amount

	if roundFunded(next) {
		payOut(&next, timestamp)
	}

	return finish(s, next)
}

// roundFunded reports whether every member except the current payee
// has contributed this round.
func roundFunded(s rcstate.CircleState) bool {
	funded := s.Contributed()
	funded.Set(uint(s.CurrentPayoutIndex))
	return funded.All()
}

// payOut pays the current payee and opens the round of the next unpaid member.
// Rounds that no enrolled member was assigned are skipped.
// With nobody left to pay, the round moves one past the last payout
// and the circle is complete.
func payOut(s *rcstate.CircleState, timestamp uint64) {
	s.Members[s.CurrentPayoutIndex].HasReceivedPayout = true
	s.CurrentPool = 0
	s.RoundStartedAt = timestamp

	next := -1
	for i, m := range s.Members {
		if m.HasReceivedPayout {
			continue
		}
		if next < 0 || m.PayoutRound < s.Members[next].PayoutRound {
			next = i
		}
	}
	if next < 0 {
		s.CurrentRound++
		s.IsComplete = true
		return
	}

	s.CurrentRound = s.Members[next].PayoutRound
	s.CurrentPayoutIndex = uint32(next)
}

func txRefOwner(s rcstate.CircleState, ref [rcstate.HashSize]byte) int {
	for i, m := range s.Members {
		for _, c := range m.Contributions {
			if c.TxRef == ref {
				return i
			}
		}
	}
	return -1
}
