package rctransition

import (
	"fmt"

	"github.com/gordian-engine/gcircle/gcrypto"
	"github.com/gordian-engine/gcircle/rc/rcstate"
)

// AddMember enrolls a new member who will be paid in payoutRound.
// Enrollment is only possible in round zero and while the circle has room.
func AddMember(
	s rcstate.CircleState,
	pubKey gcrypto.Secp256k1PubKey,
	payoutRound uint32,
	joinedAt uint64,
) (rcstate.CircleState, error) {
	if err := checkInput(s); err != nil {
		return rcstate.CircleState{}, err
	}

	if s.IsComplete {
		return rcstate.CircleState{}, rcstate.Violate(rcstate.CircleComplete, "is_complete", -1, "")
	}
	if s.CurrentRound != 0 {
		return rcstate.CircleState{}, rcstate.Violate(rcstate.EnrollmentClosed, "current_round", -1,
			fmt.Sprintf("circle is in round %d", s.CurrentRound))
	}
	if s.IsFull() {
		return rcstate.CircleState{}, &rcstate.ViolationError{
			Violation: rcstate.CircleFull, Field: "members", Member: -1,
			Detail: fmt.Sprintf("all %d seats taken", s.MemberCapacity),
		}
	}
	if err := pubKey.Validate(); err != nil {
		return rcstate.CircleState{}, &rcstate.ParamError{Field: "pubkey", Reason: err.Error()}
	}
	if i := s.MemberIndex(pubKey); i >= 0 {
		return rcstate.CircleState{}, rcstate.Violate(rcstate.DuplicateMember, "pubkey", i, "key already enrolled")
	}
	if payoutRound >= s.MemberCapacity {
		return rcstate.CircleState{}, &rcstate.ViolationError{
			Violation: rcstate.PayoutRoundOutOfRange, Field: "payout_round", Member: -1,
			Want: uint64(s.MemberCapacity) - 1, Got: uint64(payoutRound),
		}
	}
	if i := s.PayoutIndexFor(payoutRound); i >= 0 {
		return rcstate.CircleState{}, rcstate.Violate(rcstate.DuplicatePayoutRound, "payout_round", i,
			fmt.Sprintf("round %d already assigned", payoutRound))
	}

	next := s.Clone()
	next.Members = append(next.Members, rcstate.Member{
		PubKey:      pubKey,
		PayoutRound: payoutRound,
		JoinedAt:    joinedAt,
	})

	return finish(s, next)
}
