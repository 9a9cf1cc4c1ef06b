package rctransition

import (
	"github.com/gordian-engine/gcircle/gcrypto"
	"github.com/gordian-engine/gcircle/rc/rcstate"
)

// Payout describes the disbursement that happened between two successive states.
type Payout struct {
	Round       uint32
	MemberIndex int
	Recipient   gcrypto.Secp256k1PubKey
	Amount      uint64
	Timestamp   uint64
}

// PayoutOf returns the payout made by the transition from prev to next,
// or false if that transition did not complete a round.
func PayoutOf(prev, next rcstate.CircleState) (Payout, bool) {
	if prev.IsComplete || next.CurrentRound <= prev.CurrentRound {
		return Payout{}, false
	}
	idx := int(prev.CurrentPayoutIndex)
	if idx >= len(next.Members) {
		return Payout{}, false
	}

	var amount uint64
	for _, m := range next.Members {
		for _, c := range m.Contributions {
			if c.Round == prev.CurrentRound {
				amount += c.Amount
			}
		}
	}

	return Payout{
		Round:       prev.CurrentRound,
		MemberIndex: idx,
		Recipient:   next.Members[idx].PubKey,
		Amount:      amount,
		Timestamp:   next.RoundStartedAt,
	}, true
}
