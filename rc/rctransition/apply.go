package rctransition

import (
	"fmt"

	"github.com/gordian-engine/gcircle/rc/rcchain"
	"github.com/gordian-engine/gcircle/rc/rcstate"
)

// Apply dispatches op to [AddMember] or [RecordContribution].
func Apply(s rcstate.CircleState, op rcstate.Operation) (rcstate.CircleState, error) {
	switch o := op.(type) {
	case rcstate.AddMember:
		return AddMember(s, o.PubKey, o.PayoutRound, o.JoinedAt)
	case rcstate.Contribute:
		return RecordContribution(s, o.PubKey, o.Amount, o.Timestamp, o.TxRef)
	default:
		return rcstate.CircleState{}, &rcstate.ParamError{
			Field:  "operation",
			Reason: fmt.Sprintf("unsupported operation type %T", op),
		}
	}
}

// checkInput rejects input states that are not themselves valid,
// so that transitions never build on a corrupt predecessor.
func checkInput(s rcstate.CircleState) error {
	if err := rcstate.Validate(s); err != nil {
		return fmt.Errorf("invalid input state: %w", err)
	}
	return nil
}

// finish links next to prev and validates it.
func finish(prev, next rcstate.CircleState) (rcstate.CircleState, error) {
	next.PrevStateHash = rcchain.HashState(prev)
	if err := rcstate.Validate(next); err != nil {
		return rcstate.CircleState{}, fmt.Errorf("transition produced invalid state: %w", err)
	}
	return next, nil
}
