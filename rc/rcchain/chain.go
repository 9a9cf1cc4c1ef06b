// Package rcchain links successive circle states into a verifiable history.
//
// Each committed state carries the hash of its predecessor's canonical bytes,
// so a verifier holding the new state and the predecessor's bytes
// can confirm continuity without replaying the whole history.
package rcchain

import (
	"crypto/sha256"
	"fmt"
	"slices"

	"github.com/gordian-engine/gcircle/rc/rccodec"
	"github.com/gordian-engine/gcircle/rc/rcstate"
)

// HashBytes is the state hash of canonical state bytes.
func HashBytes(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// HashState is the state hash of s's canonical encoding.
func HashState(s rcstate.CircleState) [32]byte {
	return HashBytes(rccodec.MarshalState(s))
}

// VerifyLink checks that next directly supersedes the state encoded in prevBytes.
func VerifyLink(prevBytes []byte, next rcstate.CircleState) error {
	prev, err := rccodec.UnmarshalState(prevBytes)
	if err != nil {
		return fmt.Errorf("failed to decode predecessor: %w", err)
	}
	if prev.CircleID != next.CircleID {
		return &ChainError{Kind: CircleMismatch, Field: "circle_id", Want: prev.CircleID, Got: next.CircleID}
	}
	if want := HashBytes(prevBytes); next.PrevStateHash != want {
		return &ChainError{Kind: BrokenLink, Field: "prev_state_hash", Want: want, Got: next.PrevStateHash}
	}
	return nil
}

// VerifyGenesis checks that s is a valid first state of a circle:
// no predecessor, round zero, and only the founder enrolled.
func VerifyGenesis(s rcstate.CircleState) error {
	if err := rcstate.Validate(s); err != nil {
		return err
	}
	if !s.IsGenesis() {
		return &ChainError{Kind: NotGenesis, Field: "prev_state_hash", Got: s.PrevStateHash}
	}
	switch {
	case s.CurrentRound != 0:
		return &ChainError{Kind: NotGenesis, Field: "current_round", Detail: "genesis must start at round 0"}
	case len(s.Members) != 1:
		return &ChainError{Kind: NotGenesis, Field: "members", Detail: fmt.Sprintf("genesis has %d members, want 1", len(s.Members))}
	case s.Members[0].PayoutRound != 0:
		return &ChainError{Kind: NotGenesis, Field: "payout_round", Detail: "founder must be paid in round 0"}
	case len(s.Members[0].Contributions) != 0:
		return &ChainError{Kind: NotGenesis, Field: "contributions", Detail: "genesis has contributions"}
	case s.RoundStartedAt != s.CreatedAt || s.Members[0].JoinedAt != s.CreatedAt:
		return &ChainError{Kind: NotGenesis, Field: "created_at", Detail: "genesis timestamps must equal created_at"}
	}
	return nil
}

// VerifyTransition checks that next could be produced from prev by a single operation.
// It does not replay the operation; see rcaccept for that.
//
// Both states are expected to have passed rcstate.Validate.
func VerifyTransition(prev, next rcstate.CircleState) error {
	if prev.CircleID != next.CircleID {
		return &ChainError{Kind: CircleMismatch, Field: "circle_id", Want: prev.CircleID, Got: next.CircleID}
	}
	if want := HashState(prev); next.PrevStateHash != want {
		return &ChainError{Kind: BrokenLink, Field: "prev_state_hash", Want: want, Got: next.PrevStateHash}
	}

	if prev.IsComplete {
		return illegal("is_complete", "no transition is defined out of a complete circle")
	}

	switch {
	case next.ContributionPerRound != prev.ContributionPerRound:
		return illegal("contribution_per_round", "immutable field changed")
	case next.RoundDuration != prev.RoundDuration:
		return illegal("round_duration", "immutable field changed")
	case next.CreatedAt != prev.CreatedAt:
		return illegal("created_at", "immutable field changed")
	case next.MemberCapacity != prev.MemberCapacity:
		return illegal("member_capacity", "immutable field changed")
	}

	// A round may advance past rounds that no member was assigned,
	// but only by paying the previous round's payee; see the member loop below.
	advanced := false
	switch {
	case next.CurrentRound == prev.CurrentRound:
		if next.CurrentPool < prev.CurrentPool {
			return illegal("current_pool", "pool decreased within round %d", prev.CurrentRound)
		}
		if next.RoundStartedAt != prev.RoundStartedAt {
			return illegal("round_started_at", "round start changed without advancing")
		}
	case next.CurrentRound > prev.CurrentRound:
		advanced = true
		if next.CurrentPool != 0 {
			return illegal("current_pool", "pool not reset on advancing to round %d", next.CurrentRound)
		}
	default:
		return illegal("current_round", "round moved from %d to %d", prev.CurrentRound, next.CurrentRound)
	}

	if len(next.Members) < len(prev.Members) {
		return illegal("members", "members removed")
	}
	added := len(next.Members) - len(prev.Members)
	if added > 1 {
		return illegal("members", "%d members added in one transition", added)
	}
	if added > 0 && prev.CurrentRound > 0 {
		return illegal("members", "member added after enrollment closed")
	}

	newContributions := 0
	for i, pm := range prev.Members {
		nm := next.Members[i]
		if nm.PubKey != pm.PubKey || nm.PayoutRound != pm.PayoutRound || nm.JoinedAt != pm.JoinedAt {
			return illegal("members", "member %d rewritten", i)
		}
		if pm.HasReceivedPayout && !nm.HasReceivedPayout {
			return illegal("has_received_payout", "member %d lost its payout", i)
		}
		if !pm.HasReceivedPayout && nm.HasReceivedPayout && (!advanced || pm.PayoutRound != prev.CurrentRound) {
			return illegal("has_received_payout", "member %d paid outside its round %d", i, pm.PayoutRound)
		}
		if len(nm.Contributions) < len(pm.Contributions) ||
			!slices.Equal(nm.Contributions[:len(pm.Contributions)], pm.Contributions) {
			return illegal("contributions", "member %d history rewritten", i)
		}
		newContributions += len(nm.Contributions) - len(pm.Contributions)
	}
	for _, nm := range next.Members[len(prev.Members):] {
		if len(nm.Contributions) != 0 || nm.HasReceivedPayout {
			return illegal("members", "new member arrived with history")
		}
	}

	switch {
	case added == 0 && newContributions == 0:
		return illegal("members", "transition changes nothing")
	case added > 0 && newContributions > 0:
		return illegal("members", "enrollment and contribution in one transition")
	case newContributions > 1:
		return illegal("contributions", "%d contributions in one transition", newContributions)
	case advanced && newContributions != 1:
		return illegal("current_round", "round advanced without a contribution")
	}

	return nil
}

// VerifyHistory decodes and checks a full circle history, oldest first.
// The first state must be a genesis state.
// It returns the decoded tip.
func VerifyHistory(blobs [][]byte) (rcstate.CircleState, error) {
	if len(blobs) == 0 {
		return rcstate.CircleState{}, &ChainError{Kind: NotGenesis, Detail: "empty history"}
	}

	var prev rcstate.CircleState
	for i, b := range blobs {
		s, err := rccodec.UnmarshalState(b)
		if err != nil {
			return rcstate.CircleState{}, fmt.Errorf("state %d: %w", i, err)
		}
		if err := rcstate.Validate(s); err != nil {
			return rcstate.CircleState{}, fmt.Errorf("state %d: %w", i, err)
		}

		if i == 0 {
			if err := VerifyGenesis(s); err != nil {
				return rcstate.CircleState{}, fmt.Errorf("state 0: %w", err)
			}
		} else {
			if err := VerifyLink(blobs[i-1], s); err != nil {
				return rcstate.CircleState{}, fmt.Errorf("state %d: %w", i, err)
			}
			if err := VerifyTransition(prev, s); err != nil {
				return rcstate.CircleState{}, fmt.Errorf("state %d: %w", i, err)
			}
		}
		prev = s
	}
	return prev, nil
}
