package rctransition

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/bits"

	"github.com/gordian-engine/gcircle/gcrypto"
	"github.com/gordian-engine/gcircle/rc/rcstate"
)

// CreateParams are the inputs to [CreateCircle].
type CreateParams struct {
	// CircleID identifies the circle for its whole life.
	// If zero, a random identifier is drawn from Rand.
	CircleID [rcstate.HashSize]byte

	ContributionPerRound uint64
	RoundDuration        uint64
	CreatedAt            uint64

	Founder gcrypto.Secp256k1PubKey

	// MemberCapacity is the number of seats, and therefore the most rounds the circle can run.
	MemberCapacity uint32

	// Rand is the entropy source for a generated CircleID.
	// Defaults to crypto/rand.Reader.
	Rand io.Reader
}

// CreateCircle produces the genesis state of a new circle,
// with the founder enrolled to be paid in round zero.
func CreateCircle(p CreateParams) (rcstate.CircleState, error) {
	if p.MemberCapacity < rcstate.MinMemberCapacity {
		return rcstate.CircleState{}, &rcstate.ParamError{
			Field:  "member_capacity",
			Reason: fmt.Sprintf("must be at least %d, got %d", rcstate.MinMemberCapacity, p.MemberCapacity),
		}
	}
	if p.ContributionPerRound == 0 {
		return rcstate.CircleState{}, &rcstate.ParamError{Field: "contribution_per_round", Reason: "must be positive"}
	}
	if p.RoundDuration == 0 {
		return rcstate.CircleState{}, &rcstate.ParamError{Field: "round_duration", Reason: "must be positive"}
	}
	if hi, _ := bits.Mul64(p.ContributionPerRound, uint64(p.MemberCapacity)); hi != 0 {
		return rcstate.CircleState{}, &rcstate.ParamError{Field: "contribution_per_round", Reason: "full pool overflows 64 bits"}
	}
	if err := p.Founder.Validate(); err != nil {
		return rcstate.CircleState{}, &rcstate.ParamError{Field: "founder", Reason: err.Error()}
	}

	id := p.CircleID
	if id == ([rcstate.HashSize]byte{}) {
		r := p.Rand
		if r == nil {
			r = rand.Reader
		}
		if _, err := io.ReadFull(r, id[:]); err != nil {
			return rcstate.CircleState{}, fmt.Errorf("failed to generate circle ID: %w", err)
		}
	}

	s := rcstate.CircleState{
		CircleID: id,

		ContributionPerRound: p.ContributionPerRound,
		RoundDuration:        p.RoundDuration,
		CreatedAt:            p.CreatedAt,
		RoundStartedAt:       p.CreatedAt,

		MemberCapacity: p.MemberCapacity,

		Members: []rcstate.Member{
			{
				PubKey:      p.Founder,
				PayoutRound: 0,
				JoinedAt:    p.CreatedAt,
			},
		},
	}

	if err := rcstate.Validate(s); err != nil {
		return rcstate.CircleState{}, fmt.Errorf("genesis state failed validation: %w", err)
	}
	return s, nil
}
