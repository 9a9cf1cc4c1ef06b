// Package rcstatetest contains fixtures for tests that need realistic circle states.
package rcstatetest

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gordian-engine/gcircle/gcrypto"
	"github.com/gordian-engine/gcircle/gcrypto/gcryptotest"
	"github.com/gordian-engine/gcircle/rc/rcstate"
	"github.com/gordian-engine/gcircle/rc/rctransition"
)

// Fixture builds circles with deterministic members.
// Member i is always assigned payout round i, so member 0 is the founder.
//
// The exported fields have defaults from [NewFixture]
// and may be changed before the first state is built.
type Fixture struct {
	Signers []gcrypto.Secp256k1Signer

	CircleID [rcstate.HashSize]byte

	ContributionPerRound uint64
	RoundDuration        uint64
	CreatedAt            uint64
}

// NewFixture returns a Fixture for a circle of the given capacity.
func NewFixture(capacity int) *Fixture {
	return &Fixture{
		Signers: gcryptotest.DeterministicSecp256k1Signers(capacity),

		CircleID: sha256.Sum256([]byte("gcircle-fixture")),

		ContributionPerRound: 100_000,
		RoundDuration:        7 * 24 * 60 * 60,
		CreatedAt:            1_700_000_000,
	}
}

// Capacity is the number of members in a full circle.
func (f *Fixture) Capacity() int {
	return len(f.Signers)
}

// PubKey returns the compressed public key of member i.
func (f *Fixture) PubKey(i int) gcrypto.Secp256k1PubKey {
	return f.Signers[i].CompressedPubKey()
}

// CreateParams returns the parameters for creating the fixture's circle.
func (f *Fixture) CreateParams() rctransition.CreateParams {
	return rctransition.CreateParams{
		CircleID:             f.CircleID,
		ContributionPerRound: f.ContributionPerRound,
		RoundDuration:        f.RoundDuration,
		CreatedAt:            f.CreatedAt,
		Founder:              f.PubKey(0),
		MemberCapacity:       uint32(len(f.Signers)),
	}
}

// Genesis returns the genesis state of the fixture's circle.
func (f *Fixture) Genesis() rcstate.CircleState {
	s, err := rctransition.CreateCircle(f.CreateParams())
	if err != nil {
		panic(fmt.Errorf("fixture genesis: %w", err))
	}
	return s
}

// AddMemberOp returns the operation enrolling member i.
func (f *Fixture) AddMemberOp(i int) rcstate.AddMember {
	return rcstate.AddMember{
		PubKey:      f.PubKey(i),
		PayoutRound: uint32(i),
		JoinedAt:    f.CreatedAt + uint64(i),
	}
}

// Enrolled returns the fixture's circle with every member enrolled,
// still in round zero with no contributions.
func (f *Fixture) Enrolled() rcstate.CircleState {
	s := f.Genesis()
	for i := 1; i < len(f.Signers); i++ {
		s = f.mustApply(s, f.AddMemberOp(i))
	}
	return s
}

// TxRef is the transaction reference used for member i's contribution in round.
func (f *Fixture) TxRef(member int, round uint32) [rcstate.HashSize]byte {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], uint64(member))
	binary.LittleEndian.PutUint64(b[8:], uint64(round))
	return sha256.Sum256(append([]byte("gcircle-txref"), b[:]...))
}

// ContributeOp returns member i's correct contribution for the current round of s.
func (f *Fixture) ContributeOp(s rcstate.CircleState, member int) rcstate.Contribute {
	return rcstate.Contribute{
		PubKey:    f.PubKey(member),
		Amount:    f.ContributionPerRound,
		Timestamp: s.RoundStartedAt + 10*uint64(member+1),
		TxRef:     f.TxRef(member, s.CurrentRound),
	}
}

// Contribute applies member i's contribution to s.
func (f *Fixture) Contribute(s rcstate.CircleState, member int) rcstate.CircleState {
	return f.mustApply(s, f.ContributeOp(s, member))
}

// FinishRound has every outstanding member contribute, in index order,
// which pays out the current round.
func (f *Fixture) FinishRound(s rcstate.CircleState) rcstate.CircleState {
	for _, i := range s.Outstanding() {
		s = f.Contribute(s, i)
	}
	return s
}

// History returns every state of the fixture's circle from genesis,
// through enrollment, and through the given number of completed rounds.
func (f *Fixture) History(rounds int) []rcstate.CircleState {
	s := f.Genesis()
	out := []rcstate.CircleState{s}
	for i := 1; i < len(f.Signers); i++ {
		s = f.mustApply(s, f.AddMemberOp(i))
		out = append(out, s)
	}
	for r := 0; r < rounds; r++ {
		for _, i := range s.Outstanding() {
			s = f.Contribute(s, i)
			out = append(out, s)
		}
	}
	return out
}

func (f *Fixture) mustApply(s rcstate.CircleState, op rcstate.Operation) rcstate.CircleState {
	next, err := rctransition.Apply(s, op)
	if err != nil {
		panic(fmt.Errorf("fixture apply %s: %w", op.Kind(), err))
	}
	return next
}
