package rcstate

import (
	"math"
	"math/bits"
	"slices"

	"github.com/bits-and-blooms/bitset"
	"github.com/gordian-engine/gcircle/gcrypto"
)

// MinMemberCapacity is the smallest circle that can be created.
const MinMemberCapacity = 2

// HashSize is the width of circle identifiers, state hashes and transaction references.
const HashSize = 32

// Phase is the coarse lifecycle stage of a circle.
type Phase uint8

const (
	// PhaseOpen is round zero, while members may still enroll.
	PhaseOpen Phase = iota

	// PhaseActive is any round after the first payout, before the last payout.
	PhaseActive

	// PhaseComplete means every member has been paid once.
	// No transition is defined out of this phase.
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseActive:
		return "active"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Contribution is a single recorded payment by a member into a round's pool.
type Contribution struct {
	Round     uint32
	Amount    uint64
	Timestamp uint64

	// TxRef identifies the ledger transaction that carried the payment.
	// References are unique across the whole circle.
	TxRef [HashSize]byte
}

// Member is a participant in a circle.
// Members have no lifecycle outside the CircleState that owns them.
type Member struct {
	PubKey gcrypto.Secp256k1PubKey

	// PayoutRound is the round in which this member receives the pool.
	PayoutRound uint32

	JoinedAt uint64

	HasReceivedPayout bool

	// Contributions is append-only, in round order.
	Contributions []Contribution
}

// ContributedIn reports whether the member has a contribution recorded for round.
func (m Member) ContributedIn(round uint32) bool {
	// Contributions are sorted by round, so search from the end:
	// the common query is for the current round.
	for i := len(m.Contributions) - 1; i >= 0; i-- {
		r := m.Contributions[i].Round
		if r == round {
			return true
		}
		if r < round {
			return false
		}
	}
	return false
}

// CircleState is the complete state of one circle,
// stored as the payload of exactly one ledger output.
type CircleState struct {
	CircleID [HashSize]byte

	ContributionPerRound uint64

	// RoundDuration is the expected length of a round, in seconds.
	RoundDuration uint64

	CreatedAt      uint64
	RoundStartedAt uint64

	// MemberCapacity bounds both enrollment and the payout rounds members may claim.
	MemberCapacity uint32

	// CurrentRound skips rounds no member claimed,
	// which only happens when enrollment closed below capacity.
	CurrentRound uint32

	// CurrentPayoutIndex is the index into Members of the member paid in CurrentRound.
	// Once the circle is complete it keeps pointing at the last payee.
	CurrentPayoutIndex uint32

	// CurrentPool is the sum of contributions recorded for CurrentRound.
	CurrentPool uint64

	// IsComplete is set once every enrolled member has been paid.
	IsComplete bool

	// PrevStateHash is the hash of the canonical encoding of the state this one superseded,
	// or all zeros for the genesis state.
	PrevStateHash [HashSize]byte

	// Members in insertion order, which is also rotation order.
	Members []Member
}

// IsGenesis reports whether s claims to have no predecessor.
func (s CircleState) IsGenesis() bool {
	return s.PrevStateHash == [HashSize]byte{}
}

func (s CircleState) Phase() Phase {
	switch {
	case s.IsComplete:
		return PhaseComplete
	case s.CurrentRound == 0:
		return PhaseOpen
	default:
		return PhaseActive
	}
}

// IsFull reports whether enrollment has reached the member capacity.
func (s CircleState) IsFull() bool {
	return uint64(len(s.Members)) >= uint64(s.MemberCapacity)
}

// MemberIndex returns the index of the member with the given key, or -1.
func (s CircleState) MemberIndex(k gcrypto.Secp256k1PubKey) int {
	return slices.IndexFunc(s.Members, func(m Member) bool { return m.PubKey == k })
}

// PayoutIndexFor returns the index of the member assigned to be paid in round, or -1.
func (s CircleState) PayoutIndexFor(round uint32) int {
	return slices.IndexFunc(s.Members, func(m Member) bool { return m.PayoutRound == round })
}

// Payee returns the member due to receive the pool for the current round.
// The second result is false once the circle is complete.
func (s CircleState) Payee() (Member, bool) {
	if s.IsComplete || int(s.CurrentPayoutIndex) >= len(s.Members) {
		return Member{}, false
	}
	return s.Members[s.CurrentPayoutIndex], true
}

// HasContributed reports whether the member at idx has contributed in round.
// It returns false for an index out of range.
func (s CircleState) HasContributed(idx int, round uint32) bool {
	if idx < 0 || idx >= len(s.Members) {
		return false
	}
	return s.Members[idx].ContributedIn(round)
}

// Contributed returns the set of member indices that have contributed in the current round.
func (s CircleState) Contributed() *bitset.BitSet {
	b := bitset.New(uint(len(s.Members)))
	for i, m := range s.Members {
		if m.ContributedIn(s.CurrentRound) {
			b.Set(uint(i))
		}
	}
	return b
}

// Outstanding returns the indices of members, other than the payee,
// who have not yet contributed for the current round.
// It returns nil for a complete circle.
func (s CircleState) Outstanding() []int {
	if s.IsComplete {
		return nil
	}
	var out []int
	for i, m := range s.Members {
		if i == int(s.CurrentPayoutIndex) {
			continue
		}
		if !m.ContributedIn(s.CurrentRound) {
			out = append(out, i)
		}
	}
	return out
}

// RoundDeadline is the time by which the current round's contributions are expected.
// It saturates at the largest uint64 rather than wrapping.
func (s CircleState) RoundDeadline() uint64 {
	d, carry := bits.Add64(s.RoundStartedAt, s.RoundDuration, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return d
}

// Overdue reports whether now is past the current round's deadline
// while contributions are still outstanding.
func (s CircleState) Overdue(now uint64) bool {
	if s.IsComplete {
		return false
	}
	return now > s.RoundDeadline() && len(s.Outstanding()) > 0
}

// Clone returns a deep copy of s, sharing no slices with the original.
// Empty slices come back nil, the form UnmarshalState produces,
// so every state built by a transition survives an encoding round trip unchanged.
func (s CircleState) Clone() CircleState {
	out := s
	out.Members = nil
	if len(s.Members) > 0 {
		out.Members = make([]Member, len(s.Members))
		for i, m := range s.Members {
			out.Members[i] = m
			out.Members[i].Contributions = nil
			if len(m.Contributions) > 0 {
				out.Members[i].Contributions = slices.Clone(m.Contributions)
			}
		}
	}
	return out
}
