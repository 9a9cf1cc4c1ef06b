package rchttp

import (
	"encoding/hex"

	"github.com/gordian-engine/gcircle/rc/rcledger"
	"github.com/gordian-engine/gcircle/rc/rcstate"
)

// CircleView is the JSON summary of a circle's current state.
type CircleView struct {
	CircleID string `json:"circle_id"`
	Ref      string `json:"ref"`

	Phase string `json:"phase"`

	ContributionPerRound uint64 `json:"contribution_per_round"`
	RoundDuration        uint64 `json:"round_duration"`
	MemberCapacity       uint32 `json:"member_capacity"`

	CurrentRound  uint32 `json:"current_round"`
	CurrentPool   uint64 `json:"current_pool"`
	RoundDeadline uint64 `json:"round_deadline"`
	Overdue       bool   `json:"overdue"`

	// Payee is empty once the circle is complete.
	Payee string `json:"payee,omitempty"`

	Outstanding []string     `json:"outstanding"`
	Members     []MemberView `json:"members"`
}

type MemberView struct {
	PubKey            string `json:"pubkey"`
	PayoutRound       uint32 `json:"payout_round"`
	JoinedAt          uint64 `json:"joined_at"`
	HasReceivedPayout bool   `json:"has_received_payout"`
	Contributions     int    `json:"contributions"`
}

// NewCircleView summarizes s as of now, in Unix seconds.
func NewCircleView(s rcstate.CircleState, ref rcledger.OutputRef, now uint64) CircleView {
	v := CircleView{
		CircleID: hex.EncodeToString(s.CircleID[:]),
		Ref:      ref.String(),
		Phase:    s.Phase().String(),

		ContributionPerRound: s.ContributionPerRound,
		RoundDuration:        s.RoundDuration,
		MemberCapacity:       s.MemberCapacity,

		CurrentRound:  s.CurrentRound,
		CurrentPool:   s.CurrentPool,
		RoundDeadline: s.RoundDeadline(),
		Overdue:       s.Overdue(now),

		Outstanding: []string{},
		Members:     make([]MemberView, len(s.Members)),
	}
	if p, ok := s.Payee(); ok {
		v.Payee = p.PubKey.String()
	}
	for _, i := range s.Outstanding() {
		v.Outstanding = append(v.Outstanding, s.Members[i].PubKey.String())
	}
	for i, m := range s.Members {
		v.Members[i] = MemberView{
			PubKey:            m.PubKey.String(),
			PayoutRound:       m.PayoutRound,
			JoinedAt:          m.JoinedAt,
			HasReceivedPayout: m.HasReceivedPayout,
			Contributions:     len(m.Contributions),
		}
	}
	return v
}
