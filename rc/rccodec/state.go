package rccodec

import (
	"encoding/binary"
	"fmt"

	"github.com/gordian-engine/gcircle/gcrypto"
	"github.com/gordian-engine/gcircle/rc/rcstate"
)

const (
	int8Size  = 1
	int16Size = 2
	int32Size = 4
	int64Size = 8

	hashSize   = rcstate.HashSize
	pubKeySize = gcrypto.Secp256k1PubKeySize

	versionSize = int16Size

	stateHeaderSize = versionSize +
		hashSize + // circle_id
		4*int64Size + // contribution_per_round, round_duration, created_at, round_started_at
		3*int32Size + // member_capacity, current_round, current_payout_index
		int64Size + // current_pool
		int8Size + // is_complete
		hashSize + // prev_state_hash
		int32Size // member_count

	memberPrefixSize = pubKeySize + int32Size + int64Size + int8Size + int32Size
	contributionSize = int32Size + int64Size + int64Size + hashSize

	binaryVersion = 1
)

// EncodedStateSize returns the exact length of MarshalState(s).
func EncodedStateSize(s rcstate.CircleState) int {
	n := stateHeaderSize
	for _, m := range s.Members {
		n += memberPrefixSize + len(m.Contributions)*contributionSize
	}
	return n
}

// MarshalState returns the canonical encoding of s.
// It does not validate s; any value of the Go type has an encoding.
func MarshalState(s rcstate.CircleState) []byte {
	return AppendState(make([]byte, 0, EncodedStateSize(s)), s)
}

// AppendState appends the canonical encoding of s to dst.
func AppendState(dst []byte, s rcstate.CircleState) []byte {
	out := binary.LittleEndian.AppendUint16(dst, binaryVersion)

	out = append(out, s.CircleID[:]...)
	out = binary.LittleEndian.AppendUint64(out, s.ContributionPerRound)
	out = binary.LittleEndian.AppendUint64(out, s.RoundDuration)
	out = binary.LittleEndian.AppendUint64(out, s.CreatedAt)
	out = binary.LittleEndian.AppendUint64(out, s.RoundStartedAt)
	out = binary.LittleEndian.AppendUint32(out, s.MemberCapacity)
	out = binary.LittleEndian.AppendUint32(out, s.CurrentRound)
	out = binary.LittleEndian.AppendUint32(out, s.CurrentPayoutIndex)
	out = binary.LittleEndian.AppendUint64(out, s.CurrentPool)
	out = putBool(out, s.IsComplete)
	out = append(out, s.PrevStateHash[:]...)

	out = binary.LittleEndian.AppendUint32(out, uint32(len(s.Members)))
	for _, m := range s.Members {
		out = append(out, m.PubKey[:]...)
		out = binary.LittleEndian.AppendUint32(out, m.PayoutRound)
		out = binary.LittleEndian.AppendUint64(out, m.JoinedAt)
		out = putBool(out, m.HasReceivedPayout)

		out = binary.LittleEndian.AppendUint32(out, uint32(len(m.Contributions)))
		for _, c := range m.Contributions {
			out = binary.LittleEndian.AppendUint32(out, c.Round)
			out = binary.LittleEndian.AppendUint64(out, c.Amount)
			out = binary.LittleEndian.AppendUint64(out, c.Timestamp)
			out = append(out, c.TxRef[:]...)
		}
	}

	return out
}

// UnmarshalState decodes a canonical state encoding.
// It rejects truncated input, trailing bytes, unknown versions,
// boolean bytes other than 0 or 1, and keys without a compressed-point prefix.
// Any error is a *DecodeError.
//
// For any b accepted here, MarshalState(UnmarshalState(b)) equals b.
// Empty member and contribution lists decode as nil,
// so UnmarshalState(MarshalState(s)) equals s.Clone().
func UnmarshalState(b []byte) (rcstate.CircleState, error) {
	r := reader{b: b}

	if v := r.u16("version"); r.err == nil && v != binaryVersion {
		r.off = 0
		r.fail("version", fmt.Sprintf("unsupported version %d", v))
	}

	var s rcstate.CircleState
	s.CircleID = r.hash("circle_id")
	s.ContributionPerRound = r.u64("contribution_per_round")
	s.RoundDuration = r.u64("round_duration")
	s.CreatedAt = r.u64("created_at")
	s.RoundStartedAt = r.u64("round_started_at")
	s.MemberCapacity = r.u32("member_capacity")
	s.CurrentRound = r.u32("current_round")
	s.CurrentPayoutIndex = r.u32("current_payout_index")
	s.CurrentPool = r.u64("current_pool")
	s.IsComplete = r.flag("is_complete")
	s.PrevStateHash = r.hash("prev_state_hash")

	if n := r.count("member_count", memberPrefixSize); n > 0 {
		s.Members = make([]rcstate.Member, n)
		for i := range s.Members {
			m := &s.Members[i]
			m.PubKey = r.pubKey("member.pubkey")
			m.PayoutRound = r.u32("member.payout_round")
			m.JoinedAt = r.u64("member.joined_at")
			m.HasReceivedPayout = r.flag("member.has_received_payout")

			if nc := r.count("member.contribution_count", contributionSize); nc > 0 {
				m.Contributions = make([]rcstate.Contribution, nc)
				for j := range m.Contributions {
					c := &m.Contributions[j]
					c.Round = r.u32("contribution.round")
					c.Amount = r.u64("contribution.amount")
					c.Timestamp = r.u64("contribution.timestamp")
					c.TxRef = r.hash("contribution.tx_ref")
				}
			}
			if r.err != nil {
				break
			}
		}
	}

	if err := r.finish(); err != nil {
		return rcstate.CircleState{}, err
	}
	return s, nil
}
