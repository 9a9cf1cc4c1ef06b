package rccodec

import (
	"encoding/binary"
	"fmt"

	"github.com/gordian-engine/gcircle/rc/rcstate"
)

// Operation layouts:
//
//	add member: u8 kind=1 | [33] pubkey | u32 payout_round | u64 joined_at
//	contribute: u8 kind=2 | [33] pubkey | u64 amount | u64 timestamp | [32] tx_ref
const (
	addMemberOpSize  = int8Size + pubKeySize + int32Size + int64Size
	contributeOpSize = int8Size + pubKeySize + int64Size + int64Size + hashSize
)

// MarshalOperation returns the canonical encoding of an operation.
// Only the value types rcstate.AddMember and rcstate.Contribute are supported.
func MarshalOperation(op rcstate.Operation) ([]byte, error) {
	switch o := op.(type) {
	case rcstate.AddMember:
		out := make([]byte, 0, addMemberOpSize)
		out = append(out, byte(rcstate.OpAddMember))
		out = append(out, o.PubKey[:]...)
		out = binary.LittleEndian.AppendUint32(out, o.PayoutRound)
		out = binary.LittleEndian.AppendUint64(out, o.JoinedAt)
		return out, nil

	case rcstate.Contribute:
		out := make([]byte, 0, contributeOpSize)
		out = append(out, byte(rcstate.OpContribute))
		out = append(out, o.PubKey[:]...)
		out = binary.LittleEndian.AppendUint64(out, o.Amount)
		out = binary.LittleEndian.AppendUint64(out, o.Timestamp)
		out = append(out, o.TxRef[:]...)
		return out, nil

	default:
		return nil, &rcstate.ParamError{
			Field:  "operation",
			Reason: fmt.Sprintf("cannot encode operation of type %T", op),
		}
	}
}

// UnmarshalOperation decodes an operation produced by MarshalOperation.
// Any error is a *DecodeError.
func UnmarshalOperation(b []byte) (rcstate.Operation, error) {
	r := reader{b: b}
	kind := rcstate.OpKind(r.u8("operation.kind"))
	if r.err != nil {
		return nil, r.err
	}

	var op rcstate.Operation
	switch kind {
	case rcstate.OpAddMember:
		var o rcstate.AddMember
		o.PubKey = r.pubKey("add_member.pubkey")
		o.PayoutRound = r.u32("add_member.payout_round")
		o.JoinedAt = r.u64("add_member.joined_at")
		op = o

	case rcstate.OpContribute:
		var o rcstate.Contribute
		o.PubKey = r.pubKey("contribute.pubkey")
		o.Amount = r.u64("contribute.amount")
		o.Timestamp = r.u64("contribute.timestamp")
		o.TxRef = r.hash("contribute.tx_ref")
		op = o

	default:
		r.off = 0
		r.fail("operation.kind", fmt.Sprintf("unknown operation kind %d", kind))
	}

	if err := r.finish(); err != nil {
		return nil, err
	}
	return op, nil
}
