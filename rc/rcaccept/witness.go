package rcaccept

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gordian-engine/gcircle/gcrypto"
	"github.com/gordian-engine/gcircle/rc/rcchain"
	"github.com/gordian-engine/gcircle/rc/rccodec"
	"github.com/gordian-engine/gcircle/rc/rcstate"
)

// Witness accompanies a state transition submitted to the ledger.
//
// Encoded as
//
//	u32 op_len | op_len bytes operation | optional 65-byte signature
type Witness struct {
	// Op is the operation that produced the new state.
	// It is nil for a genesis state.
	Op rcstate.Operation

	// Signature is an optional recoverable secp256k1 signature
	// by the operation's actor over [SigningBytes].
	Signature []byte
}

// Marshal encodes w.
func (w Witness) Marshal() ([]byte, error) {
	var op []byte
	if w.Op != nil {
		var err error
		op, err = rccodec.MarshalOperation(w.Op)
		if err != nil {
			return nil, err
		}
	}
	if n := len(w.Signature); n != 0 && n != gcrypto.Secp256k1SignatureSize {
		return nil, &rcstate.ParamError{
			Field:  "signature",
			Reason: fmt.Sprintf("must be empty or %d bytes, got %d", gcrypto.Secp256k1SignatureSize, n),
		}
	}

	out := make([]byte, 0, 4+len(op)+len(w.Signature))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(op)))
	out = append(out, op...)
	out = append(out, w.Signature...)
	return out, nil
}

// UnmarshalWitness decodes a witness produced by [Witness.Marshal].
// An empty input decodes to the zero Witness.
func UnmarshalWitness(b []byte) (Witness, error) {
	if len(b) == 0 {
		return Witness{}, nil
	}
	if len(b) < 4 {
		return Witness{}, &rccodec.DecodeError{Field: "witness.op_len", Reason: "truncated"}
	}
	n := binary.LittleEndian.Uint32(b)
	rest := b[4:]
	if uint64(n) > uint64(len(rest)) {
		return Witness{}, &rccodec.DecodeError{Field: "witness.op", Reason: fmt.Sprintf("need %d bytes, have %d", n, len(rest))}
	}

	var w Witness
	if n > 0 {
		op, err := rccodec.UnmarshalOperation(rest[:n])
		if err != nil {
			return Witness{}, err
		}
		w.Op = op
	}

	sig := rest[n:]
	switch len(sig) {
	case 0:
	case gcrypto.Secp256k1SignatureSize:
		w.Signature = append([]byte(nil), sig...)
	default:
		return Witness{}, &rccodec.DecodeError{
			Offset: 4 + int(n),
			Field:  "witness.signature",
			Reason: fmt.Sprintf("must be empty or %d bytes, got %d", gcrypto.Secp256k1SignatureSize, len(sig)),
		}
	}
	return w, nil
}

// SigningBytes is the message an actor signs to authorize op producing newState.
func SigningBytes(op rcstate.Operation, newState []byte) ([]byte, error) {
	var out []byte
	if op != nil {
		var err error
		out, err = rccodec.MarshalOperation(op)
		if err != nil {
			return nil, err
		}
	}
	h := rcchain.HashBytes(newState)
	return append(out, h[:]...), nil
}

// SignWitness returns a Witness for op, signed by signer.
func SignWitness(
	ctx context.Context, signer gcrypto.Signer, op rcstate.Operation, newState []byte,
) (Witness, error) {
	msg, err := SigningBytes(op, newState)
	if err != nil {
		return Witness{}, err
	}
	sig, err := signer.Sign(ctx, msg)
	if err != nil {
		return Witness{}, fmt.Errorf("failed to sign witness: %w", err)
	}
	return Witness{Op: op, Signature: sig}, nil
}

// Verify reports whether w's signature is valid for newState under pub.
// A witness without a signature never verifies.
func (w Witness) Verify(pub gcrypto.PubKey, newState []byte) bool {
	if len(w.Signature) == 0 {
		return false
	}
	msg, err := SigningBytes(w.Op, newState)
	if err != nil {
		return false
	}
	return pub.Verify(msg, w.Signature)
}
