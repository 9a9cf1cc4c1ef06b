package rcaccept

import (
	"bytes"

	"github.com/gordian-engine/gcircle/gcrypto"
	"github.com/gordian-engine/gcircle/rc/rcchain"
	"github.com/gordian-engine/gcircle/rc/rccodec"
	"github.com/gordian-engine/gcircle/rc/rcstate"
	"github.com/gordian-engine/gcircle/rc/rctransition"
)

// Predicate decides whether a ledger transaction may create a new circle state.
// Accept returns nil or a *RejectionError.
type Predicate interface {
	Accept(app App, tx Tx, witness []byte) error
}

// Minimal accepts any transaction with at least one output
// carrying a non-empty payload for the app.
// It does not inspect the payload.
type Minimal struct{}

func (Minimal) Accept(app App, tx Tx, _ []byte) error {
	if len(payloads(tx.Outs, app)) == 0 {
		return reject("payload", nil, "no output carries a payload for %s", app)
	}
	return nil
}

// Full accepts only transactions whose output is a valid successor
// of the spent circle state, or a valid genesis state.
type Full struct {
	// RequireSignature rejects transitions whose witness
	// is not signed by the acting member, or by the founder for a genesis.
	RequireSignature bool
}

func (p Full) Accept(app App, tx Tx, witness []byte) error {
	outs := payloads(tx.Outs, app)
	switch len(outs) {
	case 0:
		return reject("payload", nil, "no output carries a payload for %s", app)
	case 1:
	default:
		return reject("single_output", nil, "%d outputs carry a payload for %s", len(outs), app)
	}
	newBytes := outs[0]

	next, err := rccodec.UnmarshalState(newBytes)
	if err != nil {
		return reject("decode", err, "new state")
	}
	if next.CircleID != app.Identity {
		return reject("identity", nil, "state belongs to circle %x", next.CircleID)
	}
	if err := rcstate.Validate(next); err != nil {
		return reject("invariants", err, "new state")
	}

	w, err := UnmarshalWitness(witness)
	if err != nil {
		return reject("witness", err, "")
	}

	var actor gcrypto.Secp256k1PubKey
	ins := payloads(tx.Ins, app)
	switch len(ins) {
	case 0:
		if err := rcchain.VerifyGenesis(next); err != nil {
			return reject("genesis", err, "")
		}
		if w.Op != nil {
			return reject("witness", nil, "genesis witness carries an operation")
		}
		actor = next.Members[0].PubKey

	case 1:
		prevBytes := ins[0]
		if err := rcchain.VerifyLink(prevBytes, next); err != nil {
			return reject("link", err, "")
		}
		prev, err := rccodec.UnmarshalState(prevBytes)
		if err != nil {
			// Unreachable after VerifyLink, which decodes the same bytes.
			return reject("decode", err, "predecessor")
		}
		if err := rcchain.VerifyTransition(prev, next); err != nil {
			return reject("transition", err, "")
		}

		if w.Op == nil {
			return reject("witness", nil, "transition witness has no operation")
		}
		replayed, err := rctransition.Apply(prev, w.Op)
		if err != nil {
			return reject("replay", err, "operation does not apply to predecessor")
		}
		if !bytes.Equal(rccodec.MarshalState(replayed), newBytes) {
			return reject("replay", nil, "operation does not produce the new state")
		}
		actor = w.Op.Actor()

	default:
		return reject("single_input", nil, "%d spent outputs carry a payload for %s", len(ins), app)
	}

	if len(w.Signature) > 0 || p.RequireSignature {
		if !w.Verify(actor, newBytes) {
			return reject("signature", nil, "witness not signed by %s", actor)
		}
	}

	return nil
}
