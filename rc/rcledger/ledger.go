// Package rcledger connects the circle engine to a UTXO-style ledger.
//
// A circle's current state lives in exactly one unspent ledger output.
// Advancing the circle spends that output and creates its successor;
// the ledger's single-consumption rule guarantees a linear history,
// so no process-local bookkeeping of spent outputs is needed.
//
// The [Ledger] interface is the collaborator boundary.
// [Client] is the caller-side loop that fetches, transitions, proves and submits.
package rcledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gordian-engine/gcircle/rc/rcaccept"
)

// ErrNotFound is returned by a [Ledger] for an unknown output or circle.
var ErrNotFound = errors.New("not found")

// OutputRef identifies a ledger output.
type OutputRef struct {
	TxID  [32]byte
	Index uint32
}

func (r OutputRef) String() string {
	return fmt.Sprintf("%x:%d", r.TxID, r.Index)
}

// Bundle is a proved transaction ready for submission.
type Bundle struct {
	App rcaccept.App

	// Spend is the output holding the state being superseded.
	// It is nil when the bundle creates a circle.
	Spend *OutputRef

	// PrevState is the payload of the spent output, as seen by the submitter.
	// Ledgers consult their own copy of the spent output, not this field.
	PrevState []byte

	NewState []byte

	// Witness is an encoded rcaccept.Witness.
	Witness []byte
}

// Tx returns the transaction shape presented to an acceptance predicate,
// spending an output whose payload is prevState.
func (b Bundle) Tx(prevState []byte) rcaccept.Tx {
	tx := rcaccept.Tx{
		Outs: []rcaccept.Output{
			{Payloads: map[rcaccept.App][]byte{b.App: b.NewState}},
		},
	}
	if b.Spend != nil {
		tx.Ins = []rcaccept.Output{
			{Payloads: map[rcaccept.App][]byte{b.App: prevState}},
		}
	}
	return tx
}

// TxID is the identifier a ledger assigns to the transaction carrying b.
// The new state is always at output index 0.
func (b Bundle) TxID() [32]byte {
	h := sha256.New()
	h.Write([]byte(b.App.Tag))
	h.Write(b.App.Identity[:])

	var spend [37]byte
	if b.Spend != nil {
		spend[0] = 1
		copy(spend[1:33], b.Spend.TxID[:])
		binary.LittleEndian.PutUint32(spend[33:], b.Spend.Index)
	}
	h.Write(spend[:])

	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(b.NewState)))
	h.Write(n[:])
	h.Write(b.NewState)
	h.Write(b.Witness)

	var out [32]byte
	h.Sum(out[:0])
	return out
}

// Ledger is the external ledger that stores circle states.
//
// Submit either commits the bundle and returns the new output's reference,
// or fails with one of:
//   - a *rcaccept.RejectionError when the ledger's predicate refuses the transaction;
//   - a *rcchain.ChainError of kind StaleReference when Spend was already consumed
//     or, for a new circle, the circle already exists;
//   - ErrNotFound when Spend does not name a known output.
//
// Implementations must be safe for concurrent use.
type Ledger interface {
	FetchOutput(ctx context.Context, ref OutputRef) ([]byte, error)

	// LatestOutput returns the unspent output holding app's current state.
	LatestOutput(ctx context.Context, app rcaccept.App) (OutputRef, []byte, error)

	Submit(ctx context.Context, b Bundle) (OutputRef, error)
}

// Prover turns a draft bundle into one the ledger will accept,
// or reports why it would not.
type Prover interface {
	Prove(ctx context.Context, draft Bundle) (Bundle, error)
}

// LocalProver checks bundles against a predicate before submission,
// so that doomed transactions never reach the ledger.
type LocalProver struct {
	Predicate rcaccept.Predicate
}

func (p LocalProver) Prove(_ context.Context, draft Bundle) (Bundle, error) {
	if err := p.Predicate.Accept(draft.App, draft.Tx(draft.PrevState), draft.Witness); err != nil {
		return Bundle{}, err
	}
	return draft, nil
}
