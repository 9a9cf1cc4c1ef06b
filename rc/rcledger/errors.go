package rcledger

import (
	"context"
	"fmt"

	"github.com/gordian-engine/gcircle/rc/rcaccept"
	"github.com/gordian-engine/gcircle/rc/rcchain"
)

// Historian is implemented by ledgers that can list every state a circle has had.
type Historian interface {
	// History returns the payloads of app's outputs, oldest first.
	History(ctx context.Context, app rcaccept.App) ([][]byte, error)
}

// SpentError is the error a Ledger returns when a bundle spends an already consumed output.
func SpentError(ref OutputRef) *rcchain.ChainError {
	return &rcchain.ChainError{
		Kind:   rcchain.StaleReference,
		Field:  "spend",
		Detail: fmt.Sprintf("output %s already spent", ref),
	}
}

// ExistsError is the error a Ledger returns when a genesis bundle names an existing circle.
func ExistsError(app rcaccept.App) *rcchain.ChainError {
	return &rcchain.ChainError{
		Kind:   rcchain.StaleReference,
		Field:  "spend",
		Detail: fmt.Sprintf("circle %s already exists", app),
	}
}

// MismatchError is the error a Ledger returns when a bundle spends another circle's output.
func MismatchError(ref OutputRef, want, got rcaccept.App) *rcchain.ChainError {
	return &rcchain.ChainError{
		Kind:   rcchain.CircleMismatch,
		Field:  "spend",
		Want:   want.Identity,
		Got:    got.Identity,
		Detail: fmt.Sprintf("output %s belongs to %s", ref, got),
	}
}
