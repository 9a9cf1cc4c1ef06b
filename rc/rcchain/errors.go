package rcchain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrChain is the family of every [*ChainError].
var ErrChain = errors.New("chain error")

// Kind classifies a ChainError.
// Kind satisfies error so it can be matched directly with [errors.Is].
type Kind uint8

const (
	_ Kind = iota

	// CircleMismatch: the successor belongs to a different circle.
	CircleMismatch

	// BrokenLink: the successor's prev_state_hash does not match its claimed predecessor.
	// This is a forged or skipped predecessor.
	BrokenLink

	// StaleReference: the predecessor was already superseded on the ledger.
	// Re-fetch the current state and recompute the transition.
	StaleReference

	// IllegalTransition: the pair of states cannot result from any single operation.
	IllegalTransition

	// NotGenesis: a state presented as the first of a circle is not a valid genesis state.
	NotGenesis
)

func (k Kind) String() string {
	switch k {
	case CircleMismatch:
		return "circle mismatch"
	case BrokenLink:
		return "broken link"
	case StaleReference:
		return "stale reference"
	case IllegalTransition:
		return "illegal transition"
	case NotGenesis:
		return "not genesis"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) Error() string {
	return k.String()
}

// ChainError reports a continuity failure between successive circle states.
type ChainError struct {
	Kind Kind

	// Field names the state field that broke continuity, if any.
	Field string

	// Want and Got are set for BrokenLink.
	Want, Got [32]byte

	Detail string
}

func (e *ChainError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Field != "" {
		fmt.Fprintf(&b, " (%s)", e.Field)
	}
	if e.Want != e.Got {
		fmt.Fprintf(&b, ": want %x, got %x", e.Want, e.Got)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ChainError) Unwrap() []error {
	return []error{e.Kind, ErrChain}
}

// Retryable reports whether err indicates a stale view of the ledger,
// which the caller may resolve by re-fetching and reapplying its operation.
func Retryable(err error) bool {
	return errors.Is(err, StaleReference)
}

func illegal(field, format string, args ...any) *ChainError {
	return &ChainError{Kind: IllegalTransition, Field: field, Detail: fmt.Sprintf(format, args...)}
}
