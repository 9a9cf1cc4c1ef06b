package rcstate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidParameter is the family of errors for malformed creation or operation input.
// Callers must fix the input; retrying is pointless.
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrInvariantViolation is the family of every [*ViolationError].
var ErrInvariantViolation = errors.New("invariant violation")

// Violation identifies a broken invariant.
// Violation satisfies error, so a specific kind can be matched with
//
//	errors.Is(err, rcstate.DuplicateContribution)
type Violation uint8

const (
	_ Violation = iota

	// Rejections of add-member and record-contribution operations.
	DuplicateMember
	DuplicatePayoutRound
	PayoutRoundOutOfRange
	EnrollmentClosed
	CircleFull
	UnknownMember
	WrongAmount
	DuplicateContribution
	CircleComplete

	// Structural violations, reported by Validate on malformed states.
	NoMembers
	BadParameters
	RoundOutOfRange
	PayoutIndexMismatch
	PayoutStatusMismatch
	ContributionOutOfOrder
	PoolMismatch
	CompletionMismatch
	TimestampOrder
)

var violationNames = [...]string{
	DuplicateMember:        "duplicate member",
	DuplicatePayoutRound:   "duplicate payout round",
	PayoutRoundOutOfRange:  "payout round out of range",
	EnrollmentClosed:       "enrollment closed",
	CircleFull:             "circle full",
	UnknownMember:          "unknown member",
	WrongAmount:            "wrong amount",
	DuplicateContribution:  "duplicate contribution",
	CircleComplete:         "circle complete",
	NoMembers:              "no members",
	BadParameters:          "bad circle parameters",
	RoundOutOfRange:        "round out of range",
	PayoutIndexMismatch:    "payout index mismatch",
	PayoutStatusMismatch:   "payout status mismatch",
	ContributionOutOfOrder: "contribution out of order",
	PoolMismatch:           "pool mismatch",
	CompletionMismatch:     "completion mismatch",
	TimestampOrder:         "timestamp order",
}

func (v Violation) String() string {
	if int(v) < len(violationNames) && violationNames[v] != "" {
		return violationNames[v]
	}
	return fmt.Sprintf("Violation(%d)", uint8(v))
}

func (v Violation) Error() string {
	return v.String()
}

// ViolationError reports which invariant a state, or a proposed transition, breaks.
type ViolationError struct {
	Violation Violation

	// Field is the name of the offending CircleState, Member or Contribution field.
	Field string

	// Member is the index of the offending member, or -1 when not member-specific.
	Member int

	// Want and Got are set for numeric mismatches such as WrongAmount.
	Want, Got uint64

	Detail string
}

func (e *ViolationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Violation.String())
	if e.Field != "" {
		b.WriteString(" (")
		b.WriteString(e.Field)
		if e.Member >= 0 {
			fmt.Fprintf(&b, ", member %d", e.Member)
		}
		b.WriteString(")")
	} else if e.Member >= 0 {
		fmt.Fprintf(&b, " (member %d)", e.Member)
	}
	if e.Want != e.Got {
		fmt.Fprintf(&b, ": want %d, got %d", e.Want, e.Got)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ViolationError) Unwrap() []error {
	return []error{e.Violation, ErrInvariantViolation}
}

// Violate is a convenience constructor for a *ViolationError
// with no numeric mismatch.
func Violate(v Violation, field string, member int, detail string) *ViolationError {
	return &ViolationError{
		Violation: v,
		Field:     field,
		Member:    member,
		Detail:    detail,
	}
}

// ParamError reports a malformed input parameter.
type ParamError struct {
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParameter
}
