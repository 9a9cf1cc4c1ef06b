package rcaccept

import (
	"errors"
	"fmt"
)

// ErrRejected is the family of every [*RejectionError].
// A rejected transaction will be rejected again; it is not retryable.
var ErrRejected = errors.New("transaction rejected by acceptance predicate")

// RejectionError reports which acceptance rule a transaction failed.
type RejectionError struct {
	// Rule is a short stable name such as "payload" or "replay".
	Rule string

	Detail string

	// Cause is the underlying decode, invariant or chain error, if any.
	Cause error
}

func (e *RejectionError) Error() string {
	msg := fmt.Sprintf("rejected by rule %q", e.Rule)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RejectionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrRejected}
	}
	return []error{ErrRejected, e.Cause}
}

func reject(rule string, cause error, format string, args ...any) *RejectionError {
	return &RejectionError{Rule: rule, Detail: fmt.Sprintf(format, args...), Cause: cause}
}
