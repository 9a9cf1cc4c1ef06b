// Package rcstate defines the state of a rotating savings and credit circle:
// a set of members, closed once the first round pays out,
// who each contribute a fixed amount per round,
// with exactly one member receiving the pooled amount per round
// in a rotation assigned at enrollment.
//
// A [CircleState] is treated as an immutable snapshot.
// Successor states are produced by the pure functions in rctransition,
// and every successor must pass [Validate] before it is returned.
//
// Errors from this package are structured:
// a [*ViolationError] names the broken invariant through its [Violation] kind,
// and a [*ParamError] names the malformed input field.
// Both kinds and families can be matched with [errors.Is].
package rcstate
