// Package rctransition computes successor circle states.
//
// Every function here is pure: the input state is never modified,
// and a successful result is a new state that has passed rcstate.Validate
// and whose PrevStateHash is the hash of the input state.
// On failure the zero state is returned along with a structured error
// from rcstate; the caller's state is untouched.
//
// The engine never retries and never performs I/O.
// Submitting the result to a ledger is the caller's concern.
package rctransition
