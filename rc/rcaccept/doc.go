// Package rcaccept contains the ledger-side acceptance predicates for circle state outputs.
//
// A ledger consults a [Predicate] for every transaction
// that creates an output carrying a payload for a circle application.
// [Minimal] only requires a non-empty payload.
// [Full] decodes the payload and checks the whole transition:
// invariants, linkage to the spent predecessor,
// and a replay of the witnessed operation.
package rcaccept
