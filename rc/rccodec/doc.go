// Package rccodec is the canonical binary encoding of circle states and operations.
//
// The encoding has exactly one valid representation per logical value,
// so hashing the bytes is a reliable identity check for chain linkage.
// All integers are fixed width and little-endian.
// Collections keep insertion order; members are never re-sorted
// because their order is the payout rotation.
//
// State layout, version 1:
//
//	u16  version
//	[32] circle_id
//	u64  contribution_per_round
//	u64  round_duration
//	u64  created_at
//	u64  round_started_at
//	u32  member_capacity
//	u32  current_round
//	u32  current_payout_index
//	u64  current_pool
//	u8   is_complete (0 or 1)
//	[32] prev_state_hash
//	u32  member_count
//	  [33] pubkey (compressed secp256k1)
//	  u32  payout_round
//	  u64  joined_at
//	  u8   has_received_payout (0 or 1)
//	  u32  contribution_count
//	    u32  round
//	    u64  amount
//	    u64  timestamp
//	    [32] tx_ref
//
// Decoding checks only the static shape of the bytes.
// Semantic invariants belong to rcstate.Validate.
package rccodec
