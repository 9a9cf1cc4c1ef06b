package rccodec

import (
	"encoding/binary"
	"fmt"

	"github.com/gordian-engine/gcircle/gcrypto"
)

// reader walks a byte slice, recording the first failure.
// Once err is set every subsequent read returns a zero value.
type reader struct {
	b   []byte
	off int
	err error
}

func (r *reader) fail(field, reason string) {
	if r.err == nil {
		r.err = &DecodeError{Offset: r.off, Field: field, Reason: reason}
	}
}

func (r *reader) take(field string, n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b)-r.off < n {
		r.fail(field, fmt.Sprintf("truncated: need %d bytes, have %d", n, len(r.b)-r.off))
		return nil
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u8(field string) uint8 {
	b := r.take(field, 1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16(field string) uint16 {
	b := r.take(field, 2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32(field string) uint32 {
	b := r.take(field, 4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64(field string) uint64 {
	b := r.take(field, 8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) flag(field string) bool {
	start := r.off
	v := r.u8(field)
	if r.err != nil {
		return false
	}
	switch v {
	case 0:
		return false
	case 1:
		return true
	default:
		r.off = start
		r.fail(field, fmt.Sprintf("boolean byte must be 0 or 1, got %d", v))
		return false
	}
}

func (r *reader) hash(field string) (out [hashSize]byte) {
	copy(out[:], r.take(field, hashSize))
	return out
}

func (r *reader) pubKey(field string) (out gcrypto.Secp256k1PubKey) {
	start := r.off
	copy(out[:], r.take(field, pubKeySize))
	if r.err == nil && !out.HasCompressedPrefix() {
		r.off = start
		r.fail(field, fmt.Sprintf("invalid compressed key prefix 0x%02x", out[0]))
	}
	return out
}

// count reads a u32 element count and rejects it
// if that many elements of at least minSize bytes cannot fit in the remaining input.
// This keeps a corrupt count from driving a huge allocation.
func (r *reader) count(field string, minSize int) int {
	start := r.off
	n := r.u32(field)
	if r.err != nil {
		return 0
	}
	if uint64(n)*uint64(minSize) > uint64(len(r.b)-r.off) {
		r.off = start
		r.fail(field, fmt.Sprintf("count %d exceeds remaining input", n))
		return 0
	}
	return int(n)
}

func (r *reader) finish() error {
	if r.err == nil && r.off != len(r.b) {
		r.fail("trailer", fmt.Sprintf("%d trailing bytes", len(r.b)-r.off))
	}
	return r.err
}

func putBool(out []byte, v bool) []byte {
	if v {
		return append(out, 1)
	}
	return append(out, 0)
}
