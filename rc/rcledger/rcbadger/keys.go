package rcbadger

import (
	"encoding/binary"
	"fmt"

	"github.com/gordian-engine/gcircle/rc/rcaccept"
	"github.com/gordian-engine/gcircle/rc/rcledger"
)

// Key layout:
//
//	o/<txid><index>      -> record
//	s/<txid><index>      -> empty, present once the output is spent
//	h/<identity><tag>    -> ref of the circle's unspent output
const (
	outputPrefix = 'o'
	spentPrefix  = 's'
	headPrefix   = 'h'

	refSize = 32 + 4
)

func encodeRef(ref rcledger.OutputRef) []byte {
	out := make([]byte, 0, refSize)
	out = append(out, ref.TxID[:]...)
	return binary.LittleEndian.AppendUint32(out, ref.Index)
}

func decodeRef(b []byte) (rcledger.OutputRef, error) {
	if len(b) != refSize {
		return rcledger.OutputRef{}, fmt.Errorf("output ref must be %d bytes, got %d", refSize, len(b))
	}
	var ref rcledger.OutputRef
	copy(ref.TxID[:], b)
	ref.Index = binary.LittleEndian.Uint32(b[32:])
	return ref, nil
}

func outputKey(ref rcledger.OutputRef) []byte {
	return append([]byte{outputPrefix, '/'}, encodeRef(ref)...)
}

func spentKey(ref rcledger.OutputRef) []byte {
	return append([]byte{spentPrefix, '/'}, encodeRef(ref)...)
}

func headKey(app rcaccept.App) []byte {
	out := append([]byte{headPrefix, '/'}, app.Identity[:]...)
	return append(out, app.Tag...)
}

// record is the stored value of an output.
//
//	u8 has_prev | [36] prev ref | u16 tag_len | tag | [32] identity | payload
type record struct {
	prev    *rcledger.OutputRef
	app     rcaccept.App
	payload []byte
}

func (r record) marshal() []byte {
	out := make([]byte, 0, 1+refSize+2+len(r.app.Tag)+32+len(r.payload))
	if r.prev != nil {
		out = append(out, 1)
		out = append(out, encodeRef(*r.prev)...)
	} else {
		out = append(out, 0)
		out = append(out, make([]byte, refSize)...)
	}
	out = binary.LittleEndian.AppendUint16(out, uint16(len(r.app.Tag)))
	out = append(out, r.app.Tag...)
	out = append(out, r.app.Identity[:]...)
	return append(out, r.payload...)
}

func unmarshalRecord(b []byte) (record, error) {
	const fixed = 1 + refSize + 2
	if len(b) < fixed {
		return record{}, fmt.Errorf("record too short: %d bytes", len(b))
	}

	var r record
	switch b[0] {
	case 0:
	case 1:
		ref, err := decodeRef(b[1 : 1+refSize])
		if err != nil {
			return record{}, err
		}
		r.prev = &ref
	default:
		return record{}, fmt.Errorf("invalid has_prev byte %d", b[0])
	}

	tagLen := int(binary.LittleEndian.Uint16(b[1+refSize:]))
	rest := b[fixed:]
	if len(rest) < tagLen+32 {
		return record{}, fmt.Errorf("record truncated: need %d bytes for app, have %d", tagLen+32, len(rest))
	}
	r.app.Tag = string(rest[:tagLen])
	copy(r.app.Identity[:], rest[tagLen:tagLen+32])
	r.payload = append([]byte(nil), rest[tagLen+32:]...)
	return r, nil
}
