package rccodec

import "github.com/gordian-engine/gcircle/rc/rcstate"

// StateCodec converts circle states to and from bytes.
type StateCodec interface {
	Encode(s rcstate.CircleState) ([]byte, error)
	Decode(data []byte) (rcstate.CircleState, error)
}

// BinaryCodec is the [StateCodec] for the canonical encoding.
type BinaryCodec struct{}

var _ StateCodec = BinaryCodec{}

func (BinaryCodec) Encode(s rcstate.CircleState) ([]byte, error) {
	return MarshalState(s), nil
}

func (BinaryCodec) Decode(data []byte) (rcstate.CircleState, error) {
	return UnmarshalState(data)
}
