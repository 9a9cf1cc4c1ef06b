package rccodec

import (
	"encoding/hex"
	"strings"

	"github.com/gordian-engine/gcircle/rc/rcstate"
)

// EncodeHex returns the hex form of an encoded blob,
// as carried in ledger output payloads and passed between tools.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeHex parses a hex blob, tolerating surrounding whitespace and a 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, &DecodeError{Field: "hex", Reason: err.Error()}
	}
	return b, nil
}

// UnmarshalStateHex is DecodeHex followed by UnmarshalState.
func UnmarshalStateHex(s string) (rcstate.CircleState, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return rcstate.CircleState{}, err
	}
	return UnmarshalState(b)
}
