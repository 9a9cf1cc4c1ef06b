package rccodec

import (
	"errors"
	"fmt"
)

// ErrDecode is the family of every [*DecodeError].
// A decode failure means the blob is corrupt; it is not retryable.
var ErrDecode = errors.New("decode error")

// DecodeError describes where and why input bytes were rejected.
type DecodeError struct {
	// Offset is the byte offset at which the offending field starts.
	Offset int

	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at offset %d: %s", e.Field, e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrDecode
}
