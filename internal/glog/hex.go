// Package glog contains small helpers for structured logging with [log/slog].
package glog

import (
	"encoding/hex"
	"log/slog"
)

// Hex renders a byte slice as lowercase hex when logged,
// instead of slog's default base64-like formatting for []byte.
type Hex []byte

func (h Hex) LogValue() slog.Value {
	return slog.StringValue(hex.EncodeToString(h))
}
